package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docschat/backend/internal/domain/corpus"
)

// 确保 ChunkRepositoryImpl 实现了 corpus.ChunkRepository 接口
var _ corpus.ChunkRepository = (*ChunkRepositoryImpl)(nil)

// ChunkRepositoryImpl 片段元数据仓库实现
type ChunkRepositoryImpl struct {
	db *sql.DB
}

// NewChunkRepository 创建片段元数据仓库实例
func NewChunkRepository(db *sql.DB) corpus.ChunkRepository {
	return &ChunkRepositoryImpl{db: db}
}

// SaveChunks 批量保存片段元数据
func (r *ChunkRepositoryImpl) SaveChunks(chunks []*corpus.Chunk) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO corpus_chunks (
			id, content_hash, text, token_count, section_header,
			source_path, is_boilerplate, extra, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	indexedAt := time.Now().Unix()
	for _, chunk := range chunks {
		var extraJSON []byte
		if len(chunk.Extra) > 0 {
			extraJSON, _ = json.Marshal(chunk.Extra)
		}

		isBoilerplate := 0
		if chunk.IsBoilerplate {
			isBoilerplate = 1
		}

		_, err := stmt.Exec(
			chunk.ID,
			chunk.ContentHash,
			chunk.Text,
			chunk.TokenCount,
			chunk.SectionHeader,
			chunk.SourcePath,
			isBoilerplate,
			string(extraJSON),
			indexedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetChunk 获取单个片段元数据
func (r *ChunkRepositoryImpl) GetChunk(id string) (*corpus.Chunk, error) {
	query := `
		SELECT id, content_hash, text, token_count, section_header,
		       source_path, is_boilerplate, extra
		FROM corpus_chunks
		WHERE id = ?`

	var chunk corpus.Chunk
	var isBoilerplate int
	var extraJSON sql.NullString

	err := r.db.QueryRow(query, id).Scan(
		&chunk.ID,
		&chunk.ContentHash,
		&chunk.Text,
		&chunk.TokenCount,
		&chunk.SectionHeader,
		&chunk.SourcePath,
		&isBoilerplate,
		&extraJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	chunk.IsBoilerplate = isBoilerplate == 1
	if extraJSON.Valid && extraJSON.String != "" {
		json.Unmarshal([]byte(extraJSON.String), &chunk.Extra)
	}

	return &chunk, nil
}

// GetHashesBySource 获取某文档已存储的内容哈希集合
// 供嵌入阶段跳过已有向量的片段（按内容寻址的幂等机制）
func (r *ChunkRepositoryImpl) GetHashesBySource(sourcePath string) (map[string]bool, error) {
	rows, err := r.db.Query(
		`SELECT content_hash FROM corpus_chunks WHERE source_path = ?`, sourcePath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes[hash] = true
	}

	return hashes, rows.Err()
}

// DeleteBySource 删除某文档的所有片段元数据
func (r *ChunkRepositoryImpl) DeleteBySource(sourcePath string) error {
	_, err := r.db.Exec(`DELETE FROM corpus_chunks WHERE source_path = ?`, sourcePath)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", sourcePath, err)
	}
	return nil
}

// CountChunks 统计片段总数
func (r *ChunkRepositoryImpl) CountChunks() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM corpus_chunks`).Scan(&count)
	return count, err
}

// ClearAllChunks 清空所有片段元数据
func (r *ChunkRepositoryImpl) ClearAllChunks() error {
	_, err := r.db.Exec(`DELETE FROM corpus_chunks`)
	return err
}
