package storage

import (
	"database/sql"
	"time"

	"github.com/docschat/backend/internal/domain/corpus"
)

// 确保 DigestRepositoryImpl 实现了 corpus.DigestRepository 接口
var _ corpus.DigestRepository = (*DigestRepositoryImpl)(nil)

// DigestRepositoryImpl 文档摘要仓库实现
type DigestRepositoryImpl struct {
	db *sql.DB
}

// NewDigestRepository 创建文档摘要仓库实例
func NewDigestRepository(db *sql.DB) corpus.DigestRepository {
	return &DigestRepositoryImpl{db: db}
}

// GetDigest 获取文档摘要，不存在时返回空字符串
func (r *DigestRepositoryImpl) GetDigest(path string) (string, error) {
	var digest string
	err := r.db.QueryRow(
		`SELECT digest FROM document_digests WHERE path = ?`, path).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return digest, nil
}

// SaveDigest 保存文档摘要
func (r *DigestRepositoryImpl) SaveDigest(path, digest string) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO document_digests (path, digest, updated_at) VALUES (?, ?, ?)`,
		path, digest, time.Now().Unix())
	return err
}

// DeleteDigest 删除文档摘要
func (r *DigestRepositoryImpl) DeleteDigest(path string) error {
	_, err := r.db.Exec(`DELETE FROM document_digests WHERE path = ?`, path)
	return err
}
