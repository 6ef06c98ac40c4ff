package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultDBPath 获取默认数据库路径
// Windows: %USERPROFILE%\.docschat\docschat.db
// macOS/Linux: ~/.docschat/docschat.db
func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".docschat", "docschat.db"), nil
}

// OpenDB 打开数据库连接并初始化表结构
// path 为空时使用默认路径
func OpenDB(path string) (*sql.DB, error) {
	if path == "" {
		defaultPath, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	// 确保目录存在
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// initSchema 初始化表结构
func initSchema(db *sql.DB) error {
	// 片段元数据表
	createChunksSQL := `
	CREATE TABLE IF NOT EXISTS corpus_chunks (
		id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		text TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		section_header TEXT NOT NULL,
		source_path TEXT NOT NULL,
		is_boilerplate INTEGER NOT NULL DEFAULT 0,
		extra TEXT,
		indexed_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createChunksSQL); err != nil {
		return fmt.Errorf("failed to create corpus_chunks table: %w", err)
	}

	createChunksIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_corpus_chunks_source ON corpus_chunks(source_path);
	CREATE INDEX IF NOT EXISTS idx_corpus_chunks_hash ON corpus_chunks(content_hash);`

	if _, err := db.Exec(createChunksIndexSQL); err != nil {
		return fmt.Errorf("failed to create corpus_chunks indexes: %w", err)
	}

	// 摄取任务表
	createJobsSQL := `
	CREATE TABLE IF NOT EXISTS ingestion_jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		force INTEGER NOT NULL DEFAULT 0,
		documents_processed INTEGER NOT NULL DEFAULT 0,
		documents_skipped INTEGER NOT NULL DEFAULT 0,
		chunks_written INTEGER NOT NULL DEFAULT 0,
		errors TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);`

	if _, err := db.Exec(createJobsSQL); err != nil {
		return fmt.Errorf("failed to create ingestion_jobs table: %w", err)
	}

	// 文档摘要表（增量摄取的变更检测）
	createDigestsSQL := `
	CREATE TABLE IF NOT EXISTS document_digests (
		path TEXT PRIMARY KEY,
		digest TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createDigestsSQL); err != nil {
		return fmt.Errorf("failed to create document_digests table: %w", err)
	}

	return nil
}
