package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/docschat/backend/internal/domain/corpus"
)

// 确保 JobRepositoryImpl 实现了 corpus.JobRepository 接口
var _ corpus.JobRepository = (*JobRepositoryImpl)(nil)

// JobRepositoryImpl 摄取任务仓库实现
type JobRepositoryImpl struct {
	db *sql.DB
}

// NewJobRepository 创建摄取任务仓库实例
func NewJobRepository(db *sql.DB) corpus.JobRepository {
	return &JobRepositoryImpl{db: db}
}

// SaveJob 保存摄取任务（插入或覆盖）
func (r *JobRepositoryImpl) SaveJob(job *corpus.IngestionJob) error {
	var errorsJSON []byte
	if len(job.Errors) > 0 {
		errorsJSON, _ = json.Marshal(job.Errors)
	}

	force := 0
	if job.Force {
		force = 1
	}

	var finishedAt sql.NullInt64
	if !job.FinishedAt.IsZero() {
		finishedAt = sql.NullInt64{Int64: job.FinishedAt.Unix(), Valid: true}
	}

	query := `
		INSERT OR REPLACE INTO ingestion_jobs (
			id, status, force, documents_processed, documents_skipped,
			chunks_written, errors, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(
		query,
		job.ID,
		job.Status,
		force,
		job.DocumentsProcessed,
		job.DocumentsSkipped,
		job.ChunksWritten,
		string(errorsJSON),
		job.StartedAt.Unix(),
		finishedAt,
	)

	return err
}

// GetJob 获取摄取任务
func (r *JobRepositoryImpl) GetJob(id string) (*corpus.IngestionJob, error) {
	query := `
		SELECT id, status, force, documents_processed, documents_skipped,
		       chunks_written, errors, started_at, finished_at
		FROM ingestion_jobs
		WHERE id = ?`

	return r.scanJob(r.db.QueryRow(query, id))
}

// GetLatestJob 获取最近一次摄取任务
func (r *JobRepositoryImpl) GetLatestJob() (*corpus.IngestionJob, error) {
	query := `
		SELECT id, status, force, documents_processed, documents_skipped,
		       chunks_written, errors, started_at, finished_at
		FROM ingestion_jobs
		ORDER BY started_at DESC
		LIMIT 1`

	return r.scanJob(r.db.QueryRow(query))
}

// scanJob 扫描单行数据到 IngestionJob
func (r *JobRepositoryImpl) scanJob(row *sql.Row) (*corpus.IngestionJob, error) {
	var job corpus.IngestionJob
	var force int
	var errorsJSON sql.NullString
	var startedAt int64
	var finishedAt sql.NullInt64

	err := row.Scan(
		&job.ID,
		&job.Status,
		&force,
		&job.DocumentsProcessed,
		&job.DocumentsSkipped,
		&job.ChunksWritten,
		&errorsJSON,
		&startedAt,
		&finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.Force = force == 1
	job.StartedAt = time.Unix(startedAt, 0)
	if finishedAt.Valid {
		job.FinishedAt = time.Unix(finishedAt.Int64, 0)
	}
	if errorsJSON.Valid && errorsJSON.String != "" {
		json.Unmarshal([]byte(errorsJSON.String), &job.Errors)
	}

	return &job, nil
}
