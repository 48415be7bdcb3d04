package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// 中文说明：
// 探针巡检历史存储。只记录本服务自身的端到端冒烟结果（运维遥测），
// 分析会话与提示词历史不在持久化范围内。

// ProbeRunRecord 一次探针巡检的落盘记录。Detail 为逐项断言的 JSON。
type ProbeRunRecord struct {
	ID            int64     `json:"id"`
	CorrelationID string    `json:"correlationId"`
	StartedAt     time.Time `json:"startedAt"`
	DurationMS    int64     `json:"durationMs"`
	Passed        bool      `json:"passed"`
	Detail        string    `json:"detail"`
}

// ProbeLogStore 基于 sqlite 的巡检历史存储。
type ProbeLogStore struct {
	db *sql.DB
}

const probeRunsSchema = `
CREATE TABLE IF NOT EXISTS probe_runs (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    correlation_id TEXT NOT NULL,
    started_at     INTEGER NOT NULL,
    duration_ms    INTEGER NOT NULL,
    passed         INTEGER NOT NULL,
    detail         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_probe_runs_started_at ON probe_runs(started_at DESC);
`

func NewProbeLogStore(path string) (*ProbeLogStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开探针日志库失败: %w", err)
	}
	if _, err := db.Exec(probeRunsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化 probe_runs 表失败: %w", err)
	}
	return &ProbeLogStore{db: db}, nil
}

func (s *ProbeLogStore) Close() error { return s.db.Close() }

// Append 追加一条巡检记录。
func (s *ProbeLogStore) Append(ctx context.Context, rec ProbeRunRecord) error {
	passed := 0
	if rec.Passed {
		passed = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO probe_runs(correlation_id, started_at, duration_ms, passed, detail) VALUES(?,?,?,?,?)`,
		rec.CorrelationID, rec.StartedAt.UnixMilli(), rec.DurationMS, passed, rec.Detail)
	if err != nil {
		return fmt.Errorf("写入探针记录失败: %w", err)
	}
	return nil
}

// ListRecent 返回最近 limit 条巡检记录（新在前）。
func (s *ProbeLogStore) ListRecent(ctx context.Context, limit int) ([]ProbeRunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, correlation_id, started_at, duration_ms, passed, detail
         FROM probe_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询探针记录失败: %w", err)
	}
	defer rows.Close()
	var out []ProbeRunRecord
	for rows.Next() {
		var rec ProbeRunRecord
		var startedAt int64
		var passed int
		if err := rows.Scan(&rec.ID, &rec.CorrelationID, &startedAt, &rec.DurationMS, &passed, &rec.Detail); err != nil {
			return nil, err
		}
		rec.StartedAt = time.UnixMilli(startedAt)
		rec.Passed = passed == 1
		out = append(out, rec)
	}
	return out, rows.Err()
}
