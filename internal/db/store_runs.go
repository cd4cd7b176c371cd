package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/david/tender-matcher/internal/models"
)

func (s *Store) StartRun(ctx context.Context, source string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO ingest_runs (source_id, status, started_at)
		VALUES ($1, $2, NOW())
		RETURNING run_id::text`, source, string(models.RunRunning)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

func (s *Store) FinishRun(ctx context.Context, run models.IngestRun) error {
	details, err := json.Marshal(run.Details)
	if err != nil {
		return fmt.Errorf("encode run details: %w", err)
	}
	completed := time.Now()
	if run.CompletedAt != nil {
		completed = *run.CompletedAt
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingest_runs SET
			status = $2, items_found = $3, items_saved = $4, errors = $5,
			details = $6, completed_at = $7
		WHERE run_id = $1::uuid`,
		run.ID, string(run.Status), run.ItemsFound, run.ItemsSaved, run.Errors, details, completed)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// ListRuns returns the most recent ingestion runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id::text, source_id, status, items_found, items_saved, errors,
			details, started_at, completed_at
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	runs := []models.IngestRun{}
	for rows.Next() {
		var r models.IngestRun
		var status string
		var details []byte
		if err := rows.Scan(&r.ID, &r.Source, &status, &r.ItemsFound, &r.ItemsSaved, &r.Errors,
			&details, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		r.Status = models.RunStatus(status)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &r.Details); err != nil {
				return nil, fmt.Errorf("decode run details: %w", err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
