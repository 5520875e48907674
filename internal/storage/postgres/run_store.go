package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
)

// Run status values.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
)

// RunStore records the start and outcome of each capture run.
type RunStore struct {
	pool  execer
	table string
}

// NewRunStore builds a RunStore on an existing pool.
func NewRunStore(pool execer, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, "capture_runs")
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

// StartRun inserts a running row for runID.
func (s *RunStore) StartRun(ctx context.Context, runID string, startedAt time.Time, targets int) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, started_at, targets, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING;
	`, s.table)
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, targets, RunRunning); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// CompleteRun stores the final tallies for runID.
func (s *RunStore) CompleteRun(ctx context.Context, runID string, finishedAt time.Time, summary catalog.RunSummary) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET finished_at = $1, status = $2, succeeded = $3, failed = $4, skipped = $5, assets = $6
		WHERE id = $7;
	`, s.table)
	_, err := s.pool.Exec(ctx, query,
		finishedAt,
		RunCompleted,
		summary.Succeeded,
		summary.Failed,
		summary.Skipped,
		summary.Assets,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}
