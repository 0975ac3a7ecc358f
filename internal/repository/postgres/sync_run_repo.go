package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"stockledger/internal/domain"
	"stockledger/internal/port"
)

type syncRunRepo struct {
	db *sqlx.DB
}

// NewSyncRunRepo creates a new PostgreSQL-backed SyncRunRepository.
func NewSyncRunRepo(db *sqlx.DB) port.SyncRunRepository {
	return &syncRunRepo{db: db}
}

func (r *syncRunRepo) Create(ctx context.Context, run *domain.SyncRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, classification, start_date, end_date, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Classification, run.StartDate, run.EndDate, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("syncRunRepo.Create: %w", err)
	}
	return nil
}

func (r *syncRunRepo) Finish(ctx context.Context, run *domain.SyncRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_runs SET
			status = $1, total = $2, processed = $3, succeeded = $4, failed = $5,
			inserted_count = $6, error_summary = $7, finished_at = $8
		 WHERE id = $9`,
		run.Status, run.Total, run.Processed, run.Succeeded, run.Failed,
		run.InsertedCount, run.ErrorSummary, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("syncRunRepo.Finish: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *syncRunRepo) ListRecent(ctx context.Context, classification domain.Classification, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []domain.SyncRun
	err := r.db.SelectContext(ctx, &runs,
		`SELECT id, classification, start_date, end_date, status, total, processed,
			succeeded, failed, inserted_count, error_summary, started_at, finished_at
		 FROM sync_runs
		 WHERE $1 = '' OR classification = $1
		 ORDER BY started_at DESC LIMIT $2`,
		string(classification), limit)
	if err != nil {
		return nil, fmt.Errorf("syncRunRepo.ListRecent: %w", err)
	}
	return runs, nil
}
