package store

import (
	"context"
	"time"

	"recon-service/internal/models"
)

// CreateSyncRun records the start of a stage execution for a tenant
func (s *Store) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	query := `
		INSERT INTO sync_runs (tenant_id, domain, found, processed, succeeded, error, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return s.db.GetContext(ctx, &run.ID, query,
		run.TenantID, run.Domain, run.Found, run.Processed, run.Succeeded, run.Error, run.StartedAt)
}

// FinishSyncRun records the outcome of a stage execution
func (s *Store) FinishSyncRun(ctx context.Context, runID int64, found, processed, succeeded int, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs SET found = $2, processed = $3, succeeded = $4, error = $5, finished_at = NOW()
		WHERE id = $1`,
		runID, found, processed, succeeded, errMsg)
	return err
}

// GetSyncRuns retrieves recent runs for a tenant, newest first
func (s *Store) GetSyncRuns(ctx context.Context, tenantID int64, limit int) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM sync_runs WHERE tenant_id = $1 ORDER BY started_at DESC LIMIT $2",
		tenantID, limit)
	return runs, err
}

// PruneSyncRuns deletes telemetry older than the retention window
func (s *Store) PruneSyncRuns(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sync_runs WHERE started_at < $1", olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
