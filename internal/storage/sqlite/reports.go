package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sdwkit/sdw/internal/types"
)

// SaveReport stores an analysis report, replacing any previous report for
// the feature wholesale. There are no partial updates: a report is the
// output of exactly one analyzer run.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report *types.AnalysisReport, actor string) error {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	checksJSON, err := json.Marshal(report.Checks)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to marshal checks: %w", err))
	}

	report.CreatedAt = time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_reports (feature_id, tasks_revision, checks, overall_status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (feature_id) DO UPDATE SET
			tasks_revision = excluded.tasks_revision,
			checks = excluded.checks,
			overall_status = excluded.overall_status,
			created_at = excluded.created_at
	`, report.FeatureID, report.TasksRevision, string(checksJSON), report.OverallStatus, report.CreatedAt)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to save report: %w", err))
	}

	newValue := fmt.Sprintf("%s (tasks r%d)", report.OverallStatus, report.TasksRevision)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (feature_id, event_type, actor, new_value)
		VALUES (?, ?, ?, ?)
	`, report.FeatureID, types.EventReportPersisted, actor, newValue)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to record event: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return types.StorageError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// GetLatestReport returns the stored report for a feature, or nil if the
// feature has never been analyzed.
func (s *SQLiteStorage) GetLatestReport(ctx context.Context, featureID string) (*types.AnalysisReport, error) {
	var report types.AnalysisReport
	var checksJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT feature_id, tasks_revision, checks, overall_status, created_at
		FROM analysis_reports
		WHERE feature_id = ?
	`, featureID).Scan(&report.FeatureID, &report.TasksRevision, &checksJSON, &report.OverallStatus, &report.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to get report: %w", err))
	}

	if err := json.Unmarshal([]byte(checksJSON), &report.Checks); err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to decode checks: %w", err))
	}

	return &report, nil
}
