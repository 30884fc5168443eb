package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sdwkit/sdw/internal/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, types.StorageError(fmt.Errorf("failed to create directory: %w", err))
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to open database: %w", err))
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to ping database: %w", err))
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to initialize schema: %w", err))
	}

	// Seed the reserved project-scope row so the constitution artifact has
	// an owner that satisfies foreign keys.
	_, err = db.Exec(`
		INSERT INTO features (id, current_phase) VALUES (?, ?)
		ON CONFLICT (id) DO NOTHING
	`, types.ProjectFeatureID, types.PhaseConstitution)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to seed project feature: %w", err))
	}

	return &SQLiteStorage{db: db}, nil
}

// CreateFeature creates a new feature in its initial phase
func (s *SQLiteStorage) CreateFeature(ctx context.Context, feature *types.Feature, actor string) error {
	if feature.CurrentPhase == "" {
		feature.CurrentPhase = types.PhaseSpecify
	}
	if err := feature.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if feature.ID == types.ProjectFeatureID {
		return types.NewError(types.ErrFeatureExists,
			"feature id %q is reserved for the project constitution", feature.ID)
	}

	now := time.Now()
	feature.CreatedAt = now
	feature.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO features (id, current_phase, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, feature.ID, feature.CurrentPhase, feature.CreatedAt, feature.UpdatedAt)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to insert feature: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.NewError(types.ErrFeatureExists, "feature %s already exists", feature.ID).
			WithHint("pick a different slug, or run 'sdw status %s'", feature.ID)
	}

	newValue := string(feature.CurrentPhase)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (feature_id, event_type, actor, new_value)
		VALUES (?, ?, ?, ?)
	`, feature.ID, types.EventFeatureCreated, actor, newValue)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to record event: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return types.StorageError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// GetFeature retrieves a feature by ID. Returns FeatureNotFound if absent.
func (s *SQLiteStorage) GetFeature(ctx context.Context, id string) (*types.Feature, error) {
	var feature types.Feature
	var abandonedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, current_phase, created_at, updated_at, abandoned_at
		FROM features
		WHERE id = ?
	`, id).Scan(&feature.ID, &feature.CurrentPhase, &feature.CreatedAt, &feature.UpdatedAt, &abandonedAt)

	if err == sql.ErrNoRows {
		return nil, types.NewError(types.ErrFeatureNotFound, "feature %s not found", id).
			WithHint("run 'sdw feature new %s' to create it", id)
	}
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to get feature: %w", err))
	}

	if abandonedAt.Valid {
		feature.AbandonedAt = &abandonedAt.Time
	}

	return &feature, nil
}

// ListFeatures returns all non-reserved features, newest first
func (s *SQLiteStorage) ListFeatures(ctx context.Context) ([]*types.Feature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, current_phase, created_at, updated_at, abandoned_at
		FROM features
		WHERE id != ?
		ORDER BY created_at DESC
	`, types.ProjectFeatureID)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to list features: %w", err))
	}
	defer rows.Close()

	var features []*types.Feature
	for rows.Next() {
		var feature types.Feature
		var abandonedAt sql.NullTime
		if err := rows.Scan(&feature.ID, &feature.CurrentPhase, &feature.CreatedAt, &feature.UpdatedAt, &abandonedAt); err != nil {
			return nil, types.StorageError(fmt.Errorf("failed to scan feature: %w", err))
		}
		if abandonedAt.Valid {
			feature.AbandonedAt = &abandonedAt.Time
		}
		features = append(features, &feature)
	}

	return features, rows.Err()
}

// UpdateFeaturePhase moves a feature from one phase to another. The update
// is compare-and-swap on the current phase: if another session advanced the
// feature first, the swap affects zero rows and StaleRevision is returned.
func (s *SQLiteStorage) UpdateFeaturePhase(ctx context.Context, id string, from, to types.Phase, actor string) error {
	if !to.IsValid() {
		return fmt.Errorf("invalid phase: %s", to)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Close()

	// BEGIN IMMEDIATE acquires the write lock up front so the phase check
	// and the swap are a single serialized unit across writers.
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return types.StorageError(fmt.Errorf("failed to begin immediate transaction: %w", err))
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	res, err := conn.ExecContext(ctx, `
		UPDATE features SET current_phase = ?, updated_at = ?
		WHERE id = ? AND current_phase = ?
	`, to, time.Now(), id, from)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to update phase: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to check phase update: %w", err))
	}
	if n == 0 {
		var exists int
		if scanErr := conn.QueryRowContext(ctx, "SELECT 1 FROM features WHERE id = ?", id).Scan(&exists); scanErr == sql.ErrNoRows {
			return types.NewError(types.ErrFeatureNotFound, "feature %s not found", id)
		}
		return types.NewError(types.ErrStaleRevision,
			"feature %s is no longer in phase %s", id, from).
			WithHint("re-read the feature state and retry")
	}

	oldValue := string(from)
	newValue := string(to)
	_, err = conn.ExecContext(ctx, `
		INSERT INTO events (feature_id, event_type, actor, old_value, new_value)
		VALUES (?, ?, ?, ?, ?)
	`, id, types.EventPhaseAdvanced, actor, oldValue, newValue)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to record event: %w", err))
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return types.StorageError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	committed = true
	return nil
}

// AbandonFeature moves a feature to the abandoned terminal phase
func (s *SQLiteStorage) AbandonFeature(ctx context.Context, id string, actor string) error {
	feature, err := s.GetFeature(ctx, id)
	if err != nil {
		return err
	}
	if feature.CurrentPhase.Terminal() {
		return types.NewError(types.ErrPhaseOutOfOrder,
			"feature %s is already in terminal phase %s", id, feature.CurrentPhase)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE features SET current_phase = ?, abandoned_at = ?, updated_at = ?
		WHERE id = ?
	`, types.PhaseAbandoned, now, now, id)
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to abandon feature: %w", err))
	}

	oldValue := string(feature.CurrentPhase)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (feature_id, event_type, actor, old_value, new_value)
		VALUES (?, ?, ?, ?, ?)
	`, id, types.EventFeatureAbandoned, actor, oldValue, string(types.PhaseAbandoned))
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to record event: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return types.StorageError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// GetEvents returns the audit trail for a feature, newest first
func (s *SQLiteStorage) GetEvents(ctx context.Context, featureID string, limit int) ([]*types.Event, error) {
	query := `
		SELECT id, feature_id, event_type, actor, old_value, new_value, created_at
		FROM events
		WHERE feature_id = ?
		ORDER BY id DESC
	`
	args := []interface{}{featureID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to get events: %w", err))
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		var event types.Event
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&event.ID, &event.FeatureID, &event.EventType, &event.Actor, &oldValue, &newValue, &event.CreatedAt); err != nil {
			return nil, types.StorageError(fmt.Errorf("failed to scan event: %w", err))
		}
		if oldValue.Valid {
			event.OldValue = &oldValue.String
		}
		if newValue.Valid {
			event.NewValue = &newValue.String
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

// GetConfig gets a configuration value from the config table
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig sets a configuration value in the config table
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
