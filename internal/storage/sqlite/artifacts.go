package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sdwkit/sdw/internal/index"
	"github.com/sdwkit/sdw/internal/types"
)

// contentHash returns the hex SHA-256 of an artifact body.
func contentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return fmt.Sprintf("%x", sum)
}

// CreateRevision inserts the next revision of an artifact with approved=false.
// Approved revisions are never mutated in place: this is the only write path
// for artifact bodies. Open questions are extracted from the body at write
// time so gate checks never re-parse stale text.
func (s *SQLiteStorage) CreateRevision(ctx context.Context, featureID string, kind types.ArtifactKind, body string, actor string) (*types.Artifact, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid artifact kind: %s", kind)
	}
	if _, err := s.GetFeature(ctx, featureID); err != nil {
		return nil, err
	}

	questions := index.OpenQuestions(body)
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to marshal open questions: %w", err))
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Close()

	// BEGIN IMMEDIATE serializes revision numbering across concurrent
	// writers: two drafts for the same (feature, kind) cannot both read the
	// same latest revision.
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to begin immediate transaction: %w", err))
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	artifact := &types.Artifact{
		FeatureID:     featureID,
		Kind:          kind,
		ContentHash:   contentHash(body),
		Body:          body,
		OpenQuestions: questions,
		CreatedAt:     time.Now(),
	}

	err = conn.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(revision), 0) + 1
		FROM artifacts
		WHERE feature_id = ? AND kind = ?
	`, featureID, kind).Scan(&artifact.Revision)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to compute next revision: %w", err))
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO artifacts (
			feature_id, kind, revision, content_hash, body,
			approved, open_questions, created_at
		) VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, artifact.FeatureID, artifact.Kind, artifact.Revision, artifact.ContentHash,
		artifact.Body, string(questionsJSON), artifact.CreatedAt)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to insert revision: %w", err))
	}

	newValue := fmt.Sprintf("%s r%d (%d open questions)", kind, artifact.Revision, len(questions))
	_, err = conn.ExecContext(ctx, `
		INSERT INTO events (feature_id, event_type, actor, new_value)
		VALUES (?, ?, ?, ?)
	`, featureID, types.EventRevisionCreated, actor, newValue)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to record event: %w", err))
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	committed = true

	return artifact, nil
}

// Approve marks a specific revision approved. The operation is idempotent:
// approving an already-approved latest revision succeeds without change.
// Approving anything older than the latest revision fails with StaleRevision,
// which is the compare-and-swap invariant that keeps two concurrent approvals
// from both succeeding against a stale read.
func (s *SQLiteStorage) Approve(ctx context.Context, featureID string, kind types.ArtifactKind, revision int, actor string) (*types.Artifact, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to begin immediate transaction: %w", err))
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	var latest int
	err = conn.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(revision), 0)
		FROM artifacts
		WHERE feature_id = ? AND kind = ?
	`, featureID, kind).Scan(&latest)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to read latest revision: %w", err))
	}

	if latest == 0 {
		return nil, types.NewError(types.ErrArtifactNotFound,
			"no %s artifact for feature %s", kind, featureID).
			WithHint("draft one with 'sdw artifact draft %s %s'", featureID, kind)
	}
	if revision == 0 {
		revision = latest
	}
	if revision > latest {
		return nil, types.NewError(types.ErrArtifactNotFound,
			"%s revision %d does not exist for feature %s (latest is %d)", kind, revision, featureID, latest)
	}
	if revision < latest {
		return nil, types.NewError(types.ErrStaleRevision,
			"%s revision %d is stale: revision %d supersedes it", kind, revision, latest).
			WithHint("review and approve revision %d instead", latest)
	}

	now := time.Now()
	_, err = conn.ExecContext(ctx, `
		UPDATE artifacts
		SET approved = 1,
		    approved_at = COALESCE(approved_at, ?),
		    approved_by = COALESCE(approved_by, ?)
		WHERE feature_id = ? AND kind = ? AND revision = ?
	`, now, actor, featureID, kind, revision)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to approve revision: %w", err))
	}

	newValue := fmt.Sprintf("%s r%d", kind, revision)
	_, err = conn.ExecContext(ctx, `
		INSERT INTO events (feature_id, event_type, actor, new_value)
		VALUES (?, ?, ?, ?)
	`, featureID, types.EventArtifactApproved, actor, newValue)
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to record event: %w", err))
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	committed = true

	return s.GetRevision(ctx, featureID, kind, revision)
}

// GetLatest returns the newest revision of an artifact, approved or not.
func (s *SQLiteStorage) GetLatest(ctx context.Context, featureID string, kind types.ArtifactKind) (*types.Artifact, error) {
	return s.getArtifact(ctx, featureID, kind, `
		SELECT feature_id, kind, revision, content_hash, body,
		       approved, approved_at, approved_by, open_questions, created_at
		FROM artifacts
		WHERE feature_id = ? AND kind = ?
		ORDER BY revision DESC
		LIMIT 1
	`, featureID, kind)
}

// GetApproved returns the newest approved revision of an artifact.
func (s *SQLiteStorage) GetApproved(ctx context.Context, featureID string, kind types.ArtifactKind) (*types.Artifact, error) {
	return s.getArtifact(ctx, featureID, kind, `
		SELECT feature_id, kind, revision, content_hash, body,
		       approved, approved_at, approved_by, open_questions, created_at
		FROM artifacts
		WHERE feature_id = ? AND kind = ? AND approved = 1
		ORDER BY revision DESC
		LIMIT 1
	`, featureID, kind)
}

// GetRevision returns one specific revision.
func (s *SQLiteStorage) GetRevision(ctx context.Context, featureID string, kind types.ArtifactKind, revision int) (*types.Artifact, error) {
	return s.getArtifact(ctx, featureID, kind, `
		SELECT feature_id, kind, revision, content_hash, body,
		       approved, approved_at, approved_by, open_questions, created_at
		FROM artifacts
		WHERE feature_id = ? AND kind = ? AND revision = ?
	`, featureID, kind, revision)
}

func (s *SQLiteStorage) getArtifact(ctx context.Context, featureID string, kind types.ArtifactKind, query string, args ...interface{}) (*types.Artifact, error) {
	var artifact types.Artifact
	var approvedAt sql.NullTime
	var approvedBy sql.NullString
	var questionsJSON string

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&artifact.FeatureID, &artifact.Kind, &artifact.Revision,
		&artifact.ContentHash, &artifact.Body, &artifact.Approved,
		&approvedAt, &approvedBy, &questionsJSON, &artifact.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, types.NewError(types.ErrArtifactNotFound,
			"no %s artifact for feature %s", kind, featureID).
			WithHint("draft one with 'sdw artifact draft %s %s'", featureID, kind)
	}
	if err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to get artifact: %w", err))
	}

	if approvedAt.Valid {
		artifact.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		artifact.ApprovedBy = approvedBy.String
	}
	if err := json.Unmarshal([]byte(questionsJSON), &artifact.OpenQuestions); err != nil {
		return nil, types.StorageError(fmt.Errorf("failed to decode open questions: %w", err))
	}

	return &artifact, nil
}
