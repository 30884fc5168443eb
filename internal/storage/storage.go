package storage

import (
	"context"

	"github.com/sdwkit/sdw/internal/storage/sqlite"
	"github.com/sdwkit/sdw/internal/types"
)

// Storage defines the interface for workflow storage backends
type Storage interface {
	// Features
	CreateFeature(ctx context.Context, feature *types.Feature, actor string) error
	GetFeature(ctx context.Context, id string) (*types.Feature, error)
	ListFeatures(ctx context.Context) ([]*types.Feature, error)
	UpdateFeaturePhase(ctx context.Context, id string, from, to types.Phase, actor string) error
	AbandonFeature(ctx context.Context, id string, actor string) error

	// Artifact revisions (immutable once approved; edits create revision+1)
	CreateRevision(ctx context.Context, featureID string, kind types.ArtifactKind, body string, actor string) (*types.Artifact, error)
	Approve(ctx context.Context, featureID string, kind types.ArtifactKind, revision int, actor string) (*types.Artifact, error)
	GetLatest(ctx context.Context, featureID string, kind types.ArtifactKind) (*types.Artifact, error)
	GetApproved(ctx context.Context, featureID string, kind types.ArtifactKind) (*types.Artifact, error)
	GetRevision(ctx context.Context, featureID string, kind types.ArtifactKind, revision int) (*types.Artifact, error)

	// Analysis reports (wholesale replacement per run)
	SaveReport(ctx context.Context, report *types.AnalysisReport, actor string) error
	GetLatestReport(ctx context.Context, featureID string) (*types.AnalysisReport, error)

	// Audit trail
	GetEvents(ctx context.Context, featureID string, limit int) ([]*types.Event, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".sdw/sdw.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".sdw/sdw.db",
	}
}

// NewStorage creates a new SQLite storage backend
// The ctx parameter is currently unused but kept for API consistency
// and future extension possibilities
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.Path == "" {
		cfg.Path = ".sdw/sdw.db"
	}

	return sqlite.New(cfg.Path)
}
