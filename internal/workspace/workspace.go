// Package workspace mirrors the artifact store onto disk so artifacts can be
// read and diffed with ordinary file tools. The database stays the source of
// truth; the export is regenerated wholesale and safe to delete.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sdwkit/sdw/internal/storage"
	"github.com/sdwkit/sdw/internal/types"
)

// Meta is the YAML sidecar written next to each exported artifact.
type Meta struct {
	FeatureID     string    `yaml:"feature_id"`
	Kind          string    `yaml:"kind"`
	Revision      int       `yaml:"revision"`
	ContentHash   string    `yaml:"content_hash"`
	Approved      bool      `yaml:"approved"`
	ApprovedBy    string    `yaml:"approved_by,omitempty"`
	OpenQuestions []string  `yaml:"open_questions,omitempty"`
	ExportedAt    time.Time `yaml:"exported_at"`
}

// Exporter writes artifact snapshots under a root directory, one
// subdirectory per feature.
type Exporter struct {
	store storage.Storage
	root  string
}

// NewExporter creates an exporter rooted at dir
func NewExporter(store storage.Storage, dir string) *Exporter {
	return &Exporter{store: store, root: dir}
}

var exportKinds = []types.ArtifactKind{
	types.KindSpec, types.KindClarifications, types.KindPlan,
	types.KindTasks, types.KindAnalysis,
}

// ExportAll exports the latest revision of every artifact for every feature,
// plus the project constitution. Returns the number of files written.
func (e *Exporter) ExportAll(ctx context.Context) (int, error) {
	features, err := e.store.ListFeatures(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	n, err := e.exportConstitution(ctx)
	if err != nil {
		return written, err
	}
	written += n

	for _, feature := range features {
		n, err := e.ExportFeature(ctx, feature.ID)
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// ExportFeature exports the latest revision of each artifact kind one
// feature has. Kinds with no revisions are skipped, and any previously
// exported copy of them is removed.
func (e *Exporter) ExportFeature(ctx context.Context, featureID string) (int, error) {
	if _, err := e.store.GetFeature(ctx, featureID); err != nil {
		return 0, err
	}

	dir := filepath.Join(e.root, featureID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dir, err)
	}

	written := 0
	for _, kind := range exportKinds {
		artifact, err := e.store.GetLatest(ctx, featureID, kind)
		if err != nil {
			if types.IsKind(err, types.ErrArtifactNotFound) {
				if err := removeExport(dir, kind); err != nil {
					return written, err
				}
				continue
			}
			return written, err
		}
		if err := writeArtifact(dir, artifact); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// exportConstitution writes the project-scoped constitution at the root,
// outside any feature directory.
func (e *Exporter) exportConstitution(ctx context.Context) (int, error) {
	artifact, err := e.store.GetLatest(ctx, types.ProjectFeatureID, types.KindConstitution)
	if err != nil {
		if types.IsKind(err, types.ErrArtifactNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if err := os.MkdirAll(e.root, 0755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", e.root, err)
	}
	if err := writeArtifact(e.root, artifact); err != nil {
		return 0, err
	}
	return 1, nil
}

func writeArtifact(dir string, artifact *types.Artifact) error {
	body := filepath.Join(dir, fmt.Sprintf("%s.md", artifact.Kind))
	if err := os.WriteFile(body, []byte(artifact.Body), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", body, err)
	}

	meta := Meta{
		FeatureID:     artifact.FeatureID,
		Kind:          string(artifact.Kind),
		Revision:      artifact.Revision,
		ContentHash:   artifact.ContentHash,
		Approved:      artifact.Approved,
		ApprovedBy:    artifact.ApprovedBy,
		OpenQuestions: artifact.OpenQuestions,
		ExportedAt:    time.Now().UTC(),
	}
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding sidecar for %s: %w", body, err)
	}
	sidecar := filepath.Join(dir, fmt.Sprintf("%s.meta.yaml", artifact.Kind))
	if err := os.WriteFile(sidecar, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", sidecar, err)
	}
	return nil
}

func removeExport(dir string, kind types.ArtifactKind) error {
	for _, name := range []string{
		fmt.Sprintf("%s.md", kind),
		fmt.Sprintf("%s.meta.yaml", kind),
	} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ReadMeta loads a sidecar back from disk. Used by tests and by 'sdw sync'
// to report what changed.
func ReadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &meta, nil
}
