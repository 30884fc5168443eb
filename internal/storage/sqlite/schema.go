package sqlite

const schema = `
-- Features table
CREATE TABLE IF NOT EXISTS features (
    id TEXT PRIMARY KEY,
    current_phase TEXT NOT NULL DEFAULT 'specify',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    abandoned_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_features_phase ON features(current_phase);
CREATE INDEX IF NOT EXISTS idx_features_created_at ON features(created_at);

-- Artifact revisions table
-- One row per (feature, kind, revision). Approved rows are immutable:
-- edits always insert revision+1.
CREATE TABLE IF NOT EXISTS artifacts (
    feature_id TEXT NOT NULL,
    kind TEXT NOT NULL CHECK(kind IN ('constitution', 'spec', 'clarifications', 'plan', 'tasks', 'analysis')),
    revision INTEGER NOT NULL CHECK(revision >= 1),
    content_hash TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    approved INTEGER NOT NULL DEFAULT 0,
    approved_at DATETIME,
    approved_by TEXT,
    open_questions TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (feature_id, kind, revision),
    FOREIGN KEY (feature_id) REFERENCES features(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_artifacts_feature_kind ON artifacts(feature_id, kind);

-- Analysis reports table
-- One row per feature: a new analyze run replaces the report wholesale.
-- tasks_revision pins the report to the Tasks revision it was computed
-- against; a later Tasks revision stales it via revision mismatch.
CREATE TABLE IF NOT EXISTS analysis_reports (
    feature_id TEXT PRIMARY KEY,
    tasks_revision INTEGER NOT NULL CHECK(tasks_revision >= 1),
    checks TEXT NOT NULL,
    overall_status TEXT NOT NULL CHECK(overall_status IN ('pass', 'warn', 'fail')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (feature_id) REFERENCES features(id) ON DELETE CASCADE
);

-- Events table (audit trail)
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    feature_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    actor TEXT NOT NULL,
    old_value TEXT,
    new_value TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (feature_id) REFERENCES features(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_feature ON events(feature_id);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);

-- Config table
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
