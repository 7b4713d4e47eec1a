package sqlitestore

import (
	"database/sql"
	"fmt"
)

type migration struct {
	Version     int
	Description string
	Up          string
}

// migrations are applied in order and tracked with PRAGMA user_version.
// Append new steps with increasing versions.
var migrations = []migration{
	{
		Version:     1,
		Description: "projects and transcripts",
		Up: `
CREATE TABLE IF NOT EXISTS projects (
    id                TEXT PRIMARY KEY,
    name              TEXT NOT NULL,
    organization_name TEXT,
    context_quick     TEXT,
    context_full      TEXT,
    created_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS storytellers (
    id           TEXT PRIMARY KEY,
    display_name TEXT,
    full_name    TEXT
);

CREATE TABLE IF NOT EXISTS transcripts (
    id                 TEXT PRIMARY KEY,
    project_id         TEXT NOT NULL REFERENCES projects(id),
    storyteller_id     TEXT REFERENCES storytellers(id),
    title              TEXT,
    text               TEXT,
    transcript_content TEXT,
    formatted_text     TEXT,
    duration_seconds   INTEGER,
    word_count         INTEGER,
    created_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS transcripts_project_idx ON transcripts (project_id);`,
	},
	{
		Version:     2,
		Description: "analysis cache and jobs",
		Up: `
CREATE TABLE IF NOT EXISTS project_analyses (
    project_id    TEXT NOT NULL,
    model_used    TEXT NOT NULL,
    analysis_type TEXT NOT NULL,
    content_hash  TEXT NOT NULL,
    analysis_data TEXT NOT NULL,
    analyzed_at   TEXT NOT NULL,
    UNIQUE (project_id, model_used, content_hash)
);

CREATE TABLE IF NOT EXISTS analysis_jobs (
    id              TEXT PRIMARY KEY,
    job_type        TEXT NOT NULL,
    project_id      TEXT NOT NULL,
    model           TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    total_stories   INTEGER NOT NULL DEFAULT 0,
    processed_count INTEGER NOT NULL DEFAULT 0,
    error           TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL,
    completed_at    TEXT
);`,
	},
}

func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

func schemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func (db *DB) migrate() error {
	current, err := schemaVersion(db.conn)
	if err != nil {
		return err
	}
	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		db.logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// user_version cannot be set inside the transaction with modernc.
		if _, err := db.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}
	return nil
}
