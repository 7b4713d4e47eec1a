package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/yarning/internal/analysis"
)

// UpsertProject creates or renames a project.
func (db *DB) UpsertProject(ctx context.Context, p analysis.Project) error {
	var quick, full any
	if p.Context != nil {
		if p.Context.Quick != "" {
			quick = p.Context.Quick
		}
		if p.Context.Full != nil {
			b, err := json.Marshal(p.Context.Full)
			if err != nil {
				return fmt.Errorf("marshal project profile: %w", err)
			}
			full = string(b)
		}
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO projects (id, name, organization_name, context_quick, context_full, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			organization_name = excluded.organization_name,
			context_quick = excluded.context_quick,
			context_full = excluded.context_full`,
		p.ID, p.Name, nullable(p.OrganizationName), quick, full, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// UpsertTranscript stores a transcript and its storyteller.
func (db *DB) UpsertTranscript(ctx context.Context, t analysis.Transcript) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if t.StorytellerID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO storytellers (id, display_name) VALUES (?, ?)
			ON CONFLICT (id) DO UPDATE SET display_name = COALESCE(excluded.display_name, storytellers.display_name)`,
			t.StorytellerID, nullable(t.StorytellerName),
		)
		if err != nil {
			return fmt.Errorf("upsert storyteller: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transcripts (id, project_id, storyteller_id, title, text, duration_seconds, word_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			storyteller_id = excluded.storyteller_id,
			title = excluded.title,
			text = excluded.text,
			duration_seconds = excluded.duration_seconds,
			word_count = excluded.word_count`,
		t.ID, t.ProjectID, nullable(t.StorytellerID), nullable(t.Title), t.Text,
		t.DurationSeconds, t.WordCount, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert transcript: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (db *DB) GetProject(ctx context.Context, projectID string) (*analysis.Project, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, organization_name, context_quick, context_full
		FROM projects WHERE id = ?`, projectID)

	var (
		p           analysis.Project
		org, quick  *string
		fullProfile *string
	)
	err := row.Scan(&p.ID, &p.Name, &org, &quick, &fullProfile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if org != nil {
		p.OrganizationName = *org
	}
	var full []byte
	if fullProfile != nil {
		full = []byte(*fullProfile)
	}
	p.Context = analysis.ProjectContextFrom(quick, full)
	return &p, nil
}

func (db *DB) ListTranscripts(ctx context.Context, projectID string) ([]analysis.Transcript, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.id, t.project_id, t.storyteller_id, t.title,
		       t.text, t.transcript_content, t.formatted_text,
		       t.duration_seconds, t.word_count,
		       s.display_name, s.full_name
		FROM transcripts t
		LEFT JOIN storytellers s ON s.id = t.storyteller_id
		WHERE t.project_id = ? AND t.storyteller_id IS NOT NULL
		ORDER BY t.created_at, t.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var out []analysis.Transcript
	for rows.Next() {
		var r analysis.TranscriptRecord
		if err := rows.Scan(
			&r.ID, &r.ProjectID, &r.StorytellerID, &r.Title,
			&r.Text, &r.TranscriptContent, &r.FormattedText,
			&r.DurationSeconds, &r.WordCount,
			&r.DisplayName, &r.FullName,
		); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		if t, ok := r.Transcript(); ok {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
