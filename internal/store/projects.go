package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/yarning/internal/analysis"
)

// GetProject fetches a project with its optional analysis context.
func (s *Store) GetProject(ctx context.Context, projectID string) (*analysis.Project, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT p.id::text, p.name, o.name, p.context_quick, p.context_full
		FROM projects p
		LEFT JOIN organizations o ON o.id = p.organization_id
		WHERE p.id::text = $1`,
		projectID,
	)

	var (
		p       analysis.Project
		orgName *string
		quick   *string
		full    []byte
	)
	err := row.Scan(&p.ID, &p.Name, &orgName, &quick, &full)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if orgName != nil {
		p.OrganizationName = *orgName
	}
	p.Context = analysis.ProjectContextFrom(quick, full)
	return &p, nil
}

// ListTranscripts returns the project's analysable transcripts: those with a
// storyteller and at least one non-empty text column.
func (s *Store) ListTranscripts(ctx context.Context, projectID string) ([]analysis.Transcript, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id::text, t.project_id::text, t.storyteller_id::text, t.title,
		       t.text, t.transcript_content, t.formatted_text,
		       t.duration_seconds, t.word_count,
		       st.display_name, st.full_name
		FROM transcripts t
		LEFT JOIN storytellers st ON st.id = t.storyteller_id
		WHERE t.project_id::text = $1
		  AND t.storyteller_id IS NOT NULL
		ORDER BY t.created_at, t.id`,
		projectID,
	)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcripts: %w", err)
	}
	return out, nil
}
