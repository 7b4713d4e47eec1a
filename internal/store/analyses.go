package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/yarning/internal/cache"
)

// LookupAnalysis returns the cached analysis for a key. The unique constraint
// makes duplicates impossible, but the newest row wins if any exist.
func (s *Store) LookupAnalysis(ctx context.Context, key cache.Key) (cache.Entry, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT analysis_type, analysis_data, analyzed_at
		FROM project_analyses
		WHERE project_id = $1 AND model_used = $2 AND content_hash = $3
		ORDER BY analyzed_at DESC
		LIMIT 1`,
		key.ProjectID, key.Model, key.ContentHash,
	)

	e := cache.Entry{Key: key}
	err := row.Scan(&e.AnalysisType, &e.Data, &e.AnalyzedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("lookup analysis: %w", err)
	}
	return e, true, nil
}

// UpsertAnalysis writes an analysis; concurrent writers to the same key
// converge on the last write.
func (s *Store) UpsertAnalysis(ctx context.Context, e cache.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO project_analyses (id, project_id, model_used, analysis_type, content_hash, analysis_data, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (project_id, model_used, content_hash)
		DO UPDATE SET
			analysis_type = EXCLUDED.analysis_type,
			analysis_data = EXCLUDED.analysis_data,
			analyzed_at = EXCLUDED.analyzed_at`,
		uuid.New(), e.ProjectID, e.Model, e.AnalysisType, e.ContentHash, []byte(e.Data), e.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}
	return nil
}
