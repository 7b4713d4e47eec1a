package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/yarning/internal/batch"
	"github.com/MikeSquared-Agency/yarning/internal/cache"
)

func (db *DB) LookupAnalysis(ctx context.Context, key cache.Key) (cache.Entry, bool, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT analysis_type, analysis_data, analyzed_at
		FROM project_analyses
		WHERE project_id = ? AND model_used = ? AND content_hash = ?
		ORDER BY analyzed_at DESC
		LIMIT 1`,
		key.ProjectID, key.Model, key.ContentHash,
	)

	e := cache.Entry{Key: key}
	var data, analyzed string
	err := row.Scan(&e.AnalysisType, &data, &analyzed)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("lookup analysis: %w", err)
	}
	if e.AnalyzedAt, err = parseTime(analyzed); err != nil {
		return cache.Entry{}, false, err
	}
	e.Data = json.RawMessage(data)
	return e, true, nil
}

func (db *DB) UpsertAnalysis(ctx context.Context, e cache.Entry) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO project_analyses (project_id, model_used, analysis_type, content_hash, analysis_data, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, model_used, content_hash) DO UPDATE SET
			analysis_type = excluded.analysis_type,
			analysis_data = excluded.analysis_data,
			analyzed_at = excluded.analyzed_at`,
		e.ProjectID, e.Model, e.AnalysisType, e.ContentHash, string(e.Data), formatTime(e.AnalyzedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}
	return nil
}

func (db *DB) SaveJob(ctx context.Context, j batch.Job) error {
	var completed any
	if j.CompletedAt != nil {
		completed = formatTime(*j.CompletedAt)
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO analysis_jobs (id, job_type, project_id, model, status, total_stories, processed_count, error, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			total_stories = excluded.total_stories,
			processed_count = excluded.processed_count,
			error = excluded.error,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at`,
		j.ID.String(), j.JobType, j.ProjectID, j.Model, string(j.Status), j.TotalStories, j.ProcessedCount, j.Error,
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt), completed,
	)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (batch.Job, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT job_type, project_id, model, status, total_stories, processed_count, error, created_at, updated_at, completed_at
		FROM analysis_jobs WHERE id = ?`, id.String())

	j := batch.Job{ID: id}
	var (
		status           string
		created, updated string
		completed        *string
	)
	err := row.Scan(&j.JobType, &j.ProjectID, &j.Model, &status, &j.TotalStories, &j.ProcessedCount, &j.Error, &created, &updated, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return batch.Job{}, batch.ErrJobNotFound
	}
	if err != nil {
		return batch.Job{}, fmt.Errorf("get job: %w", err)
	}
	j.Status = batch.JobStatus(status)
	if j.CreatedAt, err = parseTime(created); err != nil {
		return batch.Job{}, err
	}
	if j.UpdatedAt, err = parseTime(updated); err != nil {
		return batch.Job{}, err
	}
	if completed != nil {
		at, err := parseTime(*completed)
		if err != nil {
			return batch.Job{}, err
		}
		j.CompletedAt = &at
	}
	return j, nil
}
