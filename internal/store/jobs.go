package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/yarning/internal/batch"
)

// SaveJob inserts or replaces a job snapshot.
func (s *Store) SaveJob(ctx context.Context, j batch.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_jobs (id, job_type, project_id, model, status, total_stories, processed_count, error, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id)
		DO UPDATE SET
			status = $5,
			total_stories = $6,
			processed_count = $7,
			error = $8,
			updated_at = $10,
			completed_at = $11`,
		j.ID, j.JobType, j.ProjectID, j.Model, string(j.Status), j.TotalStories, j.ProcessedCount, j.Error, j.CreatedAt, j.UpdatedAt, j.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (batch.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, job_type, project_id, model, status, total_stories, processed_count, error, created_at, updated_at, completed_at
		FROM analysis_jobs
		WHERE id = $1`,
		id,
	)

	var (
		j      batch.Job
		status string
	)
	err := row.Scan(&j.ID, &j.JobType, &j.ProjectID, &j.Model, &status, &j.TotalStories, &j.ProcessedCount, &j.Error, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return batch.Job{}, batch.ErrJobNotFound
	}
	if err != nil {
		return batch.Job{}, fmt.Errorf("get job: %w", err)
	}
	j.Status = batch.JobStatus(status)
	return j, nil
}
