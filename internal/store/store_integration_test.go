//go:build integration

package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/yarning/internal/batch"
	"github.com/MikeSquared-Agency/yarning/internal/cache"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_AnalysisUpsertIsLastWriteWins(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	key := cache.Key{
		ProjectID:   "integration-" + uuid.New().String()[:8],
		Model:       "gpt-4o-mini",
		ContentHash: cache.ContentHash([]string{"a", "b"}),
	}

	_, ok, err := s.LookupAnalysis(ctx, key)
	if err != nil {
		t.Fatalf("LookupAnalysis failed: %v", err)
	}
	if ok {
		t.Fatal("expected miss before first write")
	}

	first := cache.Entry{Key: key, AnalysisType: "intelligent_ai", Data: json.RawMessage(`{"v":1}`), AnalyzedAt: time.Now().UTC()}
	if err := s.UpsertAnalysis(ctx, first); err != nil {
		t.Fatalf("UpsertAnalysis failed: %v", err)
	}
	second := first
	second.Data = json.RawMessage(`{"v":2}`)
	second.AnalyzedAt = first.AnalyzedAt.Add(time.Second)
	if err := s.UpsertAnalysis(ctx, second); err != nil {
		t.Fatalf("second UpsertAnalysis failed: %v", err)
	}

	got, ok, err := s.LookupAnalysis(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	var v struct{ V int }
	if err := json.Unmarshal(got.Data, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.V != 2 {
		t.Errorf("expected last write to win, got v=%d", v.V)
	}
}

func TestIntegration_JobRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	job := batch.NewJob("integration-project", "claude-sonnet-4-20250514")
	if err := s.SaveJob(ctx, *job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	if err := job.Start(3); err != nil {
		t.Fatal(err)
	}
	_ = job.Advance()
	if err := s.SaveJob(ctx, *job); err != nil {
		t.Fatalf("SaveJob (update) failed: %v", err)
	}

	got, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != batch.JobProcessing {
		t.Errorf("expected processing, got %q", got.Status)
	}
	if got.ProcessedCount != 1 || got.TotalStories != 3 {
		t.Errorf("expected 1/3, got %d/%d", got.ProcessedCount, got.TotalStories)
	}

	_, err = s.GetJob(ctx, uuid.New())
	if !errors.Is(err, batch.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
