package events

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/MikeSquared-Agency/yarning/internal/batch"
)

func TestParseAnalysisRequested(t *testing.T) {
	req, err := ParseAnalysisRequested([]byte(`{"project_id":" p1 ","intelligent":true,"model":"gpt-4o-mini","regenerate":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ProjectID != "p1" {
		t.Errorf("expected trimmed project id, got %q", req.ProjectID)
	}
	if !req.Intelligent || !req.Regenerate || req.Model != "gpt-4o-mini" {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestParseAnalysisRequested_Invalid(t *testing.T) {
	for _, raw := range []string{`not json`, `{}`, `{"project_id":"   "}`} {
		if _, err := ParseAnalysisRequested([]byte(raw)); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (r *recordingPublisher) Publish(subject string, data any) error {
	b, _ := json.Marshal(data)
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, b)
	return r.err
}

func TestNotifier(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub, slog.New(slog.NewTextHandler(io.Discard, nil)))

	job := batch.NewJob("p1", "gpt-4o-mini")
	n.JobUpdated(*job)
	n.AnalysisCompleted(AnalysisCompleted{ProjectID: "p1", ContentHash: "abc", Degraded: true})

	if len(pub.subjects) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.subjects))
	}
	if pub.subjects[0] != SubjectJobUpdated || pub.subjects[1] != SubjectAnalysisCompleted {
		t.Errorf("unexpected subjects: %v", pub.subjects)
	}

	var got map[string]any
	if err := json.Unmarshal(pub.payloads[0], &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "pending" || got["project_id"] != "p1" {
		t.Errorf("unexpected job payload: %v", got)
	}
}

func TestNotifier_NilAndFailingPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var nilNotifier *Notifier
	nilNotifier.JobUpdated(batch.Job{})

	NewNotifier(nil, logger).AnalysisCompleted(AnalysisCompleted{})

	failing := &recordingPublisher{err: errors.New("nats down")}
	NewNotifier(failing, logger).AnalysisCompleted(AnalysisCompleted{ProjectID: "p1"})
	if len(failing.subjects) != 1 {
		t.Errorf("expected publish attempt, got %d", len(failing.subjects))
	}
}
