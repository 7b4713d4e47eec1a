package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/yarning/internal/batch"
	"github.com/MikeSquared-Agency/yarning/internal/llm"
	"github.com/MikeSquared-Agency/yarning/internal/service"
)

type fakeAnalyzer struct {
	lastReq service.Request
	err     error
	job     *batch.Job
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req service.Request) (*service.Envelope, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.Envelope{
		Success:      true,
		AnalysisType: service.TypeIntelligent,
		ModelUsed:    req.Model,
		Analysis:     json.RawMessage(`{"total_transcripts":2}`),
		GeneratedAt:  time.Now(),
	}, nil
}

func (f *fakeAnalyzer) StartJob(_ context.Context, req service.Request) (*batch.Job, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

func (f *fakeAnalyzer) GetJob(_ context.Context, id uuid.UUID) (batch.Job, error) {
	if f.job == nil || f.job.ID != id {
		return batch.Job{}, batch.ErrJobNotFound
	}
	return *f.job, nil
}

func newTestServer(fa *fakeAnalyzer, token string) *Server {
	return NewServer(8760, token, fa, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(srv *Server, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeAnalyzer{}, "secret")

	w := serve(srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	fa := &fakeAnalyzer{}
	srv := newTestServer(fa, "")

	w := serve(srv, "GET", "/api/v1/projects/p1/analysis?intelligent=true&model=gpt-4o-mini&regenerate=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	want := service.Request{ProjectID: "p1", Intelligent: true, Model: "gpt-4o-mini", Regenerate: true}
	if fa.lastReq != want {
		t.Errorf("expected request %+v, got %+v", want, fa.lastReq)
	}

	var env map[string]any
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if env["success"] != true {
		t.Errorf("expected success true, got %v", env["success"])
	}
	if env["model_used"] != "gpt-4o-mini" {
		t.Errorf("expected model_used gpt-4o-mini, got %v", env["model_used"])
	}
	if _, ok := env["generatedAt"]; !ok {
		t.Error("expected generatedAt in envelope")
	}
}

func TestAnalyzeEndpoint_Defaults(t *testing.T) {
	fa := &fakeAnalyzer{}
	srv := newTestServer(fa, "")

	w := serve(srv, "GET", "/api/v1/projects/p1/analysis", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fa.lastReq.Intelligent || fa.lastReq.Regenerate || fa.lastReq.Model != "" {
		t.Errorf("expected legacy defaults, got %+v", fa.lastReq)
	}
}

func TestAnalyzeEndpoint_BadFlag(t *testing.T) {
	srv := newTestServer(&fakeAnalyzer{}, "")

	w := serve(srv, "GET", "/api/v1/projects/p1/analysis?intelligent=maybe", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnalyzeEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("%w: p1", service.ErrProjectNotFound), http.StatusNotFound},
		{"unknown model", fmt.Errorf("%w: %q", llm.ErrUnknownModel, "gpt-9"), http.StatusBadRequest},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeAnalyzer{err: tt.err}, "")

			w := serve(srv, "GET", "/api/v1/projects/p1/analysis", "")
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			body := decodeError(t, w)
			if body.Error == "" {
				t.Error("expected error message")
			}
			if tt.status == http.StatusInternalServerError && body.Details != "connection refused" {
				t.Errorf("expected details, got %q", body.Details)
			}
		})
	}
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(&fakeAnalyzer{}, "secret")

	if w := serve(srv, "GET", "/api/v1/projects/p1/analysis", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if w := serve(srv, "GET", "/api/v1/projects/p1/analysis", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := serve(srv, "GET", "/api/v1/projects/p1/analysis", "secret"); w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
}

func TestJobEndpoints(t *testing.T) {
	job := batch.NewJob("p1", "gpt-4o-mini")
	fa := &fakeAnalyzer{job: job}
	srv := newTestServer(fa, "")

	w := serve(srv, "POST", "/api/v1/projects/p1/analysis/jobs?intelligent=true&model=gpt-4o-mini", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/api/v1/analysis/jobs/"+job.ID.String() {
		t.Errorf("unexpected location %q", loc)
	}

	w = serve(srv, "GET", "/api/v1/analysis/jobs/"+job.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got batch.Job
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode job: %v", err)
	}
	if got.ID != job.ID || got.Status != batch.JobPending {
		t.Errorf("unexpected job %+v", got)
	}

	if w := serve(srv, "GET", "/api/v1/analysis/jobs/"+uuid.NewString(), ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", w.Code)
	}
	if w := serve(srv, "GET", "/api/v1/analysis/jobs/not-a-uuid", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", w.Code)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(&fakeAnalyzer{}, "")

	w := serve(srv, "GET", "/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
