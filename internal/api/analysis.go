package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/yarning/internal/batch"
	"github.com/MikeSquared-Agency/yarning/internal/llm"
	"github.com/MikeSquared-Agency/yarning/internal/service"
)

// analyze handles GET /api/v1/projects/{projectID}/analysis
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	env, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// startJob handles POST /api/v1/projects/{projectID}/analysis/jobs
func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	job, err := s.analyzer.StartJob(r.Context(), req)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	w.Header().Set("Location", "/api/v1/analysis/jobs/"+job.ID.String())
	writeJSON(w, http.StatusAccepted, job)
}

// getJob handles GET /api/v1/analysis/jobs/{jobID}
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id", err.Error())
		return
	}

	job, err := s.analyzer.GetJob(r.Context(), id)
	if errors.Is(err, batch.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found", id.String())
		return
	}
	if err != nil {
		s.logger.Error("failed to load job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) fail(w http.ResponseWriter, req service.Request, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, "project not found", req.ProjectID)
	case errors.Is(err, llm.ErrUnknownModel):
		writeError(w, http.StatusBadRequest, "unsupported model", err.Error())
	default:
		s.logger.Error("analysis failed", "project_id", req.ProjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to analyse project", err.Error())
	}
}

func parseRequest(r *http.Request) (service.Request, error) {
	q := r.URL.Query()
	req := service.Request{
		ProjectID: strings.TrimSpace(chi.URLParam(r, "projectID")),
		Model:     strings.TrimSpace(q.Get("model")),
	}
	if req.ProjectID == "" {
		return req, errors.New("project id is required")
	}

	var err error
	if req.Intelligent, err = boolParam(q.Get("intelligent")); err != nil {
		return req, fmt.Errorf("intelligent: %w", err)
	}
	if req.Regenerate, err = boolParam(q.Get("regenerate")); err != nil {
		return req, fmt.Errorf("regenerate: %w", err)
	}
	return req, nil
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
