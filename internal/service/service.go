// Package service runs a project analysis end to end: load, hash, cache,
// analyse, recommend, store. Results are wrapped in the response envelope
// the API returns.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/yarning/internal/analysis"
	"github.com/MikeSquared-Agency/yarning/internal/batch"
	"github.com/MikeSquared-Agency/yarning/internal/cache"
	"github.com/MikeSquared-Agency/yarning/internal/events"
	"github.com/MikeSquared-Agency/yarning/internal/impact"
	"github.com/MikeSquared-Agency/yarning/internal/llm"
	"github.com/MikeSquared-Agency/yarning/internal/slack"
)

const (
	TypeLegacy      = "legacy"
	TypeIntelligent = "intelligent_ai"

	// legacyModelKey fills the model slot of the cache key for pattern-only runs.
	legacyModelKey = "legacy-pattern"

	noTranscriptsMessage = "No transcripts found for this project"
)

var ErrProjectNotFound = errors.New("project not found")

// Repository reads projects and their transcripts. Both store packages
// satisfy it.
type Repository interface {
	GetProject(ctx context.Context, projectID string) (*analysis.Project, error)
	ListTranscripts(ctx context.Context, projectID string) ([]analysis.Transcript, error)
}

// Notifier receives lifecycle events. *events.Notifier satisfies it.
type Notifier interface {
	JobUpdated(job batch.Job)
	AnalysisCompleted(ev events.AnalysisCompleted)
}

// Reviewer is told about fresh analyses that flagged stories for Elder
// review. *slack.Poster satisfies it.
type Reviewer interface {
	PostElderReview(ctx context.Context, review slack.ElderReview) (string, error)
}

type Request struct {
	ProjectID   string
	Intelligent bool
	Model       string
	Regenerate  bool
}

// Envelope is the response for one analysis request. Exactly one of
// IntelligentAnalysis and Analysis is set, matching AnalysisType.
type Envelope struct {
	Success             bool            `json:"success"`
	AnalysisType        string          `json:"analysis_type"`
	ModelUsed           string          `json:"model_used,omitempty"`
	Cached              bool            `json:"cached"`
	CachedAt            *time.Time      `json:"cached_at,omitempty"`
	ContentHash         string          `json:"content_hash,omitempty"`
	IntelligentAnalysis json.RawMessage `json:"intelligentAnalysis,omitempty"`
	Analysis            json.RawMessage `json:"analysis,omitempty"`
	Message             string          `json:"message,omitempty"`
	GeneratedAt         time.Time       `json:"generatedAt"`
}

func (e *Envelope) setPayload(data json.RawMessage) {
	if e.AnalysisType == TypeIntelligent {
		e.IntelligentAnalysis = data
		return
	}
	e.Analysis = data
}

// Report is the cached analysis payload.
type Report struct {
	ProjectID        string `json:"project_id"`
	ProjectName      string `json:"project_name"`
	OrganizationName string `json:"organization_name,omitempty"`
	StorytellerCount int    `json:"storyteller_count"`
	*batch.ProjectAnalysis
	Recommendations analysis.Recommendations `json:"recommendations"`
}

type Config struct {
	// Timeout bounds each model call.
	Timeout    time.Duration
	BatchSize  int
	BatchDelay time.Duration
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithReviewer(r Reviewer) Option {
	return func(s *Service) { s.reviewer = r }
}

// WithSleep replaces the pause between rate-limited batches.
func WithSleep(fn batch.SleepFunc) Option {
	return func(s *Service) { s.sleep = fn }
}

type Service struct {
	repo     Repository
	registry *llm.Registry
	cache    *cache.Cache
	jobs     batch.JobStore
	budget   *llm.Budget
	matcher  *impact.Matcher
	notifier Notifier
	reviewer Reviewer
	sleep    batch.SleepFunc
	cfg      Config
	logger   *slog.Logger

	wg sync.WaitGroup
}

func New(repo Repository, registry *llm.Registry, c *cache.Cache, jobs batch.JobStore, budget *llm.Budget, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		registry: registry,
		cache:    c,
		jobs:     jobs,
		budget:   budget,
		matcher:  impact.NewMatcher(),
		notifier: events.NewNotifier(nil, logger),
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// plan is a validated request.
type plan struct {
	req      Request
	project  *analysis.Project
	model    llm.Model
	provider llm.Provider
}

func (p *plan) analysisType() string {
	if p.req.Intelligent {
		return TypeIntelligent
	}
	return TypeLegacy
}

func (p *plan) cacheModel() string {
	if p.req.Intelligent {
		return p.model.ID
	}
	return legacyModelKey
}

// Analyze runs the request synchronously.
func (s *Service) Analyze(ctx context.Context, req Request) (*Envelope, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, p, nil)
}

// StartJob validates the request, records a pending job and runs the
// analysis in the background. The returned job is a snapshot; poll GetJob
// for progress.
func (s *Service) StartJob(ctx context.Context, req Request) (*batch.Job, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	job := batch.NewJob(p.project.ID, p.model.ID)
	if err := s.jobs.SaveJob(ctx, *job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	s.notifier.JobUpdated(*job)
	snapshot := *job

	s.logger.Info("analysis job queued",
		"job_id", job.ID,
		"project_id", p.project.ID,
		"analysis_type", p.analysisType(),
		"model", p.model.ID,
	)

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.run(bg, p, job); err != nil {
			s.logger.Error("analysis job failed", "job_id", job.ID, "project_id", p.project.ID, "error", err)
			if !job.Done() && job.Fail(err.Error()) == nil {
				s.saveJob(bg, *job)
			}
		}
	}()
	return &snapshot, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (batch.Job, error) {
	return s.jobs.GetJob(ctx, id)
}

// Wait blocks until background jobs finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) prepare(ctx context.Context, req Request) (*plan, error) {
	p := &plan{req: req}
	if req.Intelligent {
		m, provider, err := s.registry.Resolve(req.Model)
		if err != nil {
			return nil, err
		}
		p.model, p.provider = m, provider
	}

	project, err := s.repo.GetProject(ctx, req.ProjectID)
	if errors.Is(err, analysis.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, req.ProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	p.project = project
	return p, nil
}

func (s *Service) run(ctx context.Context, p *plan, job *batch.Job) (*Envelope, error) {
	transcripts, err := s.repo.ListTranscripts(ctx, p.project.ID)
	if err != nil {
		return nil, fmt.Errorf("load transcripts: %w", err)
	}

	env := &Envelope{
		Success:      true,
		AnalysisType: p.analysisType(),
		ModelUsed:    p.model.ID,
		GeneratedAt:  time.Now().UTC(),
	}

	if len(transcripts) == 0 {
		s.logger.Info("no transcripts to analyse", "project_id", p.project.ID)
		data, err := json.Marshal(s.report(p, batch.Merge(p.model.ID, nil, nil), nil, emptyRecommendations()))
		if err != nil {
			return nil, fmt.Errorf("encode analysis: %w", err)
		}
		env.setPayload(data)
		env.Message = noTranscriptsMessage
		s.settleJob(ctx, job, 0)
		return env, nil
	}

	texts := make([]string, len(transcripts))
	for i, t := range transcripts {
		texts[i] = t.Text
	}
	key := cache.Key{ProjectID: p.project.ID, Model: p.cacheModel(), ContentHash: cache.ContentHash(texts)}
	env.ContentHash = key.ContentHash

	if e, ok := s.cache.Lookup(ctx, key, p.req.Regenerate); ok {
		at := e.AnalyzedAt
		env.Cached = true
		env.CachedAt = &at
		env.setPayload(e.Data)
		s.settleJob(ctx, job, len(transcripts))
		s.completed(p, key, true, degraded(e.Data))
		return env, nil
	}

	start := time.Now()
	result := s.orchestrate(ctx, p, job, transcripts)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	recs := s.recommend(ctx, p, result, transcripts)
	data, err := json.Marshal(s.report(p, result, transcripts, recs))
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}

	if result.FailedCount == 0 {
		s.cache.Put(context.WithoutCancel(ctx), cache.Entry{Key: key, AnalysisType: env.AnalysisType, Data: data})
	} else {
		s.logger.Warn("partial analysis not cached",
			"project_id", p.project.ID,
			"failed", result.FailedCount,
			"transcripts", len(transcripts),
		)
	}

	s.logger.Info("analysis complete",
		"project_id", p.project.ID,
		"analysis_type", env.AnalysisType,
		"model", p.model.ID,
		"transcripts", len(transcripts),
		"degraded", result.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	env.setPayload(data)
	s.completed(p, key, false, result.Degraded)
	s.requestReview(ctx, p, result)
	return env, nil
}

func (s *Service) orchestrate(ctx context.Context, p *plan, job *batch.Job, transcripts []analysis.Transcript) *batch.ProjectAnalysis {
	opts := batch.Options{Model: p.model.ID, Context: p.project.Context}

	var analyzer batch.Analyzer
	if p.req.Intelligent {
		analyzer = analysis.New(p.provider, s.matcher, s.budget, s.cfg.Timeout, s.logger)
		opts.Strategy = batch.StrategyFor(p.model, s.cfg.BatchSize, s.cfg.BatchDelay)
	} else {
		analyzer = analysis.NewPatternAnalyzer(s.matcher)
	}

	batchOpts := []batch.Option{batch.WithJobListener(s.notifier.JobUpdated)}
	if s.sleep != nil {
		batchOpts = append(batchOpts, batch.WithSleep(s.sleep))
	}
	return batch.New(analyzer, s.jobs, s.logger, batchOpts...).Run(ctx, job, transcripts, opts)
}

// recommend uses the request's model, or the default model for legacy runs
// when one is configured.
func (s *Service) recommend(ctx context.Context, p *plan, result *batch.ProjectAnalysis, transcripts []analysis.Transcript) analysis.Recommendations {
	provider := p.provider
	if provider == nil {
		if _, def, err := s.registry.Resolve(""); err == nil {
			provider = def
		}
	}

	var types []impact.ImpactType
	for _, t := range impact.AllTypes {
		if result.Impact.ImpactTypeCounts[t] > 0 {
			types = append(types, t)
		}
	}
	samples := make([]string, 0, len(transcripts))
	for _, t := range transcripts {
		samples = append(samples, t.Text)
	}

	return analysis.NewRecommender(provider, s.cfg.Timeout, s.logger).Generate(ctx, analysis.RecommendationInput{
		ProjectName:      p.project.Name,
		OrganizationName: p.project.OrganizationName,
		Themes:           result.TopThemes(len(result.Themes)),
		ImpactTypes:      types,
		StorytellerCount: storytellerCount(transcripts),
		Samples:          samples,
	})
}

func (s *Service) report(p *plan, result *batch.ProjectAnalysis, transcripts []analysis.Transcript, recs analysis.Recommendations) Report {
	return Report{
		ProjectID:        p.project.ID,
		ProjectName:      p.project.Name,
		OrganizationName: p.project.OrganizationName,
		StorytellerCount: storytellerCount(transcripts),
		ProjectAnalysis:  result,
		Recommendations:  recs,
	}
}

// settleJob finishes a job that needed no batch run.
func (s *Service) settleJob(ctx context.Context, job *batch.Job, total int) {
	if job == nil {
		return
	}
	if err := job.Start(total); err != nil {
		s.logger.Warn("job transition rejected", "job_id", job.ID, "error", err)
		return
	}
	job.ProcessedCount = total
	if err := job.Complete(); err != nil {
		s.logger.Warn("job transition rejected", "job_id", job.ID, "error", err)
		return
	}
	s.saveJob(ctx, *job)
}

func (s *Service) saveJob(ctx context.Context, job batch.Job) {
	if err := s.jobs.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Warn("failed to save job", "job_id", job.ID, "error", err)
	}
	s.notifier.JobUpdated(job)
}

func (s *Service) completed(p *plan, key cache.Key, cached, degraded bool) {
	s.notifier.AnalysisCompleted(events.AnalysisCompleted{
		ProjectID:    p.project.ID,
		AnalysisType: p.analysisType(),
		Model:        p.model.ID,
		ContentHash:  key.ContentHash,
		Cached:       cached,
		Degraded:     degraded,
	})
}

func (s *Service) requestReview(ctx context.Context, p *plan, result *batch.ProjectAnalysis) {
	if s.reviewer == nil || result.Sensitivity.ElderReviewCount == 0 {
		return
	}
	flagged := make(map[string]bool, len(result.Sensitivity.ElderReviewStories))
	for _, id := range result.Sensitivity.ElderReviewStories {
		flagged[id] = true
	}

	review := slack.ElderReview{
		ProjectID:    p.project.ID,
		ProjectName:  p.project.Name,
		AnalysisType: p.analysisType(),
		Model:        p.model.ID,
		HighestLevel: result.Sensitivity.HighestLevel,
	}
	for _, st := range result.Storytellers {
		if flagged[st.TranscriptID] {
			review.Transcripts = append(review.Transcripts, slack.ReviewTranscript{
				TranscriptID:    st.TranscriptID,
				StorytellerName: st.StorytellerName,
				Summary:         st.Summary,
			})
		}
	}

	if _, err := s.reviewer.PostElderReview(context.WithoutCancel(ctx), review); err != nil {
		s.logger.Warn("failed to request elder review", "project_id", p.project.ID, "error", err)
	}
}

func storytellerCount(transcripts []analysis.Transcript) int {
	seen := make(map[string]struct{}, len(transcripts))
	for _, t := range transcripts {
		seen[t.StorytellerID] = struct{}{}
	}
	return len(seen)
}

func emptyRecommendations() analysis.Recommendations {
	return analysis.Recommendations{
		ContinuationStrategies:        []string{},
		KeyConnections:                []string{},
		SystemChangeOpportunities:     []string{},
		CommunityEngagementStrategies: []string{},
	}
}

// degraded reads the flag back out of a cached payload.
func degraded(data json.RawMessage) bool {
	var v struct {
		Degraded bool `json:"degraded"`
	}
	_ = json.Unmarshal(data, &v)
	return v.Degraded
}
