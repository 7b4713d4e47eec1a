// Package batch fans transcript analysis out across a project and merges the
// per-transcript results.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/yarning/internal/analysis"
	"github.com/MikeSquared-Agency/yarning/internal/llm"
)

const (
	DefaultBatchSize = 2
	DefaultDelay     = 2000 * time.Millisecond
)

// Analyzer is the per-transcript work. *analysis.Analyzer satisfies it.
type Analyzer interface {
	AnalyzeTranscript(ctx context.Context, t analysis.Transcript, pc *analysis.ProjectContext) analysis.QuoteExtraction
	AssessImpact(ctx context.Context, t analysis.Transcript) analysis.ImpactAssessment
}

// Strategy controls how transcripts are scheduled. A BatchSize of zero runs
// everything at once.
type Strategy struct {
	BatchSize int
	Delay     time.Duration
}

// StrategyFor picks batching for rate-limited models and full parallelism
// for the rest.
func StrategyFor(m llm.Model, batchSize int, delay time.Duration) Strategy {
	if !m.RateLimited {
		return Strategy{}
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return Strategy{BatchSize: batchSize, Delay: delay}
}

// Batches splits n items into index ranges.
func (s Strategy) Batches(n int) [][2]int {
	size := s.BatchSize
	if size <= 0 || size > n {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

type Options struct {
	Model    string
	Strategy Strategy
	Context  *analysis.ProjectContext
}

// SleepFunc pauses between batches. It returns early with ctx.Err() on cancellation.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

type Option func(*Orchestrator)

// WithSleep replaces the inter-batch pause.
func WithSleep(fn SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithJobListener is called with a snapshot after every job change.
func WithJobListener(fn func(Job)) Option {
	return func(o *Orchestrator) { o.onJob = fn }
}

type Orchestrator struct {
	analyzer Analyzer
	jobs     JobStore
	sleep    SleepFunc
	onJob    func(Job)
	logger   *slog.Logger
}

func New(analyzer Analyzer, jobs JobStore, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer: analyzer,
		jobs:     jobs,
		sleep:    sleepContext,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run analyses every transcript and merges the results. It never returns an
// error: per-transcript failures are recorded in the outcome list and the
// job ends failed only when nothing succeeded. job may be nil.
func (o *Orchestrator) Run(ctx context.Context, job *Job, transcripts []analysis.Transcript, opts Options) *ProjectAnalysis {
	var mu sync.Mutex
	o.updateJob(ctx, job, &mu, func(j *Job) error { return j.Start(len(transcripts)) })

	outcomes := make([]Outcome, len(transcripts))
	batches := opts.Strategy.Batches(len(transcripts))

	o.logger.Info("batch run starting",
		"model", opts.Model,
		"transcripts", len(transcripts),
		"batches", len(batches),
		"batch_size", opts.Strategy.BatchSize,
		"delay_ms", opts.Strategy.Delay.Milliseconds(),
	)

	var stopped error
	for i, b := range batches {
		if stopped == nil {
			stopped = ctx.Err()
		}
		if stopped != nil {
			for k := b[0]; k < b[1]; k++ {
				outcomes[k] = failed(transcripts[k], stopped)
			}
			continue
		}

		var g errgroup.Group
		for k := b[0]; k < b[1]; k++ {
			g.Go(func() error {
				outcomes[k] = o.analyzeOne(ctx, transcripts[k], opts.Context)
				o.updateJob(ctx, job, &mu, (*Job).Advance)
				return nil
			})
		}
		_ = g.Wait()

		if i < len(batches)-1 && opts.Strategy.Delay > 0 {
			o.logger.Debug("pausing between batches", "batch", i+1, "delay_ms", opts.Strategy.Delay.Milliseconds())
			if err := o.sleep(ctx, opts.Strategy.Delay); err != nil {
				stopped = err
			}
		}
	}

	result := Merge(opts.Model, transcripts, outcomes)

	switch {
	case stopped != nil:
		o.updateJob(ctx, job, &mu, func(j *Job) error { return j.Fail(stopped.Error()) })
	case len(transcripts) > 0 && result.FailedCount == len(transcripts):
		o.updateJob(ctx, job, &mu, func(j *Job) error { return j.Fail("every transcript failed") })
	default:
		o.updateJob(ctx, job, &mu, (*Job).Complete)
	}

	o.logger.Info("batch run complete",
		"model", opts.Model,
		"transcripts", len(transcripts),
		"failed", result.FailedCount,
		"fallback", result.FallbackCount,
		"quotes", len(result.Quotes),
		"insights", result.Impact.TotalInsights,
	)
	return result
}

// analyzeOne runs the quote and impact calls concurrently.
func (o *Orchestrator) analyzeOne(ctx context.Context, t analysis.Transcript, pc *analysis.ProjectContext) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("transcript analysis panicked", "transcript_id", t.ID, "panic", r)
			out = failed(t, fmt.Errorf("panic: %v", r))
		}
	}()

	var (
		quotes analysis.QuoteExtraction
		assess analysis.ImpactAssessment
		g      errgroup.Group
	)
	g.Go(func() (err error) {
		defer recoverInto(&err)
		quotes = o.analyzer.AnalyzeTranscript(ctx, t, pc)
		return nil
	})
	g.Go(func() (err error) {
		defer recoverInto(&err)
		assess = o.analyzer.AssessImpact(ctx, t)
		return nil
	})
	if err := g.Wait(); err != nil {
		o.logger.Error("transcript analysis failed", "transcript_id", t.ID, "error", err)
		return failed(t, err)
	}
	return Outcome{
		Status:          StatusOK,
		TranscriptID:    t.ID,
		StorytellerID:   t.StorytellerID,
		StorytellerName: t.StorytellerName,
		Quotes:          &quotes,
		Impact:          &assess,
	}
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}

func failed(t analysis.Transcript, err error) Outcome {
	return Outcome{
		Status:          StatusFailed,
		TranscriptID:    t.ID,
		StorytellerID:   t.StorytellerID,
		StorytellerName: t.StorytellerName,
		Error:           err.Error(),
	}
}

// updateJob applies a transition and publishes the snapshot. The lock is
// held through the save so snapshots land in order.
func (o *Orchestrator) updateJob(ctx context.Context, job *Job, mu *sync.Mutex, change func(*Job) error) {
	if job == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if err := change(job); err != nil {
		o.logger.Warn("job transition rejected", "job_id", job.ID, "error", err)
		return
	}
	snapshot := *job

	if o.jobs != nil {
		if err := o.jobs.SaveJob(context.WithoutCancel(ctx), snapshot); err != nil {
			o.logger.Warn("failed to save job", "job_id", snapshot.ID, "error", err)
		}
	}
	if o.onJob != nil {
		o.onJob(snapshot)
	}
}
