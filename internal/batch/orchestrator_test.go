package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/yarning/internal/analysis"
	"github.com/MikeSquared-Agency/yarning/internal/impact"
	"github.com/MikeSquared-Agency/yarning/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAnalyzer struct {
	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
	panicOn   string
	fallback  map[string]bool
	work      time.Duration
}

func (f *fakeAnalyzer) enter() func() {
	n := f.active.Add(1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	return func() { f.active.Add(-1) }
}

func (f *fakeAnalyzer) AnalyzeTranscript(_ context.Context, t analysis.Transcript, _ *analysis.ProjectContext) analysis.QuoteExtraction {
	defer f.enter()()
	f.calls.Add(1)
	time.Sleep(f.work)
	if t.ID == f.panicOn {
		panic("provider exploded")
	}
	source := analysis.SourceModel
	if f.fallback[t.ID] {
		source = analysis.SourceFallback
	}
	return analysis.QuoteExtraction{
		TranscriptID: t.ID,
		Source:       source,
		Analysis: analysis.TranscriptAnalysis{
			Themes:                   []string{"Country", "family"},
			Summary:                  "summary " + t.ID,
			CulturalSensitivityLevel: analysis.SensitivityLow,
			KeyQuotes: []analysis.Quote{
				{Text: "quote from " + t.ID, Theme: "community strength", ImpactScore: float64(len(t.Text) % 5)},
			},
		},
	}
}

func (f *fakeAnalyzer) AssessImpact(_ context.Context, t analysis.Transcript) analysis.ImpactAssessment {
	time.Sleep(f.work)
	return analysis.ImpactAssessment{
		TranscriptID: t.ID,
		Source:       analysis.SourceModel,
		Insights: []impact.ImpactInsight{{
			ImpactType:       impact.CulturalProtocol,
			Evidence:         impact.Evidence{Quote: t.Text, Confidence: 0.8},
			ImpactDimensions: impact.Dimensions{CulturalContinuity: 0.9},
			StorytellerID:    t.StorytellerID,
		}},
	}
}

func transcripts(n int) []analysis.Transcript {
	out := make([]analysis.Transcript, n)
	for i := range out {
		out[i] = analysis.Transcript{
			ID:              fmt.Sprintf("t%d", i),
			StorytellerID:   fmt.Sprintf("s%d", i),
			StorytellerName: fmt.Sprintf("Storyteller %d", i),
			Text:            fmt.Sprintf("transcript text %d %s", i, string(make([]byte, i))),
		}
	}
	return out
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	seen   []int32
	calls  *atomic.Int32
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.seen = append(s.seen, s.calls.Load())
	return nil
}

func TestRun_RateLimitedDelays(t *testing.T) {
	fa := &fakeAnalyzer{work: 5 * time.Millisecond}
	rec := &sleepRecorder{calls: &fa.calls}
	o := New(fa, nil, discardLogger(), WithSleep(rec.sleep))

	model, _ := llm.LookupKnown("claude-sonnet-4-20250514")
	res := o.Run(context.Background(), nil, transcripts(5), Options{
		Model:    model.ID,
		Strategy: StrategyFor(model, 2, 2000*time.Millisecond),
	})

	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, rec.delays)
	// Each pause happens after a complete batch.
	assert.Equal(t, []int32{2, 4}, rec.seen)
	assert.LessOrEqual(t, fa.maxActive.Load(), int32(2))
	assert.Equal(t, int32(5), fa.calls.Load())
	assert.Equal(t, 5, res.TotalTranscripts)
	assert.False(t, res.Degraded)
}

func TestRun_UnlimitedRunsAllAtOnce(t *testing.T) {
	fa := &fakeAnalyzer{work: 30 * time.Millisecond}
	rec := &sleepRecorder{calls: &fa.calls}
	o := New(fa, nil, discardLogger(), WithSleep(rec.sleep))

	model, _ := llm.LookupKnown("gpt-4o-mini")
	o.Run(context.Background(), nil, transcripts(6), Options{Strategy: StrategyFor(model, 2, time.Second)})

	assert.Empty(t, rec.delays)
	assert.Equal(t, int32(6), fa.maxActive.Load())
}

func TestRun_PartialFailureIsNotFatal(t *testing.T) {
	fa := &fakeAnalyzer{panicOn: "t1", fallback: map[string]bool{"t2": true}}
	jobs := NewMemoryJobStore()
	var snapshots []Job
	o := New(fa, jobs, discardLogger(), WithJobListener(func(j Job) { snapshots = append(snapshots, j) }))

	job := NewJob("p1", "gpt-4o-mini")
	res := o.Run(context.Background(), job, transcripts(3), Options{})

	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, 1, res.FallbackCount)
	assert.True(t, res.Degraded)
	assert.Len(t, res.Quotes, 2)
	assert.Equal(t, StatusFailed, res.Storytellers[1].Status)
	assert.Contains(t, res.Storytellers[1].Error, "provider exploded")

	assert.Equal(t, JobCompleted, job.Status)
	assert.Equal(t, 3, job.ProcessedCount)
	saved, err := jobs.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, saved.Status)

	require.NotEmpty(t, snapshots)
	assert.Equal(t, JobProcessing, snapshots[0].Status)
	assert.Equal(t, JobCompleted, snapshots[len(snapshots)-1].Status)
}

func TestRun_CancelledBetweenBatchesFailsJob(t *testing.T) {
	fa := &fakeAnalyzer{}
	ctx, cancel := context.WithCancel(context.Background())
	o := New(fa, nil, discardLogger(), WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	job := NewJob("p1", "claude-3-5-haiku-latest")
	res := o.Run(ctx, job, transcripts(4), Options{Strategy: Strategy{BatchSize: 2, Delay: time.Second}})

	assert.Equal(t, int32(2), fa.calls.Load())
	assert.Equal(t, 2, res.FailedCount)
	assert.Equal(t, JobFailed, job.Status)
	assert.Equal(t, 2, job.ProcessedCount)
}

func TestRun_Empty(t *testing.T) {
	job := NewJob("p1", "gpt-4o-mini")
	res := New(&fakeAnalyzer{}, nil, discardLogger()).Run(context.Background(), job, nil, Options{})

	assert.Equal(t, 0, res.TotalTranscripts)
	assert.Empty(t, res.Quotes)
	assert.Equal(t, JobCompleted, job.Status)
}

func TestStrategy_Batches(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, Strategy{BatchSize: 2}.Batches(5))
	assert.Equal(t, [][2]int{{0, 5}}, Strategy{}.Batches(5))
	assert.Empty(t, Strategy{BatchSize: 2}.Batches(0))
}
