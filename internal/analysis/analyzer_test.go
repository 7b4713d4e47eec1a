package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/yarning/internal/anthropic"
	"github.com/MikeSquared-Agency/yarning/internal/impact"
	"github.com/MikeSquared-Agency/yarning/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	mu       sync.Mutex
	byschema map[string]string
	err      error
	block    bool
	requests []llm.Request
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.byschema[req.SchemaName], nil
}

const welcomeTranscript = "We always welcomed people to country with proper respect. " +
	"My grandmother taught me the old songs when I was young. " +
	"Now I lead the young ones in learning language together."

func testTranscript() Transcript {
	return Transcript{ID: "t1", StorytellerID: "s1", StorytellerName: "Aunty June", Text: welcomeTranscript}
}

func TestAnalyzeTranscript_Model(t *testing.T) {
	p := &fakeProvider{byschema: map[string]string{
		"transcript_analysis": `{"themes":["Country","Country","language"],"cultural_themes":["welcome"],` +
			`"key_quotes":[{"text":"We always welcomed people","theme":"protocol","context":"","impact_score":7,"speaker_insight":"x"},{"text":"  ","theme":"t"}],` +
			`"summary":"A story of welcome.","emotional_tone":"Hopeful","cultural_sensitivity_level":"sacred","requires_elder_review":false,` +
			`"key_insights":[],"related_topics":[]}`,
	}}
	a := New(p, nil, nil, time.Second, discardLogger())

	res := a.AnalyzeTranscript(context.Background(), testTranscript(), &ProjectContext{Quick: "Language revival"})

	assert.Equal(t, SourceModel, res.Source)
	assert.Empty(t, res.Error)
	assert.Equal(t, []string{"Country", "language"}, res.Analysis.Themes)
	require.Len(t, res.Analysis.KeyQuotes, 1)
	assert.Equal(t, 5.0, res.Analysis.KeyQuotes[0].ImpactScore)
	assert.Equal(t, "hopeful", res.Analysis.EmotionalTone)
	assert.True(t, res.Analysis.RequiresElderReview)

	require.Len(t, p.requests, 1)
	assert.Contains(t, p.requests[0].Prompt, "Aunty June")
	assert.Contains(t, p.requests[0].Prompt, "Language revival")
	assert.Equal(t, 0.3, p.requests[0].Temperature)
}

func TestAnalyzeTranscript_RecoversFromErrorPayload(t *testing.T) {
	p := &fakeProvider{err: &anthropic.APIError{
		StatusCode: 400,
		Body:       []byte(`{"error":{"failed_generation":"{\"properties\":{\"summary\":\"salvaged\",\"themes\":[\"land\"]}}"}}`),
	}}
	a := New(p, nil, nil, time.Second, discardLogger())

	res := a.AnalyzeTranscript(context.Background(), testTranscript(), nil)

	assert.Equal(t, SourceRecovered, res.Source)
	assert.Equal(t, "salvaged", res.Analysis.Summary)
	assert.Equal(t, []string{"land"}, res.Analysis.Themes)
	assert.Equal(t, "mixed", res.Analysis.EmotionalTone)
	assert.Equal(t, SensitivityMedium, res.Analysis.CulturalSensitivityLevel)
}

func TestAnalyzeTranscript_FallbackOnError(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection refused")}
	a := New(p, nil, nil, time.Second, discardLogger())

	res := a.AnalyzeTranscript(context.Background(), testTranscript(), nil)

	assert.Equal(t, SourceFallback, res.Source)
	assert.Contains(t, res.Error, "connection refused")
	assert.Contains(t, res.Analysis.Themes, "cultural protocol")
	assert.Contains(t, res.Analysis.CulturalThemes, "knowledge transmission")
	require.NotEmpty(t, res.Analysis.KeyQuotes)
	for _, q := range res.Analysis.KeyQuotes {
		assert.GreaterOrEqual(t, q.ImpactScore, 0.6*5-1e-9)
		assert.LessOrEqual(t, q.ImpactScore, 0.95*5+1e-9)
	}
	assert.True(t, strings.HasSuffix(res.Analysis.Summary, "."))
}

func TestAnalyzeTranscript_FallbackOnGarbage(t *testing.T) {
	p := &fakeProvider{byschema: map[string]string{"transcript_analysis": "I cannot help with that."}}
	a := New(p, nil, nil, time.Second, discardLogger())

	res := a.AnalyzeTranscript(context.Background(), testTranscript(), nil)
	assert.Equal(t, SourceFallback, res.Source)
	assert.NotEmpty(t, res.Error)
}

func TestAnalyzeTranscript_TimeoutFallsBack(t *testing.T) {
	p := &fakeProvider{block: true}
	a := New(p, nil, nil, 20*time.Millisecond, discardLogger())

	start := time.Now()
	res := a.AnalyzeTranscript(context.Background(), testTranscript(), nil)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())
}

func TestAnalyzeTranscript_TruncatesToBudget(t *testing.T) {
	budget, err := llm.NewBudget(50)
	require.NoError(t, err)
	p := &fakeProvider{byschema: map[string]string{"transcript_analysis": `{"summary":"ok"}`}}
	a := New(p, nil, budget, time.Second, discardLogger())

	tr := testTranscript()
	tr.Text = strings.Repeat(welcomeTranscript+" ", 40)
	res := a.AnalyzeTranscript(context.Background(), tr, nil)

	assert.True(t, res.Truncated)
	assert.Less(t, len(p.requests[0].Prompt), len(tr.Text))
}

func TestAssessImpact_Model(t *testing.T) {
	p := &fakeProvider{byschema: map[string]string{
		"impact_assessment": `{"insights":[` +
			`{"impact_type":"healing_integration","quote":"We healed together","context":"c","confidence":1.4,` +
			`"impact_dimensions":{"healingProgression":3},"sovereignty_markers":{"communityLedDecisionMaking":true},"transformation_evidence":["healing"]},` +
			`{"impact_type":"not_a_type","quote":"x"}]}`,
	}}
	a := New(p, nil, nil, time.Second, discardLogger())

	res := a.AssessImpact(context.Background(), testTranscript())

	assert.Equal(t, SourceModel, res.Source)
	require.Len(t, res.Insights, 1)
	in := res.Insights[0]
	assert.Equal(t, impact.HealingIntegration, in.ImpactType)
	assert.Equal(t, 0.95, in.Evidence.Confidence)
	assert.Equal(t, 1.1, in.ImpactDimensions.HealingProgression)
	assert.True(t, in.SovereigntyMarkers.CommunityLedDecisionMaking)
	assert.Equal(t, "s1", in.StorytellerID)
}

func TestAssessImpact_Fallback(t *testing.T) {
	p := &fakeProvider{err: errors.New("rate limited")}
	a := New(p, nil, nil, time.Second, discardLogger())

	res := a.AssessImpact(context.Background(), testTranscript())

	assert.Equal(t, SourceFallback, res.Source)
	require.NotEmpty(t, res.Insights)
	for _, in := range res.Insights {
		assert.Equal(t, "s1", in.StorytellerID)
	}
}

func TestAssessImpact_ErrorBodiesWithoutInsightsFallBack(t *testing.T) {
	cases := map[string]error{
		"rate limit": errors.New(`POST "https://api.openai.com/v1/chat/completions": 429 Too Many Requests ` +
			`{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}`),
		"gateway": &anthropic.APIError{StatusCode: 502, Body: []byte(`{"detail":"bad gateway"}`)},
	}
	for name, providerErr := range cases {
		t.Run(name, func(t *testing.T) {
			a := New(&fakeProvider{err: providerErr}, nil, nil, time.Second, discardLogger())

			res := a.AssessImpact(context.Background(), testTranscript())

			assert.Equal(t, SourceFallback, res.Source)
			assert.NotEmpty(t, res.Error)
			assert.NotEmpty(t, res.Insights)
		})
	}
}

func TestAssessImpact_RecoversInsightsFromErrorBody(t *testing.T) {
	p := &fakeProvider{err: errors.New(`schema validation failed: ` +
		`{"insights":[{"impact_type":"healing_integration","quote":"We healed together","confidence":0.8}]}`)}
	a := New(p, nil, nil, time.Second, discardLogger())

	res := a.AssessImpact(context.Background(), testTranscript())

	assert.Equal(t, SourceRecovered, res.Source)
	assert.Empty(t, res.Error)
	require.Len(t, res.Insights, 1)
	assert.Equal(t, "We healed together", res.Insights[0].Evidence.Quote)
	assert.Equal(t, "s1", res.Insights[0].StorytellerID)
}

type panicProvider struct{}

func (panicProvider) Name() string { return "panicky" }
func (panicProvider) GenerateJSON(context.Context, llm.Request) (string, error) {
	panic("boom")
}

func TestAnalyzeTranscript_ProviderPanic(t *testing.T) {
	a := New(panicProvider{}, nil, nil, time.Second, discardLogger())

	res := a.AnalyzeTranscript(context.Background(), testTranscript(), nil)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Contains(t, res.Error, "panicked")
}

func TestFallback_EmptyText(t *testing.T) {
	a := New(nil, nil, nil, 0, discardLogger())

	doc := a.Fallback("")
	assert.NotNil(t, doc.Themes)
	assert.Empty(t, doc.Themes)
	assert.Empty(t, doc.KeyQuotes)
	assert.Empty(t, doc.Summary)
	assert.True(t, doc.RequiresElderReview)
}

func TestFallback_Deterministic(t *testing.T) {
	a := New(nil, nil, nil, 0, discardLogger())
	assert.Equal(t, a.Fallback(welcomeTranscript), a.Fallback(welcomeTranscript))
}

func TestNormalizeAnalysis_Caps(t *testing.T) {
	doc := TranscriptAnalysis{Summary: strings.Repeat("a", 600)}
	for i := 0; i < 12; i++ {
		doc.Themes = append(doc.Themes, strings.Repeat("t", i+1))
		doc.KeyQuotes = append(doc.KeyQuotes, Quote{Text: "q", ImpactScore: -1})
	}

	out := normalizeAnalysis(doc)
	assert.Len(t, out.Themes, maxThemes)
	assert.Len(t, out.KeyQuotes, maxQuotes)
	assert.Equal(t, 0.0, out.KeyQuotes[0].ImpactScore)
	assert.Len(t, []rune(out.Summary), maxSummaryRunes)
}

func TestHigherSensitivity(t *testing.T) {
	assert.Equal(t, SensitivityHigh, HigherSensitivity(SensitivityLow, SensitivityHigh))
	assert.Equal(t, SensitivitySacred, HigherSensitivity(SensitivitySacred, SensitivityMedium))
	assert.Equal(t, SensitivityLow, HigherSensitivity(SensitivityLow, "unknown"))
}
