// Package analysis runs the per-transcript LLM calls and degrades to
// deterministic pattern matching whenever a call fails.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/yarning/internal/impact"
	"github.com/MikeSquared-Agency/yarning/internal/llm"
)

const (
	DefaultTimeout = 45 * time.Second

	analysisMaxTokens = 4096
	impactMaxTokens   = 4096
	temperature       = 0.3
)

var (
	analysisSchema   = llm.GenerateSchema[TranscriptAnalysis]()
	assessmentSchema = llm.GenerateSchema[assessmentResponse]()
)

// Analyzer is bound to one provider. It holds no per-request state and is
// safe for concurrent use.
type Analyzer struct {
	provider llm.Provider
	matcher  *impact.Matcher
	budget   *llm.Budget
	timeout  time.Duration
	logger   *slog.Logger
}

func New(provider llm.Provider, matcher *impact.Matcher, budget *llm.Budget, timeout time.Duration, logger *slog.Logger) *Analyzer {
	if matcher == nil {
		matcher = impact.NewMatcher()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Analyzer{
		provider: provider,
		matcher:  matcher,
		budget:   budget,
		timeout:  timeout,
		logger:   logger,
	}
}

// Provider returns the name of the backing provider.
func (a *Analyzer) Provider() string {
	if a.provider == nil {
		return "none"
	}
	return a.provider.Name()
}

// AnalyzeTranscript extracts themes and quotes from one transcript. It never
// fails: a model error is first salvaged from the error payload and then
// replaced by the pattern-based analysis.
func (a *Analyzer) AnalyzeTranscript(ctx context.Context, t Transcript, pc *ProjectContext) QuoteExtraction {
	out := QuoteExtraction{TranscriptID: t.ID, StorytellerID: t.StorytellerID}

	text, truncated := a.budget.Truncate(t.Text)
	out.Truncated = truncated
	if truncated {
		a.logger.Warn("transcript truncated to token budget",
			"transcript_id", t.ID,
			"original_len", len(t.Text),
			"truncated_len", len(text),
		)
	}

	prompt := fmt.Sprintf(analysisUserPrompt, storytellerLabel(t), t.Title, renderProjectContext(pc), text)
	raw, err := a.generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		SchemaName:  "transcript_analysis",
		Schema:      analysisSchema,
		MaxTokens:   analysisMaxTokens,
		Temperature: temperature,
	})

	if err == nil {
		var doc TranscriptAnalysis
		if derr := llm.DecodeModelJSON(raw, &doc); derr == nil && usable(doc) {
			out.Analysis = normalizeAnalysis(doc)
			out.Source = SourceModel
			return out
		} else if derr != nil {
			err = fmt.Errorf("decode analysis: %w", derr)
		} else {
			err = llm.ErrEmptyResponse
		}
	}

	var recovered TranscriptAnalysis
	if llm.RecoverFromError(err, &recovered) && usable(recovered) {
		a.logger.Warn("recovered analysis from error payload",
			"transcript_id", t.ID,
			"provider", a.Provider(),
			"error", err,
		)
		out.Analysis = normalizeAnalysis(recovered)
		out.Source = SourceRecovered
		return out
	}

	a.logger.Warn("analysis failed, using pattern fallback",
		"transcript_id", t.ID,
		"provider", a.Provider(),
		"error", err,
	)
	out.Analysis = a.Fallback(t.Text)
	out.Source = SourceFallback
	out.Error = err.Error()
	return out
}

// AssessImpact asks the model for impact insights in one transcript, falling
// back to the pattern matcher.
func (a *Analyzer) AssessImpact(ctx context.Context, t Transcript) ImpactAssessment {
	out := ImpactAssessment{TranscriptID: t.ID}

	text, _ := a.budget.Truncate(t.Text)
	raw, err := a.generate(ctx, llm.Request{
		System:      impactSystemPrompt,
		Prompt:      fmt.Sprintf(impactUserPrompt, storytellerLabel(t), text),
		SchemaName:  "impact_assessment",
		Schema:      assessmentSchema,
		MaxTokens:   impactMaxTokens,
		Temperature: temperature,
	})

	var resp assessmentResponse
	if err == nil {
		if derr := llm.DecodeModelJSON(raw, &resp); derr != nil {
			err = fmt.Errorf("decode assessment: %w", derr)
		} else {
			out.Insights = withStoryteller(normalizeInsights(resp.Insights), t.StorytellerID)
			out.Source = SourceModel
			return out
		}
	}

	// An error body only counts as recovered when it carries real insights.
	// Rate limit and gateway bodies decode cleanly into an empty response.
	var recovered assessmentResponse
	if llm.RecoverFromError(err, &recovered) {
		if insights := normalizeInsights(recovered.Insights); len(insights) > 0 {
			a.logger.Warn("recovered assessment from error payload",
				"transcript_id", t.ID,
				"provider", a.Provider(),
				"error", err,
			)
			out.Insights = withStoryteller(insights, t.StorytellerID)
			out.Source = SourceRecovered
			return out
		}
	}

	a.logger.Warn("impact assessment failed, using pattern fallback",
		"transcript_id", t.ID,
		"provider", a.Provider(),
		"error", err,
	)
	out.Insights = withStoryteller(a.matcher.Match(t.Text), t.StorytellerID)
	out.Source = SourceFallback
	out.Error = err.Error()
	return out
}

// generate applies the per-call timeout and turns a provider panic into an
// error so the caller can fall back.
func (a *Analyzer) generate(ctx context.Context, req llm.Request) (raw string, err error) {
	if a.provider == nil {
		return "", fmt.Errorf("no provider configured")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			raw, err = "", fmt.Errorf("provider %s panicked: %v", a.provider.Name(), r)
		}
	}()

	start := time.Now()
	raw, err = a.provider.GenerateJSON(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s (%s): %w", req.SchemaName, a.provider.Name(), err)
	}
	a.logger.Debug("model call complete",
		"schema", req.SchemaName,
		"provider", a.provider.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
		"response_len", len(raw),
	)
	return raw, nil
}

func usable(doc TranscriptAnalysis) bool {
	return strings.TrimSpace(doc.Summary) != "" || len(doc.Themes) > 0 || len(doc.KeyQuotes) > 0
}

func storytellerLabel(t Transcript) string {
	if t.StorytellerName != "" {
		return t.StorytellerName
	}
	return "Unknown storyteller"
}

func renderProjectContext(pc *ProjectContext) string {
	if pc == nil {
		return ""
	}
	var b strings.Builder
	if pc.Quick != "" {
		b.WriteString(pc.Quick)
		b.WriteString("\n")
	}
	if p := pc.Full; p != nil {
		if p.Mission != "" {
			fmt.Fprintf(&b, "Mission: %s\n", p.Mission)
		}
		if len(p.Goals) > 0 {
			fmt.Fprintf(&b, "Goals: %s\n", strings.Join(p.Goals, "; "))
		}
		if len(p.Categories) > 0 {
			fmt.Fprintf(&b, "Focus areas: %s\n", strings.Join(p.Categories, ", "))
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return fmt.Sprintf(projectContextPrompt, strings.TrimSpace(b.String()))
}

func withStoryteller(insights []impact.ImpactInsight, storytellerID string) []impact.ImpactInsight {
	for i := range insights {
		insights[i].StorytellerID = storytellerID
	}
	return insights
}
