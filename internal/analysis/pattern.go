package analysis

import (
	"context"

	"github.com/MikeSquared-Agency/yarning/internal/impact"
)

// PatternAnalyzer answers both per-transcript calls from keyword matching
// alone. It backs the legacy analysis mode.
type PatternAnalyzer struct {
	matcher *impact.Matcher
}

func NewPatternAnalyzer(m *impact.Matcher) *PatternAnalyzer {
	if m == nil {
		m = impact.NewMatcher()
	}
	return &PatternAnalyzer{matcher: m}
}

func (p *PatternAnalyzer) AnalyzeTranscript(_ context.Context, t Transcript, _ *ProjectContext) QuoteExtraction {
	return QuoteExtraction{
		TranscriptID:  t.ID,
		StorytellerID: t.StorytellerID,
		Analysis:      PatternAnalysis(p.matcher, t.Text),
		Source:        SourcePattern,
	}
}

func (p *PatternAnalyzer) AssessImpact(_ context.Context, t Transcript) ImpactAssessment {
	return ImpactAssessment{
		TranscriptID: t.ID,
		Insights:     withStoryteller(p.matcher.Match(t.Text), t.StorytellerID),
		Source:       SourcePattern,
	}
}
