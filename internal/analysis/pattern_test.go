package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternAnalyzer(t *testing.T) {
	p := NewPatternAnalyzer(nil)
	tr := testTranscript()

	quotes := p.AnalyzeTranscript(context.Background(), tr, nil)
	assert.Equal(t, SourcePattern, quotes.Source)
	assert.Equal(t, "t1", quotes.TranscriptID)
	assert.Equal(t, "s1", quotes.StorytellerID)
	assert.NotEmpty(t, quotes.Analysis.Themes)
	assert.Empty(t, quotes.Error)

	assessment := p.AssessImpact(context.Background(), tr)
	assert.Equal(t, SourcePattern, assessment.Source)
	require.NotEmpty(t, assessment.Insights)
	for _, in := range assessment.Insights {
		assert.Equal(t, "s1", in.StorytellerID)
	}
}

func TestPatternAnalyzer_ElderReviewFollowsContent(t *testing.T) {
	p := NewPatternAnalyzer(nil)

	neutral := Transcript{ID: "t2", StorytellerID: "s2",
		Text: "We played footy together every weekend at the oval. I kicked the winning goal in the final."}
	assert.False(t, p.AnalyzeTranscript(context.Background(), neutral, nil).Analysis.RequiresElderReview)

	assert.True(t, p.AnalyzeTranscript(context.Background(), testTranscript(), nil).Analysis.RequiresElderReview)
}

func TestFallback_AlwaysRequestsReview(t *testing.T) {
	a := New(nil, nil, nil, 0, discardLogger())
	doc := a.Fallback("We played footy together every weekend at the oval.")
	assert.True(t, doc.RequiresElderReview)
}
