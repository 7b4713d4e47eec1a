package analysis

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/yarning/internal/impact"
)

const summarySentences = 3

var culturalTypes = map[impact.ImpactType]bool{
	impact.CulturalProtocol:            true,
	impact.KnowledgeTransmission:       true,
	impact.IntergenerationalConnection: true,
}

// Fallback derives an analysis from the pattern matcher alone. It stands in
// for a failed model call, so the transcript is always sent for review.
func (a *Analyzer) Fallback(text string) TranscriptAnalysis {
	doc := PatternAnalysis(a.matcher, text)
	doc.RequiresElderReview = true
	return doc
}

// PatternAnalysis is deterministic and cannot fail. Review is requested only
// when the text touches cultural protocol.
func PatternAnalysis(m *impact.Matcher, text string) TranscriptAnalysis {
	insights := m.Match(text)
	types := impact.DistinctTypes(insights)

	doc := TranscriptAnalysis{
		EmotionalTone:            "reflective",
		CulturalSensitivityLevel: SensitivityMedium,
		RequiresElderReview:      touchesProtocol(insights),
	}
	for _, t := range types {
		doc.Themes = append(doc.Themes, t.Label())
		if culturalTypes[t] {
			doc.CulturalThemes = append(doc.CulturalThemes, t.Label())
		}
	}

	for _, in := range impact.TopInsights(insights, maxQuotes) {
		doc.KeyQuotes = append(doc.KeyQuotes, Quote{
			Text:           in.Evidence.Quote,
			Theme:          in.ImpactType.Label(),
			Context:        in.Evidence.Context,
			ImpactScore:    in.Evidence.Confidence * maxImpactScore,
			SpeakerInsight: fmt.Sprintf("Speaks to %s", in.ImpactType.Label()),
		})
	}

	sentences := impact.Sentences(text)
	if len(sentences) > summarySentences {
		sentences = sentences[:summarySentences]
	}
	if len(sentences) > 0 {
		doc.Summary = strings.Join(sentences, ". ") + "."
	}

	if len(insights) > 0 {
		doc.KeyInsights = []string{
			fmt.Sprintf("%d impact signals across %d categories", len(insights), len(types)),
		}
	}
	return normalizeAnalysis(doc)
}

func touchesProtocol(insights []impact.ImpactInsight) bool {
	for _, in := range insights {
		if in.ImpactType == impact.CulturalProtocol || in.SovereigntyMarkers.CulturalProtocolsRespected {
			return true
		}
	}
	return false
}
