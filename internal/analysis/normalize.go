package analysis

import (
	"strings"

	"github.com/MikeSquared-Agency/yarning/internal/impact"
)

const (
	maxThemes         = 8
	maxCulturalThemes = 5
	maxQuotes         = 5
	maxInsights       = 5
	maxRelatedTopics  = 5
	maxSummaryRunes   = 500
	maxImpactScore    = 5.0
	maxConfidence     = 0.95
	maxDimension      = 1.1
	maxAssessed       = 10
)

// normalizeAnalysis is the single place model, recovered and fallback
// documents pass through before leaving the package.
func normalizeAnalysis(a TranscriptAnalysis) TranscriptAnalysis {
	out := TranscriptAnalysis{
		Themes:                   cleanList(a.Themes, maxThemes),
		CulturalThemes:           cleanList(a.CulturalThemes, maxCulturalThemes),
		KeyQuotes:                make([]Quote, 0, maxQuotes),
		Summary:                  truncateRunes(strings.TrimSpace(a.Summary), maxSummaryRunes),
		EmotionalTone:            strings.ToLower(strings.TrimSpace(a.EmotionalTone)),
		CulturalSensitivityLevel: strings.ToLower(strings.TrimSpace(a.CulturalSensitivityLevel)),
		RequiresElderReview:      a.RequiresElderReview,
		KeyInsights:              cleanList(a.KeyInsights, maxInsights),
		RelatedTopics:            cleanList(a.RelatedTopics, maxRelatedTopics),
	}

	for _, q := range a.KeyQuotes {
		if len(out.KeyQuotes) == maxQuotes {
			break
		}
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		q.Theme = strings.TrimSpace(q.Theme)
		q.ImpactScore = clamp(q.ImpactScore, 0, maxImpactScore)
		out.KeyQuotes = append(out.KeyQuotes, q)
	}

	if !contains(emotionalTones, out.EmotionalTone) {
		out.EmotionalTone = "mixed"
	}
	if _, ok := sensitivityRank[out.CulturalSensitivityLevel]; !ok {
		out.CulturalSensitivityLevel = SensitivityMedium
	}
	if out.CulturalSensitivityLevel == SensitivitySacred {
		out.RequiresElderReview = true
	}
	return out
}

func normalizeInsights(in []assessedInsight) []impact.ImpactInsight {
	out := make([]impact.ImpactInsight, 0, len(in))
	for _, a := range in {
		if len(out) == maxAssessed {
			break
		}
		t := impact.ImpactType(strings.ToLower(strings.TrimSpace(a.ImpactType)))
		quote := strings.TrimSpace(a.Quote)
		if !t.Valid() || quote == "" {
			continue
		}
		var dims impact.Dimensions
		for _, d := range impact.AllDimensions {
			dims.Add(d, clamp(a.Dimensions.Get(d), 0, maxDimension))
		}
		out = append(out, impact.ImpactInsight{
			ImpactType: t,
			Evidence: impact.Evidence{
				Quote:      quote,
				Context:    strings.TrimSpace(a.Context),
				Confidence: clamp(a.Confidence, 0, maxConfidence),
			},
			ImpactDimensions:       dims,
			SovereigntyMarkers:     a.SovereigntyMarkers,
			TransformationEvidence: cleanList(a.TransformationEvidence, len(a.TransformationEvidence)),
		})
	}
	return out
}

// cleanList trims, drops blanks and case-insensitive duplicates, and caps
// the list. The result is never nil.
func cleanList(in []string, limit int) []string {
	out := make([]string, 0, min(len(in), limit))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if len(out) == limit {
			break
		}
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
