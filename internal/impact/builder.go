package impact

import "strings"

const contextKeyLen = 50

// Builder turns a matched sentence into a structured insight.
type Builder struct{}

// Build assembles the insight for sentence, which was matched to t via pattern.
// fullText is the whole transcript and is only used for context extraction.
func (Builder) Build(sentence, fullText string, t ImpactType, pattern string) ImpactInsight {
	lower := strings.ToLower(sentence)
	return ImpactInsight{
		ImpactType: t,
		Evidence: Evidence{
			Quote:      sentence,
			Context:    extractContext(sentence, fullText),
			Confidence: Confidence(sentence, pattern),
		},
		ImpactDimensions:       scoreDimensions(lower, t),
		SovereigntyMarkers:     detectSovereignty(lower),
		TransformationEvidence: transformationEvidence(lower),
	}
}

func scoreDimensions(lower string, t ImpactType) Dimensions {
	var d Dimensions
	for dim, v := range typeBaseScores[t] {
		d.Add(dim, v)
	}
	for _, b := range dimensionBoosts {
		for _, k := range b.keywords {
			if strings.Contains(lower, k) {
				d.Add(b.dimension, boostAmount)
			}
		}
	}
	return d
}

func detectSovereignty(lower string) SovereigntyMarkers {
	return SovereigntyMarkers{
		CommunityLedDecisionMaking: containsAny(lower, sovereigntyKeywords.communityLed),
		CulturalProtocolsRespected: containsAny(lower, sovereigntyKeywords.protocols),
		ExternalSystemsResponding:  containsAny(lower, sovereigntyKeywords.external),
		ResourceControlIncreasing:  containsAny(lower, sovereigntyKeywords.resources),
	}
}

func transformationEvidence(lower string) []string {
	tags := []string{}
	seen := make(map[string]bool)
	for _, et := range transformationTags {
		if seen[et.tag] || !strings.Contains(lower, et.keyword) {
			continue
		}
		seen[et.tag] = true
		tags = append(tags, et.tag)
	}
	return tags
}

// extractContext returns the sentence with its neighbours joined by ". ".
// When the sentence cannot be located the sentence itself is returned.
func extractContext(sentence, fullText string) string {
	key := sentence
	if len(key) > contextKeyLen {
		key = key[:contextKeyLen]
	}
	all := Sentences(fullText)
	for i, s := range all {
		if !strings.Contains(s, key) {
			continue
		}
		lo, hi := i-1, i+2
		if lo < 0 {
			lo = 0
		}
		if hi > len(all) {
			hi = len(all)
		}
		return strings.Join(all[lo:hi], ". ")
	}
	return sentence
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
