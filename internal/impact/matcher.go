package impact

import (
	"regexp"
	"strings"
)

const (
	minSentenceLen = 20
	longSentence   = 100

	baseConfidence   = 0.6
	maxConfidence    = 0.95
	exactMatchBonus  = 0.2
	lengthBonus      = 0.1
	firstPersonBonus = 0.1
)

var (
	sentenceBoundary = regexp.MustCompile(`[.!?]+`)
	// timestamps are removed before splitting so "10:15 a.m." is not cut at
	// its dots.
	timestamp = regexp.MustCompile(`(?i)[\[(]?\b\d{1,2}:\d{2}(?::\d{2})?(?:\s*[ap]\.?m\b\.?)?[\])]?`)
)

// Matcher tags transcript sentences with impact types using fixed keyword
// lists. It holds no state and is safe for concurrent use.
type Matcher struct {
	builder Builder
}

func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match returns one insight per (sentence, impact type) hit, in sentence order.
func (m *Matcher) Match(text string) []ImpactInsight {
	insights := []ImpactInsight{}
	if strings.TrimSpace(text) == "" {
		return insights
	}

	for _, sentence := range Sentences(timestamp.ReplaceAllString(text, " ")) {
		if len(sentence) <= minSentenceLen {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, t := range AllTypes {
			for _, pattern := range typePatterns[t] {
				if !strings.Contains(lower, pattern) {
					continue
				}
				insights = append(insights, m.builder.Build(sentence, text, t, pattern))
				break
			}
		}
	}
	return insights
}

// Sentences splits text on sentence punctuation, trimming whitespace and
// dropping empty fragments.
func Sentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Confidence scores a pattern hit. The result is always within [0.6, 0.95].
func Confidence(sentence, pattern string) float64 {
	lower := strings.ToLower(sentence)
	c := baseConfidence
	if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
		c += exactMatchBonus
	}
	if len(sentence) > longSentence {
		c += lengthBonus
	}
	if strings.Contains(lower, "i ") || strings.Contains(lower, "we ") {
		c += firstPersonBonus
	}
	if c > maxConfidence {
		c = maxConfidence
	}
	return c
}
