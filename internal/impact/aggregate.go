package impact

import "sort"

const (
	strongestAreaCount   = 3
	communityVoiceCount  = 5
	communityVoiceCutoff = 0.7
)

// ImpactArea is one of the strongest dimensions across a set of insights.
type ImpactArea struct {
	Area  Dimension `json:"area"`
	Score float64   `json:"score"`
}

// CommunityVoice is a high-confidence quote surfaced from the insights.
type CommunityVoice struct {
	Quote      string     `json:"quote"`
	ImpactType ImpactType `json:"impactType"`
	Confidence float64    `json:"confidence"`
}

// SovereigntyCounts counts how many insights carried each marker.
type SovereigntyCounts struct {
	CommunityLedDecisionMaking int `json:"communityLedDecisionMaking"`
	CulturalProtocolsRespected int `json:"culturalProtocolsRespected"`
	ExternalSystemsResponding  int `json:"externalSystemsResponding"`
	ResourceControlIncreasing  int `json:"resourceControlIncreasing"`
}

// Summary is the aggregate view over a list of insights.
type Summary struct {
	TotalInsights        int                `json:"totalInsights"`
	AggregatedImpact     Dimensions         `json:"aggregatedImpact"`
	ImpactTypeCounts     map[ImpactType]int `json:"impactTypeCounts"`
	StrongestImpactAreas []ImpactArea       `json:"strongestImpactAreas"`
	CommunityVoices      []CommunityVoice   `json:"communityVoices"`
	Sovereignty          SovereigntyCounts  `json:"sovereignty"`
}

// Aggregate reduces insights to summary statistics. An empty input yields a
// zero vector rather than NaN.
func Aggregate(insights []ImpactInsight) Summary {
	s := Summary{
		TotalInsights:        len(insights),
		ImpactTypeCounts:     make(map[ImpactType]int),
		StrongestImpactAreas: []ImpactArea{},
		CommunityVoices:      []CommunityVoice{},
	}

	var totals Dimensions
	for _, in := range insights {
		for _, dim := range AllDimensions {
			totals.Add(dim, in.ImpactDimensions.Get(dim))
		}
		s.ImpactTypeCounts[in.ImpactType]++
		countSovereignty(&s.Sovereignty, in.SovereigntyMarkers)
	}

	n := float64(len(insights))
	if n > 0 {
		for _, dim := range AllDimensions {
			s.AggregatedImpact.Add(dim, totals.Get(dim)/n)
		}
	}

	areas := make([]ImpactArea, 0, len(AllDimensions))
	for _, dim := range AllDimensions {
		areas = append(areas, ImpactArea{Area: dim, Score: totals.Get(dim)})
	}
	sort.SliceStable(areas, func(i, j int) bool { return areas[i].Score > areas[j].Score })
	for _, a := range areas[:strongestAreaCount] {
		if n > 0 {
			a.Score /= n
		}
		s.StrongestImpactAreas = append(s.StrongestImpactAreas, a)
	}

	s.CommunityVoices = CommunityVoices(insights, communityVoiceCount)
	return s
}

// CommunityVoices returns up to limit insights with confidence above 0.7,
// most confident first.
func CommunityVoices(insights []ImpactInsight, limit int) []CommunityVoice {
	voices := []CommunityVoice{}
	for _, in := range insights {
		if in.Evidence.Confidence > communityVoiceCutoff {
			voices = append(voices, CommunityVoice{
				Quote:      in.Evidence.Quote,
				ImpactType: in.ImpactType,
				Confidence: in.Evidence.Confidence,
			})
		}
	}
	sort.SliceStable(voices, func(i, j int) bool { return voices[i].Confidence > voices[j].Confidence })
	if len(voices) > limit {
		voices = voices[:limit]
	}
	return voices
}

// TopInsights returns up to limit insights ordered by confidence, without
// modifying the input.
func TopInsights(insights []ImpactInsight, limit int) []ImpactInsight {
	sorted := make([]ImpactInsight, len(insights))
	copy(sorted, insights)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Evidence.Confidence > sorted[j].Evidence.Confidence
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// DistinctTypes returns the impact types present in insights, in first-seen order.
func DistinctTypes(insights []ImpactInsight) []ImpactType {
	seen := make(map[ImpactType]bool)
	var out []ImpactType
	for _, in := range insights {
		if !seen[in.ImpactType] {
			seen[in.ImpactType] = true
			out = append(out, in.ImpactType)
		}
	}
	return out
}

func countSovereignty(c *SovereigntyCounts, m SovereigntyMarkers) {
	if m.CommunityLedDecisionMaking {
		c.CommunityLedDecisionMaking++
	}
	if m.CulturalProtocolsRespected {
		c.CulturalProtocolsRespected++
	}
	if m.ExternalSystemsResponding {
		c.ExternalSystemsResponding++
	}
	if m.ResourceControlIncreasing {
		c.ResourceControlIncreasing++
	}
}
