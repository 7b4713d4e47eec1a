package analysis

import "github.com/MikeSquared-Agency/yarning/internal/impact"

// Transcript is a storyteller's raw oral-history text.
type Transcript struct {
	ID              string `json:"id"`
	ProjectID       string `json:"project_id"`
	StorytellerID   string `json:"storyteller_id"`
	StorytellerName string `json:"storyteller_name"`
	Title           string `json:"title,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	WordCount       int    `json:"word_count,omitempty"`
	Text            string `json:"text"`
}

// ProjectContext biases extraction toward project-relevant language. Either
// field may be empty; a nil context means context-free analysis.
type ProjectContext struct {
	Quick string          `json:"quick,omitempty"`
	Full  *ProjectProfile `json:"full,omitempty"`
}

// ProjectProfile is the structured form of a project description.
type ProjectProfile struct {
	Mission    string   `json:"mission,omitempty"`
	Goals      []string `json:"goals,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Source records how a result was produced. SourcePattern marks the
// keyword-only path that never calls a model.
type Source string

const (
	SourceModel     Source = "model"
	SourceRecovered Source = "recovered"
	SourceFallback  Source = "fallback"
	SourcePattern   Source = "pattern"
)

// Quote is an LLM-extracted excerpt. ImpactScore is on a 0-5 scale and is
// unrelated to the 0-1 pattern confidence.
type Quote struct {
	Text           string  `json:"text"`
	Theme          string  `json:"theme"`
	Context        string  `json:"context"`
	ImpactScore    float64 `json:"impact_score"`
	SpeakerInsight string  `json:"speaker_insight"`
}

const (
	SensitivityLow    = "low"
	SensitivityMedium = "medium"
	SensitivityHigh   = "high"
	SensitivitySacred = "sacred"
)

var sensitivityRank = map[string]int{
	SensitivityLow:    0,
	SensitivityMedium: 1,
	SensitivityHigh:   2,
	SensitivitySacred: 3,
}

// HigherSensitivity returns the more restrictive of two levels.
func HigherSensitivity(a, b string) string {
	if sensitivityRank[b] > sensitivityRank[a] {
		return b
	}
	return a
}

var emotionalTones = []string{"hopeful", "reflective", "resilient", "joyful", "sorrowful", "determined", "mixed"}

// TranscriptAnalysis is the schema the model fills for a single transcript.
type TranscriptAnalysis struct {
	Themes                   []string `json:"themes" jsonschema:"description=Up to 8 main themes"`
	CulturalThemes           []string `json:"cultural_themes" jsonschema:"description=Up to 5 cultural themes"`
	KeyQuotes                []Quote  `json:"key_quotes" jsonschema:"description=Up to 5 exact quotes from the transcript"`
	Summary                  string   `json:"summary" jsonschema:"description=At most 500 characters"`
	EmotionalTone            string   `json:"emotional_tone" jsonschema:"enum=hopeful,enum=reflective,enum=resilient,enum=joyful,enum=sorrowful,enum=determined,enum=mixed"`
	CulturalSensitivityLevel string   `json:"cultural_sensitivity_level" jsonschema:"enum=low,enum=medium,enum=high,enum=sacred"`
	RequiresElderReview      bool     `json:"requires_elder_review"`
	KeyInsights              []string `json:"key_insights" jsonschema:"description=Up to 5 insights"`
	RelatedTopics            []string `json:"related_topics" jsonschema:"description=Up to 5 related topics"`
}

// QuoteExtraction is the outcome of the quote-extraction call for one transcript.
type QuoteExtraction struct {
	TranscriptID  string             `json:"transcript_id"`
	StorytellerID string             `json:"storyteller_id"`
	Analysis      TranscriptAnalysis `json:"analysis"`
	Source        Source             `json:"source"`
	Truncated     bool               `json:"truncated,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// ImpactAssessment is the outcome of the impact-assessment call for one transcript.
type ImpactAssessment struct {
	TranscriptID string                 `json:"transcript_id"`
	Insights     []impact.ImpactInsight `json:"insights"`
	Source       Source                 `json:"source"`
	Error        string                 `json:"error,omitempty"`
}

type assessedInsight struct {
	ImpactType             string                    `json:"impact_type" jsonschema:"enum=cultural_protocol,enum=community_leadership,enum=knowledge_transmission,enum=healing_integration,enum=relationship_building,enum=system_navigation,enum=collective_mobilization,enum=intergenerational_connection"`
	Quote                  string                    `json:"quote"`
	Context                string                    `json:"context"`
	Confidence             float64                   `json:"confidence"`
	Dimensions             impact.Dimensions         `json:"impact_dimensions"`
	SovereigntyMarkers     impact.SovereigntyMarkers `json:"sovereignty_markers"`
	TransformationEvidence []string                  `json:"transformation_evidence"`
}

type assessmentResponse struct {
	Insights []assessedInsight `json:"insights"`
}
