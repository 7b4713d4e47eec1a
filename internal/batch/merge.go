package batch

import (
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/yarning/internal/analysis"
	"github.com/MikeSquared-Agency/yarning/internal/impact"
)

type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Outcome is the per-transcript result. Quotes and Impact are set only when
// Status is StatusOK; Error only when it is StatusFailed.
type Outcome struct {
	Status          Status                     `json:"status"`
	TranscriptID    string                     `json:"transcript_id"`
	StorytellerID   string                     `json:"storyteller_id"`
	StorytellerName string                     `json:"storyteller_name"`
	Quotes          *analysis.QuoteExtraction  `json:"quotes,omitempty"`
	Impact          *analysis.ImpactAssessment `json:"impact,omitempty"`
	Error           string                     `json:"error,omitempty"`
}

// UsedFallback reports whether either call fell back to pattern matching.
func (o Outcome) UsedFallback() bool {
	if o.Status != StatusOK {
		return false
	}
	return o.Quotes.Source == analysis.SourceFallback || o.Impact.Source == analysis.SourceFallback
}

// AttributedQuote is a quote with the storyteller it came from.
type AttributedQuote struct {
	analysis.Quote
	TranscriptID    string `json:"transcript_id"`
	StorytellerID   string `json:"storyteller_id"`
	StorytellerName string `json:"storyteller_name"`
}

// ThemeEntry counts the transcripts a theme came up in and who raised it.
type ThemeEntry struct {
	Theme        string             `json:"theme"`
	Frequency    int                `json:"frequency"`
	Storytellers []ThemeStoryteller `json:"storytellers"`
}

// ThemeStoryteller identifies a storyteller by ID. Names are for display and
// need not be unique.
type ThemeStoryteller struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Extracts struct {
	TransformationMoments []AttributedQuote `json:"transformationMoments"`
	WisdomShared          []AttributedQuote `json:"wisdomShared"`
	ChallengesOvercome    []AttributedQuote `json:"challengesOvercome"`
	CommunityImpact       []AttributedQuote `json:"communityImpact"`
}

type SensitivitySummary struct {
	HighestLevel       string   `json:"highest_level"`
	ElderReviewCount   int      `json:"elder_review_count"`
	ElderReviewStories []string `json:"elder_review_transcripts"`
}

// StorytellerSummary is one transcript's contribution to the project.
type StorytellerSummary struct {
	TranscriptID    string          `json:"transcript_id"`
	StorytellerID   string          `json:"storyteller_id"`
	StorytellerName string          `json:"storyteller_name"`
	Status          Status          `json:"status"`
	Source          analysis.Source `json:"source,omitempty"`
	Summary         string          `json:"summary,omitempty"`
	Themes          []string        `json:"themes,omitempty"`
	EmotionalTone   string          `json:"emotional_tone,omitempty"`
	Truncated       bool            `json:"truncated,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// ProjectAnalysis is the merged result of a batch run.
type ProjectAnalysis struct {
	Model            string               `json:"model,omitempty"`
	TotalTranscripts int                  `json:"total_transcripts"`
	Quotes           []AttributedQuote    `json:"quotes"`
	Themes           []ThemeEntry         `json:"themes"`
	Extracts         Extracts             `json:"storyExtracts"`
	Impact           impact.Summary       `json:"impact"`
	Sensitivity      SensitivitySummary   `json:"cultural_sensitivity"`
	Storytellers     []StorytellerSummary `json:"storytellers"`
	Degraded         bool                 `json:"degraded"`
	FailedCount      int                  `json:"failed_count"`
	FallbackCount    int                  `json:"fallback_count"`
}

// TopThemes returns up to n theme names, most frequent first.
func (p *ProjectAnalysis) TopThemes(n int) []string {
	out := make([]string, 0, n)
	for _, t := range p.Themes {
		if len(out) == n {
			break
		}
		out = append(out, t.Theme)
	}
	return out
}

const extractLimit = 5

var extractKeywords = struct {
	transformation, wisdom, challenge, community []string
}{
	transformation: []string{"transform", "change", "turning point", "growth", "healing", "journey"},
	wisdom:         []string{"wisdom", "knowledge", "teaching", "learn", "elder", "culture", "tradition"},
	challenge:      []string{"challenge", "overcom", "struggle", "resilien", "hardship", "barrier", "survival"},
	community:      []string{"community", "together", "collective", "leadership", "family", "connection"},
}

// Merge folds per-transcript outcomes into a project analysis. outcomes must
// be index-aligned with transcripts.
func Merge(model string, transcripts []analysis.Transcript, outcomes []Outcome) *ProjectAnalysis {
	p := &ProjectAnalysis{
		Model:            model,
		TotalTranscripts: len(transcripts),
		Quotes:           []AttributedQuote{},
		Themes:           []ThemeEntry{},
		Storytellers:     make([]StorytellerSummary, 0, len(outcomes)),
		Sensitivity: SensitivitySummary{
			HighestLevel:       analysis.SensitivityLow,
			ElderReviewStories: []string{},
		},
	}

	themes := newThemeIndex()
	var insights []impact.ImpactInsight

	for _, o := range outcomes {
		summary := StorytellerSummary{
			TranscriptID:    o.TranscriptID,
			StorytellerID:   o.StorytellerID,
			StorytellerName: o.StorytellerName,
			Status:          o.Status,
			Error:           o.Error,
		}
		if o.Status != StatusOK {
			p.FailedCount++
			p.Storytellers = append(p.Storytellers, summary)
			continue
		}
		if o.UsedFallback() {
			p.FallbackCount++
		}

		doc := o.Quotes.Analysis
		summary.Source = o.Quotes.Source
		summary.Summary = doc.Summary
		summary.Themes = doc.Themes
		summary.EmotionalTone = doc.EmotionalTone
		summary.Truncated = o.Quotes.Truncated
		p.Storytellers = append(p.Storytellers, summary)

		raised := append([]string{}, doc.Themes...)
		for _, q := range doc.KeyQuotes {
			raised = append(raised, q.Theme)
			p.Quotes = append(p.Quotes, AttributedQuote{
				Quote:           q,
				TranscriptID:    o.TranscriptID,
				StorytellerID:   o.StorytellerID,
				StorytellerName: o.StorytellerName,
			})
		}

		p.Sensitivity.HighestLevel = analysis.HigherSensitivity(p.Sensitivity.HighestLevel, doc.CulturalSensitivityLevel)
		if doc.RequiresElderReview {
			p.Sensitivity.ElderReviewCount++
			p.Sensitivity.ElderReviewStories = append(p.Sensitivity.ElderReviewStories, o.TranscriptID)
		}

		themes.add(raised, ThemeStoryteller{ID: o.StorytellerID, Name: o.StorytellerName})
		insights = append(insights, o.Impact.Insights...)
	}

	sort.SliceStable(p.Quotes, func(i, j int) bool { return p.Quotes[i].ImpactScore > p.Quotes[j].ImpactScore })
	p.Themes = themes.entries()
	p.Extracts = bucketQuotes(p.Quotes)
	p.Impact = impact.Aggregate(insights)
	p.Degraded = p.FailedCount > 0 || p.FallbackCount > 0
	return p
}

func bucketQuotes(quotes []AttributedQuote) Extracts {
	e := Extracts{
		TransformationMoments: []AttributedQuote{},
		WisdomShared:          []AttributedQuote{},
		ChallengesOvercome:    []AttributedQuote{},
		CommunityImpact:       []AttributedQuote{},
	}
	for _, q := range quotes {
		label := strings.ToLower(q.Theme + " " + q.Text)
		addCapped(&e.TransformationMoments, q, label, extractKeywords.transformation)
		addCapped(&e.WisdomShared, q, label, extractKeywords.wisdom)
		addCapped(&e.ChallengesOvercome, q, label, extractKeywords.challenge)
		addCapped(&e.CommunityImpact, q, label, extractKeywords.community)
	}
	return e
}

func addCapped(bucket *[]AttributedQuote, q AttributedQuote, label string, keywords []string) {
	if len(*bucket) >= extractLimit {
		return
	}
	for _, kw := range keywords {
		if strings.Contains(label, kw) {
			*bucket = append(*bucket, q)
			return
		}
	}
}

// themeIndex groups themes case-insensitively, keeping the first spelling
// seen. A theme counts once per transcript however often it is raised there.
type themeIndex struct {
	order   []string
	display map[string]string
	counts  map[string]int
	people  map[string]map[string]string
}

func newThemeIndex() *themeIndex {
	return &themeIndex{
		display: make(map[string]string),
		counts:  make(map[string]int),
		people:  make(map[string]map[string]string),
	}
}

// add records the themes of one transcript.
func (ti *themeIndex) add(themes []string, st ThemeStoryteller) {
	seen := make(map[string]bool, len(themes))
	for _, theme := range themes {
		theme = strings.TrimSpace(theme)
		key := strings.ToLower(theme)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := ti.display[key]; !ok {
			ti.display[key] = theme
			ti.people[key] = make(map[string]string)
			ti.order = append(ti.order, key)
		}
		ti.counts[key]++
		if st.ID != "" {
			ti.people[key][st.ID] = st.Name
		}
	}
}

func (ti *themeIndex) entries() []ThemeEntry {
	out := make([]ThemeEntry, 0, len(ti.order))
	for _, key := range ti.order {
		people := make([]ThemeStoryteller, 0, len(ti.people[key]))
		for id, name := range ti.people[key] {
			people = append(people, ThemeStoryteller{ID: id, Name: name})
		}
		sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })
		out = append(out, ThemeEntry{Theme: ti.display[key], Frequency: ti.counts[key], Storytellers: people})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frequency > out[j].Frequency })
	return out
}
