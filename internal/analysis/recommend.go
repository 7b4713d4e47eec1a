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
	recommendationThemes  = 5
	recommendationSamples = 2
	sampleChars           = 1500
	recommendationTokens  = 2048
	maxPerCategory        = 4
)

// RecommendationInput is the project-level material recommendations are built from.
type RecommendationInput struct {
	ProjectName      string
	OrganizationName string
	Themes           []string
	ImpactTypes      []impact.ImpactType
	StorytellerCount int
	Samples          []string
}

// Recommendations are suggested next steps for a project.
type Recommendations struct {
	ContinuationStrategies        []string `json:"continuation_strategies"`
	KeyConnections                []string `json:"key_connections"`
	SystemChangeOpportunities     []string `json:"system_change_opportunities"`
	CommunityEngagementStrategies []string `json:"community_engagement_strategies"`
	Source                        Source   `json:"source" jsonschema:"-"`
}

var recommendationSchema = llm.GenerateSchema[Recommendations]()

// StaticRecommendations is returned whenever generation fails.
func StaticRecommendations() Recommendations {
	return Recommendations{
		ContinuationStrategies: []string{
			"Return recordings and transcripts to storytellers for review before any wider use",
			"Schedule follow-up yarns with storytellers who raised themes they want to keep exploring",
		},
		KeyConnections: []string{
			"Connect storytellers who share themes so they can decide together how their stories are used",
			"Link with local Elders and cultural authorities for guidance on sensitive material",
		},
		SystemChangeOpportunities: []string{
			"Share community-approved themes with partner services as evidence of what works",
			"Use storyteller-approved quotes in funding submissions led by the community",
		},
		CommunityEngagementStrategies: []string{
			"Hold a community gathering to reflect the themes back and confirm they are right",
			"Offer storytellers copies of their own analysis in plain language",
		},
		Source: SourceFallback,
	}
}

type Recommender struct {
	provider llm.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

func NewRecommender(provider llm.Provider, timeout time.Duration, logger *slog.Logger) *Recommender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Recommender{provider: provider, timeout: timeout, logger: logger}
}

// Generate returns model recommendations, or the static set when the call fails.
func (r *Recommender) Generate(ctx context.Context, in RecommendationInput) Recommendations {
	if r.provider == nil {
		return StaticRecommendations()
	}

	themes := in.Themes
	if len(themes) > recommendationThemes {
		themes = themes[:recommendationThemes]
	}
	labels := make([]string, 0, len(in.ImpactTypes))
	for _, t := range in.ImpactTypes {
		labels = append(labels, t.Label())
	}
	samples := in.Samples
	if len(samples) > recommendationSamples {
		samples = samples[:recommendationSamples]
	}
	clipped := make([]string, 0, len(samples))
	for _, s := range samples {
		clipped = append(clipped, truncateRunes(s, sampleChars))
	}

	prompt := fmt.Sprintf(recommendationUserPrompt,
		in.ProjectName,
		in.OrganizationName,
		in.StorytellerCount,
		strings.Join(themes, ", "),
		strings.Join(labels, ", "),
		strings.Join(clipped, "\n---\n"),
	)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.provider.GenerateJSON(callCtx, llm.Request{
		System:      recommendationSystemPrompt,
		Prompt:      prompt,
		SchemaName:  "recommendations",
		Schema:      recommendationSchema,
		MaxTokens:   recommendationTokens,
		Temperature: temperature,
	})

	var out Recommendations
	source := SourceModel
	if err == nil {
		err = llm.DecodeModelJSON(raw, &out)
	}
	if err != nil {
		if !llm.RecoverFromError(err, &out) {
			r.logger.Warn("recommendations failed, using static set",
				"provider", r.provider.Name(),
				"error", err,
			)
			return StaticRecommendations()
		}
		source = SourceRecovered
	}

	out = Recommendations{
		ContinuationStrategies:        cleanList(out.ContinuationStrategies, maxPerCategory),
		KeyConnections:                cleanList(out.KeyConnections, maxPerCategory),
		SystemChangeOpportunities:     cleanList(out.SystemChangeOpportunities, maxPerCategory),
		CommunityEngagementStrategies: cleanList(out.CommunityEngagementStrategies, maxPerCategory),
		Source:                        source,
	}
	if len(out.ContinuationStrategies)+len(out.KeyConnections)+len(out.SystemChangeOpportunities)+len(out.CommunityEngagementStrategies) == 0 {
		return StaticRecommendations()
	}
	return out
}
