package impact

// typePatterns are tested in order; the first hit per type wins for a sentence.
var typePatterns = map[ImpactType][]string{
	CulturalProtocol: {
		"cultural protocol", "welcome to country", "acknowledgement of country",
		"smoking ceremony", "welcomed", "on country", "country", "ceremony",
		"sorry business", "permission from", "protocol",
	},
	CommunityLeadership: {
		"community-led", "led by community", "we decided", "took charge",
		"stepped up", "leadership", "leader", "elders", "elder", "speaking up",
		"advocate",
	},
	KnowledgeTransmission: {
		"grandmother taught", "grandfather taught", "passed down", "taught me",
		"taught us", "teaching", "taught", "language", "old ways", "dreaming",
		"learn from", "share knowledge", "stories",
	},
	HealingIntegration: {
		"healing", "heal", "recovery", "wellbeing", "well-being", "mental health",
		"trauma", "spirit", "getting better", "strength",
	},
	RelationshipBuilding: {
		"relationship", "kinship", "friendship", "connection", "connected",
		"trust", "belong", "family", "together",
	},
	SystemNavigation: {
		"support worker", "centrelink", "government", "department", "paperwork",
		"hospital", "court", "services", "system", "agency", "navigate", "school",
	},
	CollectiveMobilization: {
		"community came together", "we organised", "we organized", "stand together",
		"campaign", "petition", "rally", "march", "movement", "mobilis", "mobiliz",
		"collective",
	},
	IntergenerationalConnection: {
		"future generations", "next generation", "grandchildren", "grandkids",
		"young ones", "our kids", "ancestors", "generations", "grandmother",
		"grandfather",
	},
}

// typeBaseScores are the dimension scores assigned before keyword boosts.
var typeBaseScores = map[ImpactType]map[Dimension]float64{
	CulturalProtocol: {
		CulturalContinuity:        0.9,
		RelationshipStrengthening: 0.7,
	},
	CommunityLeadership: {
		CommunityEmpowerment: 0.9,
		SystemTransformation: 0.6,
	},
	KnowledgeTransmission: {
		KnowledgePreservation: 0.9,
		CulturalContinuity:    0.8,
	},
	HealingIntegration: {
		HealingProgression:        0.9,
		RelationshipStrengthening: 0.6,
	},
	RelationshipBuilding: {
		RelationshipStrengthening: 0.9,
		CommunityEmpowerment:      0.6,
	},
	SystemNavigation: {
		SystemTransformation: 0.8,
		CommunityEmpowerment: 0.5,
	},
	CollectiveMobilization: {
		CommunityEmpowerment: 0.9,
		SystemTransformation: 0.7,
	},
	IntergenerationalConnection: {
		KnowledgePreservation:     0.8,
		CulturalContinuity:        0.8,
		RelationshipStrengthening: 0.7,
	},
}

type boost struct {
	keywords  []string
	dimension Dimension
}

// dimensionBoosts add a flat 0.1 per keyword present. Results are not clamped,
// so a dimension can reach 1.1.
var dimensionBoosts = []boost{
	{keywords: []string{"together", "collective"}, dimension: CommunityEmpowerment},
	{keywords: []string{"traditional", "ancestral"}, dimension: CulturalContinuity},
	{keywords: []string{"healing", "health"}, dimension: HealingProgression},
}

const boostAmount = 0.1

var sovereigntyKeywords = struct {
	communityLed, protocols, external, resources []string
}{
	communityLed: []string{"we decided", "community decided", "our decision", "community-led", "led by community", "self-determination", "our way"},
	protocols:    []string{"protocol", "permission", "respect", "ceremony", "welcome to country", "cultural safety"},
	external:     []string{"government listened", "they listened", "changed their", "policy", "partnership", "recognised", "recognized"},
	resources:    []string{"our own", "land back", "ownership", "funding", "resources", "control", "managed by"},
}

type evidenceTag struct {
	keyword string
	tag     string
}

var transformationTags = []evidenceTag{
	{"for the first time", "first_time_experience"},
	{"no longer", "barrier_removed"},
	{"changed", "personal_change"},
	{"proud", "pride_expressed"},
	{"stronger", "strength_building"},
	{"learned", "learning_described"},
	{"learnt", "learning_described"},
	{"started", "new_initiative"},
	{"better", "improvement_noted"},
}
