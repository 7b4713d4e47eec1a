package impact

// ImpactType is one of the eight fixed categories of community or cultural impact.
type ImpactType string

const (
	CulturalProtocol            ImpactType = "cultural_protocol"
	CommunityLeadership         ImpactType = "community_leadership"
	KnowledgeTransmission       ImpactType = "knowledge_transmission"
	HealingIntegration          ImpactType = "healing_integration"
	RelationshipBuilding        ImpactType = "relationship_building"
	SystemNavigation            ImpactType = "system_navigation"
	CollectiveMobilization      ImpactType = "collective_mobilization"
	IntergenerationalConnection ImpactType = "intergenerational_connection"
)

// AllTypes lists the impact types in matching order.
var AllTypes = []ImpactType{
	CulturalProtocol,
	CommunityLeadership,
	KnowledgeTransmission,
	HealingIntegration,
	RelationshipBuilding,
	SystemNavigation,
	CollectiveMobilization,
	IntergenerationalConnection,
}

// Valid reports whether t is one of the known impact types.
func (t ImpactType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Label is the human-readable form, e.g. "cultural protocol".
func (t ImpactType) Label() string {
	b := []byte(t)
	for i, c := range b {
		if c == '_' {
			b[i] = ' '
		}
	}
	return string(b)
}

// Dimension names one of the six impact strength signals.
type Dimension string

const (
	RelationshipStrengthening Dimension = "relationshipStrengthening"
	CulturalContinuity        Dimension = "culturalContinuity"
	CommunityEmpowerment      Dimension = "communityEmpowerment"
	SystemTransformation      Dimension = "systemTransformation"
	HealingProgression        Dimension = "healingProgression"
	KnowledgePreservation     Dimension = "knowledgePreservation"
)

// AllDimensions lists the dimensions in reporting order.
var AllDimensions = []Dimension{
	RelationshipStrengthening,
	CulturalContinuity,
	CommunityEmpowerment,
	SystemTransformation,
	HealingProgression,
	KnowledgePreservation,
}

// Dimensions holds six independent scores. They are not normalized and may
// exceed 1.0 once keyword boosts are applied.
type Dimensions struct {
	RelationshipStrengthening float64 `json:"relationshipStrengthening"`
	CulturalContinuity        float64 `json:"culturalContinuity"`
	CommunityEmpowerment      float64 `json:"communityEmpowerment"`
	SystemTransformation      float64 `json:"systemTransformation"`
	HealingProgression        float64 `json:"healingProgression"`
	KnowledgePreservation     float64 `json:"knowledgePreservation"`
}

// Get returns the score for a dimension, or 0 for an unknown name.
func (d Dimensions) Get(name Dimension) float64 {
	if p := d.field(name); p != nil {
		return *p
	}
	return 0
}

// Add increments the score for a dimension.
func (d *Dimensions) Add(name Dimension, v float64) {
	if p := d.field(name); p != nil {
		*p += v
	}
}

func (d *Dimensions) field(name Dimension) *float64 {
	switch name {
	case RelationshipStrengthening:
		return &d.RelationshipStrengthening
	case CulturalContinuity:
		return &d.CulturalContinuity
	case CommunityEmpowerment:
		return &d.CommunityEmpowerment
	case SystemTransformation:
		return &d.SystemTransformation
	case HealingProgression:
		return &d.HealingProgression
	case KnowledgePreservation:
		return &d.KnowledgePreservation
	}
	return nil
}

// Evidence is the source text backing an insight.
type Evidence struct {
	Quote      string  `json:"quote"`
	Context    string  `json:"context"`
	Confidence float64 `json:"confidence"`
}

// SovereigntyMarkers are independent signals of community self-determination.
type SovereigntyMarkers struct {
	CommunityLedDecisionMaking bool `json:"communityLedDecisionMaking"`
	CulturalProtocolsRespected bool `json:"culturalProtocolsRespected"`
	ExternalSystemsResponding  bool `json:"externalSystemsResponding"`
	ResourceControlIncreasing  bool `json:"resourceControlIncreasing"`
}

// ImpactInsight is the atomic unit of pattern analysis. Insights are
// transient; they are only persisted inside an aggregate.
type ImpactInsight struct {
	ImpactType             ImpactType         `json:"impact_type"`
	Evidence               Evidence           `json:"evidence"`
	ImpactDimensions       Dimensions         `json:"impact_dimensions"`
	SovereigntyMarkers     SovereigntyMarkers `json:"sovereignty_markers"`
	TransformationEvidence []string           `json:"transformation_evidence"`
	StorytellerID          string             `json:"storyteller_id,omitempty"`
}
