package bnet

import "fmt"

// AggregateKind identifies one of the six reusable intermediate node
// types. Each kind carries its own leak probability, per-parent weights,
// middle-state discount, split fraction, and the set of typologies it is
// declared compatible with.
type AggregateKind string

const (
	KindMarketImpact          AggregateKind = "market_impact"
	KindBehavioralIntent      AggregateKind = "behavioral_intent"
	KindCoordinationPatterns  AggregateKind = "coordination_patterns"
	KindInformationAdvantage  AggregateKind = "information_advantage"
	KindEconomicRationality   AggregateKind = "economic_rationality"
	KindTechnicalManipulation AggregateKind = "technical_manipulation"
)

type kindSpec struct {
	states     []string
	leak       float64
	weights    []float64 // first parent heaviest
	discount   float64
	split      float64
	compatible []string
}

// The per-kind constants are empirically tuned alongside compliance
// analysts. Do not re-derive them; adjust only through calibration
// reviews.
var kindSpecs = map[AggregateKind]kindSpec{
	KindMarketImpact: {
		states:   []string{"minimal_impact", "moderate_impact", "severe_impact"},
		leak:     0.98,
		weights:  []float64{0.85, 0.75, 0.65, 0.55},
		discount: 0.50,
		split:    0.45,
		compatible: []string{
			"market_cornering", "spoofing", "economic_withholding", "commodity_manipulation",
		},
	},
	KindBehavioralIntent: {
		states:   []string{"no_intent_signals", "mixed_signals", "clear_intent_signals"},
		leak:     0.97,
		weights:  []float64{0.88, 0.78, 0.68, 0.58},
		discount: 0.45,
		split:    0.50,
		compatible: []string{
			"insider_dealing", "market_cornering",
		},
	},
	KindCoordinationPatterns: {
		states:   []string{"independent_activity", "aligned_activity", "coordinated_activity"},
		leak:     0.98,
		weights:  []float64{0.90, 0.80, 0.70, 0.60},
		discount: 0.40,
		split:    0.40,
		compatible: []string{
			"wash_trading", "cross_desk_collusion",
		},
	},
	KindInformationAdvantage: {
		states:   []string{"no_advantage", "possible_advantage", "clear_advantage"},
		leak:     0.97,
		weights:  []float64{0.87, 0.77, 0.67, 0.57},
		discount: 0.55,
		split:    0.50,
		compatible: []string{
			"insider_dealing", "cross_desk_collusion",
		},
	},
	KindEconomicRationality: {
		states:   []string{"rational_conduct", "questionable_conduct", "irrational_conduct"},
		leak:     0.97,
		weights:  []float64{0.82, 0.72, 0.62, 0.52},
		discount: 0.60,
		split:    0.55,
		compatible: []string{
			"economic_withholding", "commodity_manipulation",
		},
	},
	KindTechnicalManipulation: {
		states:   []string{"normal_mechanics", "irregular_mechanics", "manipulative_mechanics"},
		leak:     0.98,
		weights:  []float64{0.90, 0.82, 0.72, 0.62},
		discount: 0.35,
		split:    0.38,
		compatible: []string{
			"spoofing", "wash_trading",
		},
	},
}

// Kinds returns the six aggregate kinds in a stable order.
func Kinds() []AggregateKind {
	return []AggregateKind{
		KindMarketImpact,
		KindBehavioralIntent,
		KindCoordinationPatterns,
		KindInformationAdvantage,
		KindEconomicRationality,
		KindTechnicalManipulation,
	}
}

// NewAggregateNode builds an intermediate node of the given kind. The
// parent order determines weighting: the first parent is damped hardest.
func NewAggregateNode(kind AggregateKind, name string, parents []string) (*IntermediateNode, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return nil, &ConfigurationError{Scope: name, Detail: fmt.Sprintf("unknown aggregate kind %q", kind)}
	}
	return newIntermediateNode(kind, name, parents, spec)
}

// CompatibleTypologies returns the typologies an aggregate kind may be
// wired into.
func CompatibleTypologies(kind AggregateKind) []string {
	return append([]string(nil), kindSpecs[kind].compatible...)
}
