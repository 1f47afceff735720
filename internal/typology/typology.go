// Package typology assembles one Bayesian network per market-abuse
// typology and exposes the risk-scoring interface over it: calculate a
// risk assessment from an evidence assignment, enumerate required
// evidence nodes, validate evidence completeness, and emit structured
// regulatory evidence items.
package typology

import (
	"fmt"
	"time"

	"github.com/quantsentinel/surveil/internal/probability"
)

// Typology is the closed set of abuse patterns the platform models.
type Typology string

const (
	InsiderDealing        Typology = "insider_dealing"
	Spoofing              Typology = "spoofing"
	WashTrading           Typology = "wash_trading"
	CrossDeskCollusion    Typology = "cross_desk_collusion"
	MarketCornering       Typology = "market_cornering"
	EconomicWithholding   Typology = "economic_withholding"
	CommodityManipulation Typology = "commodity_manipulation"
)

// All returns every typology in a stable order.
func All() []Typology {
	return []Typology{
		InsiderDealing,
		Spoofing,
		WashTrading,
		CrossDeskCollusion,
		MarketCornering,
		EconomicWithholding,
		CommodityManipulation,
	}
}

// Parse validates a typology name.
func Parse(s string) (Typology, error) {
	t := Typology(s)
	for _, known := range All() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown typology %q", s)
}

// NodeName identifies an evidence node. The full roster of valid names
// is declared in definitions.go; each typology accepts only its own
// subset.
type NodeName string

// StateValue is an observed evidence value: either a 0-based state index
// or a state-name string.
type StateValue struct {
	index  int
	name   string
	byName bool
}

// State wraps a 0-based state index.
func State(i int) StateValue { return StateValue{index: i} }

// StateNamed wraps a state-name string such as "high".
func StateNamed(s string) StateValue { return StateValue{name: s, byName: true} }

// Raw returns the underlying value for node-level validation.
func (v StateValue) Raw() any {
	if v.byName {
		return v.name
	}
	return v.index
}

func (v StateValue) String() string {
	if v.byName {
		return v.name
	}
	return fmt.Sprintf("%d", v.index)
}

// EvidenceAssignment maps evidence nodes to observed values. Nodes the
// caller has no signal for are simply absent; the engine substitutes
// their fallback priors.
type EvidenceAssignment map[NodeName]StateValue

// RiskLevel buckets an overall score against the typology's thresholds.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Confidence labels how peaked the outcome marginal is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Thresholds are the per-typology risk-level cut points.
type Thresholds struct {
	Low    float64 `yaml:"low"`
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

// Validate checks ordering and range.
func (t Thresholds) Validate() error {
	if t.Low < 0 || t.High > 1 {
		return fmt.Errorf("thresholds must lie in [0,1], got low=%g high=%g", t.Low, t.High)
	}
	if t.Low > t.Medium || t.Medium > t.High {
		return fmt.Errorf("thresholds must be ordered low<=medium<=high, got %g/%g/%g", t.Low, t.Medium, t.High)
	}
	return nil
}

// Level buckets a score.
func (t Thresholds) Level(score float64) RiskLevel {
	switch {
	case score >= t.High:
		return RiskHigh
	case score >= t.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ContributingFactor is one observed evidence node at a suspicious or
// worse state, weighted by its configured evidence weight.
type ContributingFactor struct {
	Node   NodeName `json:"node"`
	State  string   `json:"state"`
	Weight float64  `json:"weight"`
}

// EvidenceNodeStatus records how one evidence node entered the
// inference: observed at a state, or substituted with its fallback
// prior.
type EvidenceNodeStatus struct {
	Node     NodeName `json:"node"`
	Observed bool     `json:"observed"`
	State    string   `json:"state,omitempty"`
}

// OutcomeAssessment is the result of one risk calculation. It is owned
// by the caller and never retained by the engine.
type OutcomeAssessment struct {
	Typology            Typology             `json:"typology"`
	OverallScore        float64              `json:"overall_score"`
	Confidence          Confidence           `json:"confidence"`
	RiskLevel           RiskLevel            `json:"risk_level"`
	ContributingFactors []ContributingFactor `json:"contributing_factors"`
	EvidenceNodes       []EvidenceNodeStatus `json:"evidence_nodes"`
}

// ValidationReport describes how complete an evidence assignment is
// relative to the typology's required nodes.
type ValidationReport struct {
	Valid        bool       `json:"valid"`
	ValidNodes   []NodeName `json:"valid_nodes"`
	MissingNodes []NodeName `json:"missing_nodes"`
	Completeness float64    `json:"completeness"`
}

// EvidenceItem is the structured record handed to the external
// regulatory-explainability service.
type EvidenceItem struct {
	Node            NodeName                 `json:"node"`
	EvidenceType    probability.EvidenceType `json:"evidence_type"`
	State           string                   `json:"state"`
	Observed        bool                     `json:"observed"`
	Weight          float64                  `json:"weight"`
	Description     string                   `json:"description"`
	RegulatoryBasis string                   `json:"regulatory_basis"`
	AccountID       string                   `json:"account_id"`
	Timestamp       time.Time                `json:"timestamp"`
}
