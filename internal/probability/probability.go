// Package probability holds the centralized registry of evidence-type
// priors. A Registry is constructed once at startup, handed to the
// typology models as an explicit dependency, and treated as read-only;
// hot reload means swapping the whole registry for a new one, never
// mutating it in place.
package probability

import (
	"fmt"
	"math"

	"github.com/quantsentinel/surveil/internal/bnet"
)

// EvidenceType is the closed set of evidence categories the platform
// recognizes.
type EvidenceType string

const (
	Behavioral   EvidenceType = "behavioral"
	MarketImpact EvidenceType = "market_impact"
	Information  EvidenceType = "information"
	Coordination EvidenceType = "coordination"
	Technical    EvidenceType = "technical"
	Economic     EvidenceType = "economic"
)

// Types returns every evidence type in a stable order.
func Types() []EvidenceType {
	return []EvidenceType{Behavioral, MarketImpact, Information, Coordination, Technical, Economic}
}

// ParseEvidenceType validates a string against the closed enum.
func ParseEvidenceType(s string) (EvidenceType, error) {
	t := EvidenceType(s)
	for _, known := range Types() {
		if t == known {
			return t, nil
		}
	}
	return "", &bnet.ConfigurationError{Scope: "evidence type", Detail: fmt.Sprintf("unknown evidence type %q", s)}
}

// Profile is the prior distribution for one evidence type, with the
// regulatory source it was calibrated against.
type Profile struct {
	Low             float64
	Medium          float64
	High            float64
	Description     string
	RegulatoryBasis string
}

// Validate checks the profile invariants: each mass non-negative and a
// total of 1 within tolerance.
func (p Profile) Validate() error {
	for _, v := range []float64{p.Low, p.Medium, p.High} {
		if v < 0 {
			return fmt.Errorf("negative probability %g", v)
		}
	}
	if sum := p.Low + p.Medium + p.High; math.Abs(sum-1.0) > bnet.SumTolerance {
		return fmt.Errorf("probabilities sum to %.9f, want 1.0", sum)
	}
	return nil
}

// Registry maps evidence types to their configured profiles.
type Registry struct {
	profiles map[EvidenceType]Profile
}

// NewRegistry returns a registry preloaded with the default calibrated
// profiles. The defaults are deliberately conservative: most prior mass
// sits on the benign state for every evidence category.
func NewRegistry() *Registry {
	return &Registry{profiles: map[EvidenceType]Profile{
		Behavioral: {
			Low: 0.70, Medium: 0.20, High: 0.10,
			Description:     "Trading behavior deviation from the account's own baseline",
			RegulatoryBasis: "MAR Article 12(1)(a)",
		},
		MarketImpact: {
			Low: 0.65, Medium: 0.25, High: 0.10,
			Description:     "Observable price, depth, or liquidity distortion",
			RegulatoryBasis: "MAR Article 12(1)(a), REMIT Article 5",
		},
		Information: {
			Low: 0.75, Medium: 0.18, High: 0.07,
			Description:     "Access to or use of non-public material information",
			RegulatoryBasis: "MAR Articles 8 and 14",
		},
		Coordination: {
			Low: 0.80, Medium: 0.14, High: 0.06,
			Description:     "Cross-account or cross-desk alignment of activity",
			RegulatoryBasis: "MAR Article 12(2)(a)",
		},
		Technical: {
			Low: 0.72, Medium: 0.20, High: 0.08,
			Description:     "Order-mechanics anomalies such as cancellation or layering patterns",
			RegulatoryBasis: "MAR Article 12(2)(c), MiFID II RTS 6",
		},
		Economic: {
			Low: 0.68, Medium: 0.22, High: 0.10,
			Description:     "Conduct inconsistent with rational economic self-interest",
			RegulatoryBasis: "REMIT Article 5, EU 2019/943",
		},
	}}
}

// NewRegistryWithProfiles builds a registry from explicit profiles,
// rejecting unknown evidence types up front. Profiles themselves are
// checked by ValidateAll, which the caller runs explicitly.
func NewRegistryWithProfiles(profiles map[EvidenceType]Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[EvidenceType]Profile, len(profiles))}
	for t, p := range profiles {
		if _, err := ParseEvidenceType(string(t)); err != nil {
			return nil, err
		}
		r.profiles[t] = p
	}
	return r, nil
}

// GetProfile returns the profile for an evidence type.
func (r *Registry) GetProfile(t EvidenceType) (Profile, error) {
	p, ok := r.profiles[t]
	if !ok {
		return Profile{}, &bnet.ConfigurationError{Scope: "registry", Detail: fmt.Sprintf("no profile for evidence type %q", t)}
	}
	return p, nil
}

// ValidateAll re-checks every profile's invariants and reports all
// violations together. It is called explicitly by the operator wiring
// (and by tests), never during construction.
func (r *Registry) ValidateAll() error {
	var violations []string
	for _, t := range Types() {
		p, ok := r.profiles[t]
		if !ok {
			continue
		}
		if err := p.Validate(); err != nil {
			violations = append(violations, fmt.Sprintf("%s: %v", t, err))
		}
	}
	if len(violations) > 0 {
		return &bnet.AggregateValidationError{Violations: violations}
	}
	return nil
}

// CreateEvidenceCPT builds the prior table for an evidence leaf of the
// given type. Cardinality 3 uses the full (low, medium, high) profile;
// cardinality 2 uses (low, high) renormalized. Anything else fails.
func (r *Registry) CreateEvidenceCPT(nodeName string, t EvidenceType, cardinality int) (*bnet.CPT, error) {
	p, err := r.GetProfile(t)
	if err != nil {
		return nil, err
	}

	var column []float64
	switch cardinality {
	case 2:
		total := p.Low + p.High
		if total <= 0 {
			return nil, &bnet.ConfigurationError{
				Scope:  nodeName,
				Detail: fmt.Sprintf("evidence type %q has no mass on (low, high), cannot collapse to two states", t),
			}
		}
		column = []float64{p.Low / total, p.High / total}
	case 3:
		column = []float64{p.Low, p.Medium, p.High}
	default:
		return nil, &bnet.UnsupportedCardinalityError{Node: nodeName, Cardinality: cardinality}
	}

	cpt := &bnet.CPT{
		Node:   nodeName,
		States: stateNames(cardinality),
		Values: make([][]float64, cardinality),
	}
	for row := range column {
		cpt.Values[row] = []float64{column[row]}
	}
	return cpt, nil
}

func stateNames(cardinality int) []string {
	if cardinality == 2 {
		return []string{"low", "high"}
	}
	return []string{"low", "medium", "high"}
}
