package bnet

import "fmt"

// EvidenceNode is a leaf variable bound to an externally observed
// discrete signal. It is immutable after construction; accessors return
// copies so callers cannot reach the internal slices.
type EvidenceNode struct {
	name     string
	states   []string
	fallback []float64
}

// NewEvidenceNode builds an evidence node with 2 or 3 ordered states and
// a fallback prior of matching length. The fallback prior is substituted
// as soft evidence when no runtime observation is available.
func NewEvidenceNode(name string, states []string, fallbackPrior []float64) (*EvidenceNode, error) {
	if name == "" {
		return nil, &ConfigurationError{Scope: "evidence node", Detail: "name is required"}
	}
	if len(states) != 2 && len(states) != 3 {
		return nil, &UnsupportedCardinalityError{Node: name, Cardinality: len(states)}
	}
	if len(fallbackPrior) != len(states) {
		return nil, &ConfigurationError{
			Scope:  name,
			Detail: fmt.Sprintf("fallback prior has %d entries for %d states", len(fallbackPrior), len(states)),
		}
	}
	sum := 0.0
	for _, p := range fallbackPrior {
		if p < 0 {
			return nil, &ConfigurationError{Scope: name, Detail: fmt.Sprintf("negative fallback prior entry %g", p)}
		}
		sum += p
	}
	if diff := sum - 1.0; diff > SumTolerance || diff < -SumTolerance {
		return nil, &ConfigurationError{Scope: name, Detail: fmt.Sprintf("fallback prior sums to %.9f, want 1.0", sum)}
	}
	n := &EvidenceNode{
		name:     name,
		states:   append([]string(nil), states...),
		fallback: append([]float64(nil), fallbackPrior...),
	}
	return n, nil
}

func (n *EvidenceNode) Name() string { return n.name }

// Cardinality returns the number of states (2 or 3).
func (n *EvidenceNode) Cardinality() int { return len(n.states) }

// States returns a copy of the ordered state names.
func (n *EvidenceNode) States() []string {
	return append([]string(nil), n.states...)
}

// FallbackPrior returns a copy of the soft-evidence distribution used
// when the node is unobserved.
func (n *EvidenceNode) FallbackPrior() []float64 {
	return append([]float64(nil), n.fallback...)
}

// StateIndex resolves an observed value to a 0-based state index. It
// accepts an int index or a state-name string.
func (n *EvidenceNode) StateIndex(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		if v >= 0 && v < len(n.states) {
			return v, true
		}
	case string:
		for i, s := range n.states {
			if s == v {
				return i, true
			}
		}
	}
	return 0, false
}

// ValidateValue reports whether a runtime observation is acceptable for
// this node.
func (n *EvidenceNode) ValidateValue(value any) bool {
	_, ok := n.StateIndex(value)
	return ok
}
