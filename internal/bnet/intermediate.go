package bnet

import "fmt"

// ExplainingAwayNode is the shared contract of aggregation nodes: a
// named node whose CPT makes co-occurring strong indicators reinforce
// the adverse state super-additively instead of averaging out.
type ExplainingAwayNode interface {
	Name() string
	ParentStates() []string
	CompatibleWith(typology string) bool
}

// IntermediateNode combines up to MaxParents 3-state parents into one
// 3-state aggregate via a noisy-OR CPT. Parent order is significant: the
// first parent carries the heaviest weight.
type IntermediateNode struct {
	name     string
	kind     AggregateKind
	parents  []string
	states   []string
	leak     float64 // residual benign probability with no adverse evidence
	weights  []float64
	discount float64 // damping applied when a parent sits in its middle state
	split    float64 // fraction of adverse mass routed to the middle state
}

func (n *IntermediateNode) Name() string        { return n.name }
func (n *IntermediateNode) Kind() AggregateKind { return n.kind }

// ParentStates returns the configured parent names in weight order.
func (n *IntermediateNode) ParentStates() []string {
	return append([]string(nil), n.parents...)
}

// States returns the three aggregate states in ascending severity.
func (n *IntermediateNode) States() []string {
	return append([]string(nil), n.states...)
}

// CompatibleWith reports whether this node's kind is declared usable in
// the given typology.
func (n *IntermediateNode) CompatibleWith(typology string) bool {
	for _, t := range kindSpecs[n.kind].compatible {
		if t == typology {
			return true
		}
	}
	return false
}

// CreateNoisyOrCPT builds the node's conditional probability table.
//
// For each combination of parent states, the residual benign mass starts
// at the leak probability and is damped once per parent: fully by the
// parent's weight when the parent is in its adverse state, and by the
// discounted weight when it is in its middle state. The adverse mass is
// then split between the top two severity states, every cell is floored
// and the column renormalized to sum to exactly 1.
func (n *IntermediateNode) CreateNoisyOrCPT() (*CPT, error) {
	return NoisyOrCPT(n.name, n.States(), n.ParentStates(), n.leak, n.weights, n.discount, n.split)
}

// NoisyOrCPT is the raw noisy-OR table builder shared by the typed
// aggregate kinds and the latent-intent layer. It accepts a 2- or
// 3-state child over 3-state parents; for a binary child the split
// fraction is ignored and the adverse mass lands on the high state.
func NoisyOrCPT(node string, states, parents []string, leak float64, weights []float64, discount, split float64) (*CPT, error) {
	if len(parents) == 0 {
		return nil, &MissingParentsError{Node: node}
	}
	if len(parents) > MaxParents {
		return nil, &ParentCountExceededError{Node: node, Count: len(parents)}
	}
	if len(weights) < len(parents) {
		return nil, &ConfigurationError{
			Scope:  node,
			Detail: fmt.Sprintf("%d parents but only %d weights", len(parents), len(weights)),
		}
	}
	if len(states) != 2 && len(states) != 3 {
		return nil, &UnsupportedCardinalityError{Node: node, Cardinality: len(states)}
	}

	k := len(parents)
	cards := make([]int, k)
	for i := range cards {
		cards[i] = 3
	}
	cols := 1
	for range parents {
		cols *= 3
	}

	cpt := &CPT{
		Node:        node,
		States:      append([]string(nil), states...),
		Parents:     append([]string(nil), parents...),
		ParentCards: cards,
		Values:      make([][]float64, len(states)),
	}
	for row := range cpt.Values {
		cpt.Values[row] = make([]float64, cols)
	}

	assignment := make([]int, k)
	for col := 0; col < cols; col++ {
		// Decode the column into parent states, first parent most
		// significant.
		rem := col
		for i := k - 1; i >= 0; i-- {
			assignment[i] = rem % 3
			rem /= 3
		}

		pBenign := leak
		for i, s := range assignment {
			switch s {
			case 2:
				pBenign *= 1 - weights[i]
			case 1:
				pBenign *= 1 - weights[i]*discount
			}
		}
		pAdverse := 1 - pBenign

		var column []float64
		if len(states) == 2 {
			column = []float64{1 - pAdverse, pAdverse}
		} else {
			pMiddle := pAdverse * split
			column = []float64{1 - pAdverse - pMiddle, pMiddle, pAdverse}
		}
		clampAndRenormalize(column)
		for row := range column {
			cpt.Values[row][col] = column[row]
		}
	}
	return cpt, nil
}

// newIntermediateNode is the common constructor behind the typed kinds.
func newIntermediateNode(kind AggregateKind, name string, parents []string, spec kindSpec) (*IntermediateNode, error) {
	if name == "" {
		return nil, &ConfigurationError{Scope: "intermediate node", Detail: "name is required"}
	}
	// Over-cap parent sets are accepted here and rejected by
	// CreateNoisyOrCPT, which owns the fan-in invariant.
	weights := spec.weights
	if len(parents) < len(weights) {
		weights = weights[:len(parents)]
	}
	return &IntermediateNode{
		name:     name,
		kind:     kind,
		parents:  append([]string(nil), parents...),
		states:   append([]string(nil), spec.states...),
		leak:     spec.leak,
		weights:  append([]float64(nil), weights...),
		discount: spec.discount,
		split:    spec.split,
	}, nil
}
