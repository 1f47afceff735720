// Package inference runs exact inference over an assembled bnet.Network.
//
// The engine performs variable elimination in leaf-to-outcome order and
// renormalizes intermediate factors at every step to guard against
// numerical underflow. It allocates a private workspace per call, so a
// single frozen network can serve any number of concurrent callers.
package inference

import (
	"fmt"
	"math"

	"github.com/quantsentinel/surveil/internal/bnet"
)

// factor is a function over a set of variables, stored row-major with
// the first variable most significant.
type factor struct {
	vars   []string
	cards  []int
	values []float64
}

// OutcomeMarginal computes the outcome variable's marginal distribution
// given per-leaf evidence vectors.
//
// The evidence map assigns each evidence leaf a distribution over its
// states: a one-hot vector for an observed node, or the node's fallback
// prior substituted as soft evidence when the observation is missing.
// A vector supplied for a parentless variable replaces that variable's
// prior; a vector supplied for any other variable is multiplied in as a
// likelihood.
func OutcomeMarginal(n *bnet.Network, evidence map[string][]float64) ([]float64, error) {
	if n.Phase() < bnet.PhaseValidated {
		return nil, &bnet.AssemblyValidationError{
			Network: n.Name(),
			Detail:  fmt.Sprintf("inference requested in phase %s", n.Phase()),
		}
	}

	factors, err := buildFactors(n, evidence)
	if err != nil {
		return nil, &bnet.InferenceError{Network: n.Name(), Err: err}
	}

	// Eliminate every variable except the outcome, leaves first.
	for _, name := range n.TopologicalOrder() {
		if name == n.Outcome() {
			continue
		}
		var touching []*factor
		var rest []*factor
		for _, f := range factors {
			if f.has(name) {
				touching = append(touching, f)
			} else {
				rest = append(rest, f)
			}
		}
		if len(touching) == 0 {
			continue
		}
		product := touching[0]
		for _, f := range touching[1:] {
			product = multiply(product, f)
		}
		summed := sumOut(product, name)
		if err := summed.renormalize(); err != nil {
			return nil, &bnet.InferenceError{Network: n.Name(), Err: fmt.Errorf("eliminating %q: %w", name, err)}
		}
		factors = append(rest, summed)
	}

	result := factors[0]
	for _, f := range factors[1:] {
		result = multiply(result, f)
	}
	if len(result.vars) != 1 || result.vars[0] != n.Outcome() {
		return nil, &bnet.InferenceError{
			Network: n.Name(),
			Err:     fmt.Errorf("elimination left variables %v, want only %q", result.vars, n.Outcome()),
		}
	}
	if err := result.renormalize(); err != nil {
		return nil, &bnet.InferenceError{Network: n.Name(), Err: err}
	}
	return append([]float64(nil), result.values...), nil
}

// buildFactors turns every CPT into a factor and applies evidence.
func buildFactors(n *bnet.Network, evidence map[string][]float64) ([]*factor, error) {
	var factors []*factor
	for _, name := range n.Names() {
		v, _ := n.Variable(name)
		ev, hasEv := evidence[name]
		if hasEv && len(ev) != len(v.States) {
			return nil, fmt.Errorf("evidence vector for %q has %d entries, variable has %d states", name, len(ev), len(v.States))
		}
		if hasEv && len(v.Parents) == 0 {
			// Soft evidence on a root replaces its prior.
			factors = append(factors, &factor{
				vars:   []string{name},
				cards:  []int{len(v.States)},
				values: append([]float64(nil), ev...),
			})
			continue
		}
		factors = append(factors, fromCPT(v))
		if hasEv {
			factors = append(factors, &factor{
				vars:   []string{name},
				cards:  []int{len(v.States)},
				values: append([]float64(nil), ev...),
			})
		}
	}
	return factors, nil
}

// fromCPT lays a CPT out as a factor over (parents..., child).
func fromCPT(v *bnet.Variable) *factor {
	childCard := len(v.States)
	cards := append(append([]int(nil), v.CPT.ParentCards...), childCard)
	f := &factor{
		vars:   append(append([]string(nil), v.Parents...), v.Name),
		cards:  cards,
		values: make([]float64, v.CPT.Columns()*childCard),
	}
	for col := 0; col < v.CPT.Columns(); col++ {
		for row := 0; row < childCard; row++ {
			f.values[col*childCard+row] = v.CPT.Values[row][col]
		}
	}
	return f
}

func (f *factor) has(name string) bool {
	for _, v := range f.vars {
		if v == name {
			return true
		}
	}
	return false
}

func (f *factor) size() int {
	n := 1
	for _, c := range f.cards {
		n *= c
	}
	return n
}

// renormalize scales the factor to sum to 1, failing on underflow or
// non-finite values.
func (f *factor) renormalize() error {
	sum := 0.0
	for _, v := range f.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value in factor over %v", f.vars)
		}
		sum += v
	}
	if sum <= 0 {
		return fmt.Errorf("factor over %v summed to %g", f.vars, sum)
	}
	for i := range f.values {
		f.values[i] /= sum
	}
	return nil
}

// multiply computes the factor product over the union of variables.
func multiply(a, b *factor) *factor {
	vars := append([]string(nil), a.vars...)
	cards := append([]int(nil), a.cards...)
	for i, v := range b.vars {
		if !a.has(v) {
			vars = append(vars, v)
			cards = append(cards, b.cards[i])
		}
	}

	out := &factor{vars: vars, cards: cards}
	out.values = make([]float64, out.size())

	assignment := make(map[string]int, len(vars))
	idx := make([]int, len(vars))
	for flat := range out.values {
		decode(flat, cards, idx)
		for i, v := range vars {
			assignment[v] = idx[i]
		}
		out.values[flat] = a.at(assignment) * b.at(assignment)
	}
	return out
}

// sumOut marginalizes one variable away.
func sumOut(f *factor, name string) *factor {
	var vars []string
	var cards []int
	for i, v := range f.vars {
		if v != name {
			vars = append(vars, v)
			cards = append(cards, f.cards[i])
		}
	}
	out := &factor{vars: vars, cards: cards}
	out.values = make([]float64, out.size())

	assignment := make(map[string]int, len(f.vars))
	idx := make([]int, len(f.vars))
	for flat := range f.values {
		decode(flat, f.cards, idx)
		for i, v := range f.vars {
			assignment[v] = idx[i]
		}
		out.values[out.index(assignment)] += f.values[flat]
	}
	return out
}

// at reads the factor value for a full assignment.
func (f *factor) at(assignment map[string]int) float64 {
	return f.values[f.index(assignment)]
}

// index flattens an assignment, first variable most significant.
func (f *factor) index(assignment map[string]int) int {
	idx := 0
	for i, v := range f.vars {
		idx = idx*f.cards[i] + assignment[v]
	}
	return idx
}

// decode expands a flat index into per-variable states.
func decode(flat int, cards []int, out []int) {
	for i := len(cards) - 1; i >= 0; i-- {
		out[i] = flat % cards[i]
		flat /= cards[i]
	}
}
