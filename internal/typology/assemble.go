package typology

import (
	"fmt"

	"github.com/quantsentinel/surveil/internal/bnet"
	"github.com/quantsentinel/surveil/internal/probability"
)

// Structural node names shared by every assembled network.
const (
	// OutcomeNode is the single sink of every typology network.
	OutcomeNode = "risk_outcome"

	// LatentIntentNode sits between the aggregates and the outcome
	// when a typology models intent explicitly.
	LatentIntentNode = "latent_intent"
)

var (
	outcomeStates = []string{"no_violation", "violation"}
	latentStates  = []string{"no_intent", "potential_intent", "clear_intent"}
)

// Latent-intent and outcome layer constants. Calibrated with the
// aggregate kind constants; see internal/bnet/nodetypes.go.
const (
	latentLeak      = 0.97
	latentDiscount  = 0.50
	latentSplit     = 0.40
	outcomeLeak     = 0.97
	outcomeDiscount = 0.50
)

var (
	latentWeights  = []float64{0.85, 0.80, 0.75, 0.70}
	outcomeWeights = []float64{0.85, 0.80, 0.75, 0.70}

	// outcomeGivenIntent maps each latent-intent state to the binary
	// outcome distribution: rows are (no_violation, violation).
	outcomeGivenIntent = [2][3]float64{
		{0.99, 0.65, 0.10},
		{0.01, 0.35, 0.90},
	}
)

// buildNetwork assembles, validates, and freezes the network for one
// typology definition against the supplied registry. It also returns
// the evidence leaves so the model can resolve observations and
// fallback priors through them.
func buildNetwork(def Definition, reg *probability.Registry) (*bnet.Network, map[NodeName]*bnet.EvidenceNode, error) {
	if err := def.Validate(); err != nil {
		return nil, nil, err
	}

	n := bnet.NewNetwork(string(def.Typology))

	leaves := make(map[NodeName]*bnet.EvidenceNode, len(def.Evidence))
	for _, ev := range def.Evidence {
		cpt, err := reg.CreateEvidenceCPT(string(ev.Node), ev.Type, 3)
		if err != nil {
			return nil, nil, err
		}
		prior := ev.FallbackPrior
		if len(prior) == 0 {
			prior = cpt.Column(0)
		}
		leaf, err := bnet.NewEvidenceNode(string(ev.Node), cpt.States, prior)
		if err != nil {
			return nil, nil, err
		}
		leaves[ev.Node] = leaf
		if err := n.AddVariable(&bnet.Variable{
			Name:   leaf.Name(),
			States: leaf.States(),
			CPT:    cpt,
		}); err != nil {
			return nil, nil, err
		}
	}

	aggNames := make([]string, 0, len(def.Groups))
	for _, g := range def.Groups {
		members := make([]string, len(g.Members))
		for i, m := range g.Members {
			members[i] = string(m)
		}
		agg, err := bnet.NewAggregateNode(g.Kind, g.Name, members)
		if err != nil {
			return nil, nil, err
		}
		if !agg.CompatibleWith(string(def.Typology)) {
			return nil, nil, &bnet.ConfigurationError{
				Scope:  string(def.Typology),
				Detail: fmt.Sprintf("aggregate kind %q is not compatible with this typology", g.Kind),
			}
		}
		cpt, err := agg.CreateNoisyOrCPT()
		if err != nil {
			return nil, nil, err
		}
		if err := n.AddVariable(&bnet.Variable{
			Name:    g.Name,
			States:  agg.States(),
			Parents: agg.ParentStates(),
			CPT:     cpt,
		}); err != nil {
			return nil, nil, err
		}
		aggNames = append(aggNames, g.Name)
	}

	outcomeParents := aggNames
	if def.UseLatentIntent {
		lcpt, err := bnet.NoisyOrCPT(LatentIntentNode, latentStates, aggNames, latentLeak, latentWeights, latentDiscount, latentSplit)
		if err != nil {
			return nil, nil, err
		}
		if err := n.AddVariable(&bnet.Variable{
			Name:    LatentIntentNode,
			States:  latentStates,
			Parents: aggNames,
			CPT:     lcpt,
		}); err != nil {
			return nil, nil, err
		}
		outcomeParents = []string{LatentIntentNode}
	}

	ocpt, err := buildOutcomeCPT(def.UseLatentIntent, outcomeParents)
	if err != nil {
		return nil, nil, err
	}
	if err := n.AddVariable(&bnet.Variable{
		Name:    OutcomeNode,
		States:  outcomeStates,
		Parents: outcomeParents,
		CPT:     ocpt,
	}); err != nil {
		return nil, nil, err
	}

	if err := n.Assemble(OutcomeNode); err != nil {
		return nil, nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, nil, err
	}
	if err := n.Freeze(); err != nil {
		return nil, nil, err
	}
	return n, leaves, nil
}

// buildOutcomeCPT constructs the sink's table: a fixed intent-to-outcome
// mapping when a latent layer is present, a binary noisy-OR over the
// aggregates otherwise.
func buildOutcomeCPT(latent bool, parents []string) (*bnet.CPT, error) {
	if !latent {
		return bnet.NoisyOrCPT(OutcomeNode, outcomeStates, parents, outcomeLeak, outcomeWeights, outcomeDiscount, 0)
	}
	cpt := &bnet.CPT{
		Node:        OutcomeNode,
		States:      append([]string(nil), outcomeStates...),
		Parents:     append([]string(nil), parents...),
		ParentCards: []int{len(latentStates)},
		Values:      make([][]float64, 2),
	}
	for row := range cpt.Values {
		cpt.Values[row] = append([]float64(nil), outcomeGivenIntent[row][:]...)
	}
	return cpt, nil
}
