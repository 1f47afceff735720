package typology

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/quantsentinel/surveil/internal/bnet"
	"github.com/quantsentinel/surveil/internal/inference"
	"github.com/quantsentinel/surveil/internal/probability"
)

// Entropy cut points (nats) for the confidence label.
const (
	entropyHighConfidence   = 0.3
	entropyMediumConfidence = 0.6
)

// Model is one typology's assembled network plus its scoring
// configuration. The network is immutable once the model is built, so a
// single Model serves concurrent CalculateRisk calls without locking the
// hot path; the mutex only guards the mutable scoring configuration
// (thresholds and evidence weights).
type Model struct {
	def      Definition
	network  *bnet.Network
	leaves   map[NodeName]*bnet.EvidenceNode
	profiles map[NodeName]probability.Profile
	logger   *slog.Logger

	mu         sync.RWMutex
	thresholds Thresholds
	weights    map[NodeName]float64
}

// ModelOption customizes model construction.
type ModelOption func(*Model)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) ModelOption {
	return func(m *Model) { m.logger = logger }
}

// NewModel assembles the typology network from its definition and the
// supplied probability registry. Construction errors are eager: a model
// is either fully Ready or not created at all.
func NewModel(def Definition, reg *probability.Registry, opts ...ModelOption) (*Model, error) {
	network, leaves, err := buildNetwork(def, reg)
	if err != nil {
		return nil, err
	}

	profiles := make(map[NodeName]probability.Profile, len(def.Evidence))
	weights := make(map[NodeName]float64, len(def.Evidence))
	for _, ev := range def.Evidence {
		p, err := reg.GetProfile(ev.Type)
		if err != nil {
			return nil, err
		}
		profiles[ev.Node] = p
		weights[ev.Node] = ev.Weight
	}

	m := &Model{
		def:        def,
		network:    network,
		leaves:     leaves,
		profiles:   profiles,
		logger:     slog.Default(),
		thresholds: def.Thresholds,
		weights:    weights,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Typology returns the abuse pattern this model scores.
func (m *Model) Typology() Typology { return m.def.Typology }

// Phase exposes the underlying network's lifecycle phase.
func (m *Model) Phase() bnet.Phase { return m.network.Phase() }

// GetRequiredNodes returns the evidence nodes this typology expects, in
// definition order.
func (m *Model) GetRequiredNodes() []NodeName {
	nodes := make([]NodeName, len(m.def.Evidence))
	for i, ev := range m.def.Evidence {
		nodes[i] = ev.Node
	}
	return nodes
}

// ValidateEvidence reports which required nodes are present with valid
// values, which are missing, and the resulting completeness ratio.
func (m *Model) ValidateEvidence(evidence EvidenceAssignment) ValidationReport {
	report := ValidationReport{ValidNodes: []NodeName{}, MissingNodes: []NodeName{}}
	invalid := false
	for _, ev := range m.def.Evidence {
		value, ok := evidence[ev.Node]
		if !ok {
			report.MissingNodes = append(report.MissingNodes, ev.Node)
			continue
		}
		if _, ok := m.stateIndex(ev.Node, value); !ok {
			invalid = true
			continue
		}
		report.ValidNodes = append(report.ValidNodes, ev.Node)
	}
	report.Completeness = float64(len(report.ValidNodes)) / float64(len(m.def.Evidence))
	report.Valid = !invalid && len(report.MissingNodes) == 0
	return report
}

// CalculateRisk runs exact inference over the assembled network and maps
// the outcome marginal to an assessment. Missing evidence is never an
// error: unobserved nodes fall back to their priors as soft evidence,
// which degrades confidence rather than failing the call.
func (m *Model) CalculateRisk(evidence EvidenceAssignment) (*OutcomeAssessment, error) {
	if phase := m.network.Phase(); phase != bnet.PhaseReady {
		return nil, &bnet.AssemblyValidationError{
			Network: string(m.def.Typology),
			Detail:  fmt.Sprintf("calculate_risk called in phase %s, network must be ready", phase),
		}
	}

	m.mu.RLock()
	thresholds := m.thresholds
	weights := make(map[NodeName]float64, len(m.weights))
	for k, v := range m.weights {
		weights[k] = v
	}
	m.mu.RUnlock()

	vectors := make(map[string][]float64, len(m.def.Evidence))
	statuses := make([]EvidenceNodeStatus, 0, len(m.def.Evidence))
	observed := make(map[NodeName]int, len(evidence))

	for _, ev := range m.def.Evidence {
		leaf := m.leaves[ev.Node]
		value, present := evidence[ev.Node]
		if !present {
			vectors[string(ev.Node)] = leaf.FallbackPrior()
			statuses = append(statuses, EvidenceNodeStatus{Node: ev.Node, Observed: false})
			continue
		}
		idx, ok := leaf.StateIndex(value.Raw())
		if !ok {
			return nil, &bnet.ConfigurationError{
				Scope:  fmt.Sprintf("%s/%s", m.def.Typology, ev.Node),
				Detail: fmt.Sprintf("invalid evidence value %v", value),
			}
		}
		vector := make([]float64, leaf.Cardinality())
		vector[idx] = 1.0
		vectors[string(ev.Node)] = vector
		observed[ev.Node] = idx
		statuses = append(statuses, EvidenceNodeStatus{Node: ev.Node, Observed: true, State: leaf.States()[idx]})
	}

	marginal, err := inference.OutcomeMarginal(m.network, vectors)
	if err != nil {
		return nil, err
	}

	assessment := &OutcomeAssessment{
		Typology:            m.def.Typology,
		OverallScore:        scoreFromMarginal(marginal),
		Confidence:          confidenceFromEntropy(entropy(marginal)),
		ContributingFactors: m.contributingFactors(observed, weights),
		EvidenceNodes:       statuses,
	}
	assessment.RiskLevel = thresholds.Level(assessment.OverallScore)

	m.logger.Debug("risk calculated",
		"typology", m.def.Typology,
		"score", assessment.OverallScore,
		"risk_level", assessment.RiskLevel,
		"confidence", assessment.Confidence,
		"observed_nodes", len(observed),
	)
	return assessment, nil
}

// stateIndex resolves an observed value through the node's evidence
// leaf, which owns state naming and the fallback prior.
func (m *Model) stateIndex(node NodeName, value StateValue) (int, bool) {
	leaf, ok := m.leaves[node]
	if !ok {
		return 0, false
	}
	return leaf.StateIndex(value.Raw())
}

// contributingFactors lists observed nodes at a suspicious-or-worse
// state, heaviest evidence weight first.
func (m *Model) contributingFactors(observed map[NodeName]int, weights map[NodeName]float64) []ContributingFactor {
	factors := make([]ContributingFactor, 0, len(observed))
	for _, ev := range m.def.Evidence {
		idx, ok := observed[ev.Node]
		if !ok || idx < 1 {
			continue
		}
		variable, _ := m.network.Variable(string(ev.Node))
		factors = append(factors, ContributingFactor{
			Node:   ev.Node,
			State:  variable.States[idx],
			Weight: weights[ev.Node],
		})
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].Weight > factors[j].Weight })
	return factors
}

// scoreFromMarginal maps the outcome marginal to a scalar score: the
// violation probability for a binary outcome, an ordinal-weighted sum
// otherwise.
func scoreFromMarginal(marginal []float64) float64 {
	if len(marginal) == 2 {
		return marginal[1]
	}
	score := 0.0
	for i, p := range marginal {
		score += p * float64(i) / float64(len(marginal)-1)
	}
	return score
}

// entropy returns the Shannon entropy of a distribution in nats.
func entropy(dist []float64) float64 {
	h := 0.0
	for _, p := range dist {
		if p > 0 {
			h -= p * math.Log(p)
		}
	}
	return h
}

func confidenceFromEntropy(h float64) Confidence {
	switch {
	case h < entropyHighConfidence:
		return ConfidenceHigh
	case h < entropyMediumConfidence:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SetRiskThreshold updates one risk-level cut point, re-validating the
// threshold ordering immediately and rolling back on violation.
func (m *Model) SetRiskThreshold(level RiskLevel, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := m.thresholds
	switch level {
	case RiskLow:
		updated.Low = value
	case RiskMedium:
		updated.Medium = value
	case RiskHigh:
		updated.High = value
	default:
		return &bnet.ConfigurationError{Scope: string(m.def.Typology), Detail: fmt.Sprintf("unknown risk level %q", level)}
	}
	if err := updated.Validate(); err != nil {
		return &bnet.ConfigurationError{Scope: string(m.def.Typology), Detail: err.Error()}
	}
	m.thresholds = updated
	return nil
}

// SetEvidenceWeight updates one node's evidence weight and rescales the
// remaining weights proportionally so the total stays at 1, then
// re-validates.
func (m *Model) SetEvidenceWeight(node NodeName, weight float64) error {
	if weight < 0 || weight >= 1 {
		return &bnet.ConfigurationError{
			Scope:  fmt.Sprintf("%s/%s", m.def.Typology, node),
			Detail: fmt.Sprintf("evidence weight %g outside [0,1)", weight),
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.weights[node]
	if !ok {
		return &bnet.ConfigurationError{
			Scope:  fmt.Sprintf("%s/%s", m.def.Typology, node),
			Detail: "node is not part of this typology",
		}
	}
	restTotal := 1.0 - current
	if restTotal <= 0 {
		return &bnet.ConfigurationError{Scope: string(m.def.Typology), Detail: "cannot rescale: node carries the full weight"}
	}

	scale := (1.0 - weight) / restTotal
	updated := make(map[NodeName]float64, len(m.weights))
	sum := 0.0
	for n, w := range m.weights {
		if n == node {
			updated[n] = weight
		} else {
			updated[n] = w * scale
		}
		sum += updated[n]
	}
	if math.Abs(sum-1.0) > bnet.SumTolerance {
		return &bnet.ConfigurationError{
			Scope:  string(m.def.Typology),
			Detail: fmt.Sprintf("evidence weights sum to %.9f after update", sum),
		}
	}
	m.weights = updated
	return nil
}

// Thresholds returns the current risk-level cut points.
func (m *Model) Thresholds() Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// EvidenceWeight returns one node's current weight.
func (m *Model) EvidenceWeight(node NodeName) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.weights[node]
	return w, ok
}
