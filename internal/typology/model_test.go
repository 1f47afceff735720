package typology

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/quantsentinel/surveil/internal/bnet"
	"github.com/quantsentinel/surveil/internal/probability"
)

func corneringModel(t *testing.T) *Model {
	t.Helper()
	def, err := DefinitionFor(MarketCornering)
	if err != nil {
		t.Fatalf("DefinitionFor: %v", err)
	}
	m, err := NewModel(def, probability.NewRegistry())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m
}

// High-signal cornering picture: dominant concentration, supply control
// and accumulation, moderate liquidity and price effects, no delivery
// constraint.
func corneringHighEvidence() EvidenceAssignment {
	return EvidenceAssignment{
		NodeMarketConcentration:   State(2),
		NodeSupplyControl:         State(2),
		NodePositionAccumulation:  State(2),
		NodeLiquidityManipulation: State(1),
		NodePriceDistortion:       State(1),
		NodeDeliveryConstraint:    State(0),
	}
}

func TestCalculateRisk_HighSignal(t *testing.T) {
	m := corneringModel(t)

	result, err := m.CalculateRisk(corneringHighEvidence())
	if err != nil {
		t.Fatalf("CalculateRisk: %v", err)
	}
	if result.OverallScore <= 0.7 {
		t.Errorf("score %.4f, want > 0.7 for a saturated evidence picture", result.OverallScore)
	}
	if result.RiskLevel != RiskHigh {
		t.Errorf("risk level %s, want %s", result.RiskLevel, RiskHigh)
	}
	if result.Typology != MarketCornering {
		t.Errorf("typology %s, want %s", result.Typology, MarketCornering)
	}
	if len(result.EvidenceNodes) != 6 {
		t.Errorf("%d evidence node statuses, want 6", len(result.EvidenceNodes))
	}

	// Five nodes sit above the benign state; delivery_constraint does
	// not contribute.
	if len(result.ContributingFactors) != 5 {
		t.Fatalf("%d contributing factors, want 5: %v", len(result.ContributingFactors), result.ContributingFactors)
	}
	if result.ContributingFactors[0].Node != NodeMarketConcentration {
		t.Errorf("heaviest factor %s, want %s", result.ContributingFactors[0].Node, NodeMarketConcentration)
	}
	for i := 1; i < len(result.ContributingFactors); i++ {
		if result.ContributingFactors[i].Weight > result.ContributingFactors[i-1].Weight {
			t.Errorf("factors not sorted by weight: %v", result.ContributingFactors)
		}
	}
}

func TestCalculateRisk_BenignSignal(t *testing.T) {
	m := corneringModel(t)

	evidence := EvidenceAssignment{}
	for _, node := range m.GetRequiredNodes() {
		evidence[node] = State(0)
	}
	result, err := m.CalculateRisk(evidence)
	if err != nil {
		t.Fatalf("CalculateRisk: %v", err)
	}
	if result.OverallScore >= 0.1 {
		t.Errorf("score %.4f, want < 0.1 with every node benign", result.OverallScore)
	}
	if result.RiskLevel != RiskLow {
		t.Errorf("risk level %s, want %s", result.RiskLevel, RiskLow)
	}
	if len(result.ContributingFactors) != 0 {
		t.Errorf("benign evidence produced factors: %v", result.ContributingFactors)
	}
}

func TestCalculateRisk_Deterministic(t *testing.T) {
	m := corneringModel(t)
	evidence := corneringHighEvidence()

	first, err := m.CalculateRisk(evidence)
	if err != nil {
		t.Fatalf("CalculateRisk: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := m.CalculateRisk(evidence)
		if err != nil {
			t.Fatalf("CalculateRisk: %v", err)
		}
		if again.OverallScore != first.OverallScore {
			t.Fatalf("run %d: score %v differs from %v", i, again.OverallScore, first.OverallScore)
		}
		if again.RiskLevel != first.RiskLevel || again.Confidence != first.Confidence {
			t.Fatalf("run %d: labels drifted", i)
		}
	}
}

func TestCalculateRisk_PartialEvidence(t *testing.T) {
	m := corneringModel(t)

	partial := EvidenceAssignment{
		NodeMarketConcentration:  State(2),
		NodeSupplyControl:        StateNamed("high"),
		NodePositionAccumulation: State(2),
	}
	result, err := m.CalculateRisk(partial)
	if err != nil {
		t.Fatalf("CalculateRisk: %v", err)
	}

	observed := 0
	for _, s := range result.EvidenceNodes {
		if s.Observed {
			observed++
			if s.State == "" {
				t.Errorf("observed node %s has no state", s.Node)
			}
		}
	}
	if observed != 3 {
		t.Errorf("%d observed statuses, want 3", observed)
	}
	if result.OverallScore <= 0 || result.OverallScore >= 1 {
		t.Errorf("score %v outside (0,1)", result.OverallScore)
	}
}

func TestCalculateRisk_InvalidValue(t *testing.T) {
	m := corneringModel(t)
	_, err := m.CalculateRisk(EvidenceAssignment{NodeMarketConcentration: State(7)})
	var ce *bnet.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
}

func TestValidateEvidence(t *testing.T) {
	m := corneringModel(t)

	report := m.ValidateEvidence(EvidenceAssignment{
		NodeMarketConcentration:  State(2),
		NodeSupplyControl:        State(1),
		NodePositionAccumulation: StateNamed("medium"),
	})
	if report.Valid {
		t.Error("half-complete assignment reported valid")
	}
	if len(report.ValidNodes) != 3 || len(report.MissingNodes) != 3 {
		t.Fatalf("valid=%v missing=%v, want 3 and 3", report.ValidNodes, report.MissingNodes)
	}
	if report.Completeness != 0.5 {
		t.Errorf("completeness %v, want 0.5", report.Completeness)
	}
	for _, missing := range []NodeName{NodeLiquidityManipulation, NodePriceDistortion, NodeDeliveryConstraint} {
		found := false
		for _, n := range report.MissingNodes {
			if n == missing {
				found = true
			}
		}
		if !found {
			t.Errorf("missing nodes %v do not include %s", report.MissingNodes, missing)
		}
	}

	full := m.ValidateEvidence(corneringHighEvidence())
	if !full.Valid || full.Completeness != 1.0 {
		t.Errorf("complete assignment: valid=%v completeness=%v", full.Valid, full.Completeness)
	}

	bad := m.ValidateEvidence(EvidenceAssignment{NodeMarketConcentration: StateNamed("outrageous")})
	if bad.Valid {
		t.Error("assignment with an invalid value reported valid")
	}
}

func TestSetRiskThreshold(t *testing.T) {
	m := corneringModel(t)

	if err := m.SetRiskThreshold(RiskHigh, 0.80); err != nil {
		t.Fatalf("SetRiskThreshold: %v", err)
	}
	if got := m.Thresholds().High; got != 0.80 {
		t.Errorf("high threshold %v, want 0.80", got)
	}

	// An update that breaks the ordering must roll back.
	if err := m.SetRiskThreshold(RiskHigh, 0.20); err == nil {
		t.Fatal("disordered threshold accepted")
	}
	if got := m.Thresholds().High; got != 0.80 {
		t.Errorf("failed update mutated threshold to %v", got)
	}

	if err := m.SetRiskThreshold(RiskLevel("CRITICAL"), 0.9); err == nil {
		t.Error("unknown risk level accepted")
	}
}

func TestSetEvidenceWeight(t *testing.T) {
	m := corneringModel(t)

	if err := m.SetEvidenceWeight(NodeMarketConcentration, 0.40); err != nil {
		t.Fatalf("SetEvidenceWeight: %v", err)
	}
	if w, _ := m.EvidenceWeight(NodeMarketConcentration); w != 0.40 {
		t.Errorf("weight %v, want 0.40", w)
	}

	// The remaining weights rescale so the total stays at 1.
	sum := 0.0
	for _, node := range m.GetRequiredNodes() {
		w, ok := m.EvidenceWeight(node)
		if !ok {
			t.Fatalf("no weight for %s", node)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > bnet.SumTolerance {
		t.Errorf("weights sum to %.9f after update", sum)
	}

	if err := m.SetEvidenceWeight(NodeMarketConcentration, 1.2); err == nil {
		t.Error("out-of-range weight accepted")
	}
	if err := m.SetEvidenceWeight(NodeName("unrelated"), 0.1); err == nil {
		t.Error("weight set on a node outside the typology")
	}
}

func TestGenerateRegulatoryExplanation(t *testing.T) {
	m := corneringModel(t)

	partial := EvidenceAssignment{
		NodeMarketConcentration: State(2),
		NodeSupplyControl:       State(1),
	}
	result, err := m.CalculateRisk(partial)
	if err != nil {
		t.Fatalf("CalculateRisk: %v", err)
	}

	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	items := m.GenerateRegulatoryExplanation(partial, result, "ACC-42", ts)
	if len(items) != 6 {
		t.Fatalf("%d evidence items, want 6", len(items))
	}
	if items[0].Node != NodeMarketConcentration {
		t.Errorf("heaviest item %s, want %s", items[0].Node, NodeMarketConcentration)
	}

	observed := 0
	for _, item := range items {
		if item.AccountID != "ACC-42" || !item.Timestamp.Equal(ts) {
			t.Errorf("item %s carries wrong provenance", item.Node)
		}
		if item.RegulatoryBasis == "" || item.Description == "" {
			t.Errorf("item %s missing regulatory context", item.Node)
		}
		if item.Observed {
			observed++
			if item.State == "" {
				t.Errorf("observed item %s has no state", item.Node)
			}
		}
	}
	if observed != 2 {
		t.Errorf("%d observed items, want 2", observed)
	}
}

// Unobserved nodes are resolved through their evidence leaves, so a
// definition-level fallback prior must change what inference sees.
func TestCalculateRisk_FallbackPriorOverride(t *testing.T) {
	baseline := corneringModel(t)
	base, err := baseline.CalculateRisk(EvidenceAssignment{})
	if err != nil {
		t.Fatalf("CalculateRisk: %v", err)
	}

	def, err := DefinitionFor(MarketCornering)
	if err != nil {
		t.Fatal(err)
	}
	// Shift the concentration leaf's unobserved mass toward high.
	def.Evidence[0].FallbackPrior = []float64{0.2, 0.3, 0.5}
	skewed, err := NewModel(def, probability.NewRegistry())
	if err != nil {
		t.Fatalf("NewModel with fallback override: %v", err)
	}
	result, err := skewed.CalculateRisk(EvidenceAssignment{})
	if err != nil {
		t.Fatalf("CalculateRisk: %v", err)
	}
	if result.OverallScore <= base.OverallScore {
		t.Errorf("score %.4f with adverse-leaning prior, want above baseline %.4f", result.OverallScore, base.OverallScore)
	}
}

// Malformed fallback priors are rejected when the model is built, not
// at inference time.
func TestNewModel_RejectsBadFallbackPrior(t *testing.T) {
	tests := []struct {
		name  string
		prior []float64
	}{
		{"length_mismatch", []float64{0.5, 0.5}},
		{"sum_violation", []float64{0.6, 0.6, 0.6}},
		{"negative_entry", []float64{1.2, -0.1, -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := DefinitionFor(MarketCornering)
			if err != nil {
				t.Fatal(err)
			}
			def.Evidence[0].FallbackPrior = tt.prior
			_, err = NewModel(def, probability.NewRegistry())
			var ce *bnet.ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("got %v, want ConfigurationError", err)
			}
		})
	}
}

func TestGetRequiredNodes(t *testing.T) {
	m := corneringModel(t)
	nodes := m.GetRequiredNodes()
	want := []NodeName{
		NodeMarketConcentration,
		NodeSupplyControl,
		NodePositionAccumulation,
		NodeLiquidityManipulation,
		NodePriceDistortion,
		NodeDeliveryConstraint,
	}
	if len(nodes) != len(want) {
		t.Fatalf("got %v, want %v", nodes, want)
	}
	for i := range want {
		if nodes[i] != want[i] {
			t.Errorf("node %d = %s, want %s", i, nodes[i], want[i])
		}
	}
}
