package typology

import (
	"fmt"
	"math"

	"github.com/quantsentinel/surveil/internal/bnet"
	"github.com/quantsentinel/surveil/internal/probability"
)

// Evidence node roster. Names are grouped by the typology that consumes
// them; a handful are shared verbatim with the upstream evidence mapper
// and must not be renamed without coordinating a mapper release.
const (
	// insider dealing
	NodeTradePattern     NodeName = "trade_pattern"
	NodeCommsIntent      NodeName = "comms_intent"
	NodePnlDrift         NodeName = "pnl_drift"
	NodeMNPIAccess       NodeName = "mnpi_access"
	NodeTimingProximity  NodeName = "timing_proximity"
	NodePriceSensitivity NodeName = "price_sensitivity"

	// spoofing
	NodeOrderCancellation  NodeName = "order_cancellation"
	NodeOrderImbalance     NodeName = "order_imbalance"
	NodeLayeringPattern    NodeName = "layering_pattern"
	NodeQuoteStuffing      NodeName = "quote_stuffing"
	NodeExecutionAsymmetry NodeName = "execution_asymmetry"
	NodePriceReversion     NodeName = "price_reversion"

	// wash trading
	NodeSelfMatching    NodeName = "self_matching"
	NodeVolumeInflation NodeName = "volume_inflation"
	NodeCircularFlow    NodeName = "circular_flow"
	NodePriceNeutrality NodeName = "price_neutrality"
	NodeAccountLinkage  NodeName = "account_linkage"
	NodeTimingSynchrony NodeName = "timing_synchrony"

	// cross-desk collusion
	NodeCommsFrequency     NodeName = "comms_frequency"
	NodeOrderSynchrony     NodeName = "order_synchrony"
	NodeInformationSharing NodeName = "information_sharing"
	NodeProfitDistribution NodeName = "profit_distribution"
	NodeDeskCorrelation    NodeName = "desk_correlation"
	NodeAccessOverlap      NodeName = "access_overlap"

	// market cornering
	NodeMarketConcentration   NodeName = "market_concentration"
	NodePositionAccumulation  NodeName = "position_accumulation"
	NodeSupplyControl         NodeName = "supply_control"
	NodeLiquidityManipulation NodeName = "liquidity_manipulation"
	NodePriceDistortion       NodeName = "price_distortion"
	NodeDeliveryConstraint    NodeName = "delivery_constraint"

	// economic withholding
	NodeCapacityWithheld      NodeName = "capacity_withheld"
	NodeMarginalCostDeviation NodeName = "marginal_cost_deviation"
	NodeBidShapeAnomaly       NodeName = "bid_shape_anomaly"
	NodeScarcityAlignment     NodeName = "scarcity_alignment"
	NodePriceImpact           NodeName = "price_impact"
	NodeOutageJustification   NodeName = "outage_justification"

	// commodity manipulation
	NodePhysicalPosition        NodeName = "physical_position"
	NodeBenchmarkWindowActivity NodeName = "benchmark_window_activity"
	NodeStorageControl          NodeName = "storage_control"
	NodeSpreadDistortion        NodeName = "spread_distortion"
	NodeDeliveryPattern         NodeName = "delivery_pattern"
	NodeInformationAsymmetry    NodeName = "information_asymmetry"
)

// EvidenceSpec binds one evidence node to its type and its weight in
// the typology's contributing-factor model.
type EvidenceSpec struct {
	Node          NodeName
	Type          probability.EvidenceType
	Weight        float64
	FallbackPrior []float64 // optional; defaults to the type's profile
}

// Group assigns evidence nodes to one intermediate aggregation node.
type Group struct {
	Kind    bnet.AggregateKind
	Name    string
	Members []NodeName
}

// Definition is the complete static description of one typology model.
type Definition struct {
	Typology        Typology
	Evidence        []EvidenceSpec
	Groups          []Group
	UseLatentIntent bool
	Thresholds      Thresholds
}

var defaultThresholds = Thresholds{Low: 0.30, Medium: 0.50, High: 0.70}

var builtins = map[Typology]Definition{
	InsiderDealing: {
		Typology: InsiderDealing,
		Evidence: []EvidenceSpec{
			{Node: NodeMNPIAccess, Type: probability.Information, Weight: 0.25},
			{Node: NodeTradePattern, Type: probability.Behavioral, Weight: 0.20},
			{Node: NodeCommsIntent, Type: probability.Information, Weight: 0.15},
			{Node: NodePnlDrift, Type: probability.Economic, Weight: 0.15},
			{Node: NodeTimingProximity, Type: probability.Behavioral, Weight: 0.15},
			{Node: NodePriceSensitivity, Type: probability.MarketImpact, Weight: 0.10},
		},
		Groups: []Group{
			{Kind: bnet.KindInformationAdvantage, Name: "information_advantage", Members: []NodeName{NodeMNPIAccess, NodeCommsIntent, NodePriceSensitivity}},
			{Kind: bnet.KindBehavioralIntent, Name: "behavioral_intent", Members: []NodeName{NodeTradePattern, NodeTimingProximity, NodePnlDrift}},
		},
		UseLatentIntent: true,
		Thresholds:      defaultThresholds,
	},
	Spoofing: {
		Typology: Spoofing,
		Evidence: []EvidenceSpec{
			{Node: NodeOrderCancellation, Type: probability.Technical, Weight: 0.22},
			{Node: NodeLayeringPattern, Type: probability.Technical, Weight: 0.20},
			{Node: NodeOrderImbalance, Type: probability.MarketImpact, Weight: 0.15},
			{Node: NodeExecutionAsymmetry, Type: probability.Technical, Weight: 0.15},
			{Node: NodePriceReversion, Type: probability.MarketImpact, Weight: 0.15},
			{Node: NodeQuoteStuffing, Type: probability.Technical, Weight: 0.13},
		},
		Groups: []Group{
			{Kind: bnet.KindTechnicalManipulation, Name: "technical_manipulation", Members: []NodeName{NodeOrderCancellation, NodeLayeringPattern, NodeQuoteStuffing, NodeExecutionAsymmetry}},
			{Kind: bnet.KindMarketImpact, Name: "market_impact", Members: []NodeName{NodeOrderImbalance, NodePriceReversion}},
		},
		Thresholds: defaultThresholds,
	},
	WashTrading: {
		Typology: WashTrading,
		Evidence: []EvidenceSpec{
			{Node: NodeSelfMatching, Type: probability.Technical, Weight: 0.25},
			{Node: NodeCircularFlow, Type: probability.Coordination, Weight: 0.20},
			{Node: NodeAccountLinkage, Type: probability.Coordination, Weight: 0.15},
			{Node: NodeVolumeInflation, Type: probability.MarketImpact, Weight: 0.15},
			{Node: NodePriceNeutrality, Type: probability.MarketImpact, Weight: 0.13},
			{Node: NodeTimingSynchrony, Type: probability.Coordination, Weight: 0.12},
		},
		Groups: []Group{
			{Kind: bnet.KindCoordinationPatterns, Name: "coordination_patterns", Members: []NodeName{NodeCircularFlow, NodeAccountLinkage, NodeTimingSynchrony}},
			{Kind: bnet.KindTechnicalManipulation, Name: "technical_manipulation", Members: []NodeName{NodeSelfMatching, NodeVolumeInflation, NodePriceNeutrality}},
		},
		Thresholds: defaultThresholds,
	},
	CrossDeskCollusion: {
		Typology: CrossDeskCollusion,
		Evidence: []EvidenceSpec{
			{Node: NodeCommsFrequency, Type: probability.Coordination, Weight: 0.20},
			{Node: NodeOrderSynchrony, Type: probability.Coordination, Weight: 0.20},
			{Node: NodeInformationSharing, Type: probability.Information, Weight: 0.20},
			{Node: NodeDeskCorrelation, Type: probability.Coordination, Weight: 0.15},
			{Node: NodeProfitDistribution, Type: probability.Economic, Weight: 0.15},
			{Node: NodeAccessOverlap, Type: probability.Information, Weight: 0.10},
		},
		Groups: []Group{
			{Kind: bnet.KindCoordinationPatterns, Name: "coordination_patterns", Members: []NodeName{NodeCommsFrequency, NodeOrderSynchrony, NodeDeskCorrelation}},
			{Kind: bnet.KindInformationAdvantage, Name: "information_advantage", Members: []NodeName{NodeInformationSharing, NodeProfitDistribution, NodeAccessOverlap}},
		},
		UseLatentIntent: true,
		Thresholds:      defaultThresholds,
	},
	MarketCornering: {
		Typology: MarketCornering,
		Evidence: []EvidenceSpec{
			{Node: NodeMarketConcentration, Type: probability.MarketImpact, Weight: 0.22},
			{Node: NodeSupplyControl, Type: probability.Economic, Weight: 0.20},
			{Node: NodePositionAccumulation, Type: probability.Behavioral, Weight: 0.18},
			{Node: NodeLiquidityManipulation, Type: probability.MarketImpact, Weight: 0.15},
			{Node: NodePriceDistortion, Type: probability.MarketImpact, Weight: 0.15},
			{Node: NodeDeliveryConstraint, Type: probability.Economic, Weight: 0.10},
		},
		Groups: []Group{
			{Kind: bnet.KindMarketImpact, Name: "market_impact", Members: []NodeName{NodeMarketConcentration, NodeSupplyControl, NodeLiquidityManipulation, NodePriceDistortion}},
			{Kind: bnet.KindBehavioralIntent, Name: "behavioral_intent", Members: []NodeName{NodePositionAccumulation, NodeDeliveryConstraint}},
		},
		UseLatentIntent: true,
		Thresholds:      defaultThresholds,
	},
	EconomicWithholding: {
		Typology: EconomicWithholding,
		Evidence: []EvidenceSpec{
			{Node: NodeCapacityWithheld, Type: probability.Economic, Weight: 0.25},
			{Node: NodeMarginalCostDeviation, Type: probability.Economic, Weight: 0.20},
			{Node: NodeBidShapeAnomaly, Type: probability.Economic, Weight: 0.15},
			{Node: NodeScarcityAlignment, Type: probability.MarketImpact, Weight: 0.15},
			{Node: NodePriceImpact, Type: probability.MarketImpact, Weight: 0.15},
			{Node: NodeOutageJustification, Type: probability.Economic, Weight: 0.10},
		},
		Groups: []Group{
			{Kind: bnet.KindEconomicRationality, Name: "economic_rationality", Members: []NodeName{NodeCapacityWithheld, NodeMarginalCostDeviation, NodeBidShapeAnomaly, NodeOutageJustification}},
			{Kind: bnet.KindMarketImpact, Name: "market_impact", Members: []NodeName{NodeScarcityAlignment, NodePriceImpact}},
		},
		Thresholds: defaultThresholds,
	},
	CommodityManipulation: {
		Typology: CommodityManipulation,
		Evidence: []EvidenceSpec{
			{Node: NodeBenchmarkWindowActivity, Type: probability.MarketImpact, Weight: 0.20},
			{Node: NodePhysicalPosition, Type: probability.Economic, Weight: 0.20},
			{Node: NodeStorageControl, Type: probability.Economic, Weight: 0.15},
			{Node: NodeSpreadDistortion, Type: probability.MarketImpact, Weight: 0.15},
			{Node: NodeDeliveryPattern, Type: probability.Economic, Weight: 0.15},
			{Node: NodeInformationAsymmetry, Type: probability.Information, Weight: 0.15},
		},
		Groups: []Group{
			{Kind: bnet.KindMarketImpact, Name: "market_impact", Members: []NodeName{NodeBenchmarkWindowActivity, NodeSpreadDistortion, NodeInformationAsymmetry}},
			{Kind: bnet.KindEconomicRationality, Name: "economic_rationality", Members: []NodeName{NodePhysicalPosition, NodeStorageControl, NodeDeliveryPattern}},
		},
		Thresholds: defaultThresholds,
	},
}

// DefinitionFor returns a deep copy of the builtin definition for a
// typology, safe for the caller to customize before model construction.
func DefinitionFor(t Typology) (Definition, error) {
	def, ok := builtins[t]
	if !ok {
		return Definition{}, &bnet.ConfigurationError{Scope: string(t), Detail: "no builtin definition"}
	}
	return def.clone(), nil
}

func (d Definition) clone() Definition {
	out := d
	out.Evidence = make([]EvidenceSpec, len(d.Evidence))
	for i, ev := range d.Evidence {
		out.Evidence[i] = ev
		out.Evidence[i].FallbackPrior = append([]float64(nil), ev.FallbackPrior...)
	}
	out.Groups = make([]Group, len(d.Groups))
	for i, g := range d.Groups {
		out.Groups[i] = g
		out.Groups[i].Members = append([]NodeName(nil), g.Members...)
	}
	return out
}

// Validate checks the definition invariants: evidence weights summing
// to 1, at most two groups, every evidence node in exactly one group,
// and every group kind declared compatible with the typology.
func (d Definition) Validate() error {
	if len(d.Evidence) == 0 {
		return &bnet.ConfigurationError{Scope: string(d.Typology), Detail: "no evidence nodes configured"}
	}
	if len(d.Groups) == 0 || len(d.Groups) > 2 {
		return &bnet.ConfigurationError{
			Scope:  string(d.Typology),
			Detail: fmt.Sprintf("%d intermediate groups configured, want 1 or 2", len(d.Groups)),
		}
	}

	sum := 0.0
	known := make(map[NodeName]bool, len(d.Evidence))
	for _, ev := range d.Evidence {
		if known[ev.Node] {
			return &bnet.ConfigurationError{Scope: string(d.Typology), Detail: fmt.Sprintf("duplicate evidence node %q", ev.Node)}
		}
		known[ev.Node] = true
		sum += ev.Weight
	}
	if math.Abs(sum-1.0) > bnet.SumTolerance {
		return &bnet.ConfigurationError{
			Scope:  string(d.Typology),
			Detail: fmt.Sprintf("evidence weights sum to %.9f, want 1.0", sum),
		}
	}

	grouped := make(map[NodeName]bool, len(d.Evidence))
	for _, g := range d.Groups {
		for _, member := range g.Members {
			if !known[member] {
				return &bnet.ConfigurationError{Scope: string(d.Typology), Detail: fmt.Sprintf("group %q references unknown node %q", g.Name, member)}
			}
			if grouped[member] {
				return &bnet.ConfigurationError{Scope: string(d.Typology), Detail: fmt.Sprintf("node %q assigned to more than one group", member)}
			}
			grouped[member] = true
		}
	}
	for node := range known {
		if !grouped[node] {
			return &bnet.ConfigurationError{Scope: string(d.Typology), Detail: fmt.Sprintf("evidence node %q not assigned to any group", node)}
		}
	}

	return d.Thresholds.Validate()
}
