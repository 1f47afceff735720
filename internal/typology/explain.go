package typology

import (
	"sort"
	"time"
)

// GenerateRegulatoryExplanation emits one structured evidence item per
// evidence node, heaviest weight first, for the external explainability
// service to turn into narrative. Unobserved nodes are included with
// their fallback status so the narrative can disclose degraded inputs.
func (m *Model) GenerateRegulatoryExplanation(evidence EvidenceAssignment, result *OutcomeAssessment, accountID string, ts time.Time) []EvidenceItem {
	m.mu.RLock()
	weights := make(map[NodeName]float64, len(m.weights))
	for k, v := range m.weights {
		weights[k] = v
	}
	m.mu.RUnlock()

	// Prefer the statuses the inference call recorded; fall back to
	// resolving the raw assignment when no result is supplied.
	statuses := make(map[NodeName]EvidenceNodeStatus)
	if result != nil {
		for _, s := range result.EvidenceNodes {
			statuses[s.Node] = s
		}
	}

	items := make([]EvidenceItem, 0, len(m.def.Evidence))
	for _, ev := range m.def.Evidence {
		profile := m.profiles[ev.Node]
		item := EvidenceItem{
			Node:            ev.Node,
			EvidenceType:    ev.Type,
			Weight:          weights[ev.Node],
			Description:     profile.Description,
			RegulatoryBasis: profile.RegulatoryBasis,
			AccountID:       accountID,
			Timestamp:       ts,
		}
		if s, ok := statuses[ev.Node]; ok {
			item.Observed = s.Observed
			item.State = s.State
		} else if value, ok := evidence[ev.Node]; ok {
			if idx, valid := m.stateIndex(ev.Node, value); valid {
				variable, _ := m.network.Variable(string(ev.Node))
				item.Observed = true
				item.State = variable.States[idx]
			}
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Weight > items[j].Weight })
	return items
}
