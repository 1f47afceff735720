package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantsentinel/surveil/internal/bnet"
	"github.com/quantsentinel/surveil/internal/typology"
)

// TypologyDocument is the structured per-typology configuration surface:
// evidence weights, risk thresholds, model switches, and fallback
// priors. Documents are loaded once at startup and mutated only through
// the setters below, which re-validate immediately.
type TypologyDocument struct {
	Typology        string               `yaml:"typology"`
	UseLatentIntent *bool                `yaml:"use_latent_intent,omitempty"`
	RiskThresholds  *typology.Thresholds `yaml:"risk_thresholds,omitempty"`
	EvidenceWeights map[string]float64   `yaml:"evidence_weights,omitempty"`
	FallbackPriors  map[string][]float64 `yaml:"fallback_priors,omitempty"`
}

// LoadTypologyDocument parses and validates one YAML document.
func LoadTypologyDocument(path string) (*TypologyDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading typology document: %w", err)
	}
	var doc TypologyDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &doc, nil
}

// LoadTypologyDocuments reads every .yaml/.yml file in a directory,
// keyed by typology name. An empty dir string yields an empty map.
func LoadTypologyDocuments(dir string) (map[typology.Typology]*TypologyDocument, error) {
	docs := make(map[typology.Typology]*TypologyDocument)
	if dir == "" {
		return docs, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading typology config dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		doc, err := LoadTypologyDocument(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		t := typology.Typology(doc.Typology)
		if _, dup := docs[t]; dup {
			return nil, fmt.Errorf("duplicate typology document for %q", t)
		}
		docs[t] = doc
	}
	return docs, nil
}

// Validate checks the document invariants: a known typology name,
// ordered thresholds, weights that sum to 1 when given in full, and
// well-formed fallback priors.
func (d *TypologyDocument) Validate() error {
	if _, err := typology.Parse(d.Typology); err != nil {
		return err
	}
	if d.RiskThresholds != nil {
		if err := d.RiskThresholds.Validate(); err != nil {
			return fmt.Errorf("%s: %w", d.Typology, err)
		}
	}
	for node, w := range d.EvidenceWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s: evidence weight for %q outside [0,1]: %g", d.Typology, node, w)
		}
	}
	for node, prior := range d.FallbackPriors {
		if len(prior) != 2 && len(prior) != 3 {
			return fmt.Errorf("%s: fallback prior for %q has %d entries", d.Typology, node, len(prior))
		}
		sum := 0.0
		for _, p := range prior {
			if p < 0 {
				return fmt.Errorf("%s: negative fallback prior entry for %q", d.Typology, node)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > bnet.SumTolerance {
			return fmt.Errorf("%s: fallback prior for %q sums to %.9f", d.Typology, node, sum)
		}
	}
	return nil
}

// SetRiskThreshold updates one cut point and re-validates immediately,
// rolling back on violation.
func (d *TypologyDocument) SetRiskThreshold(level string, value float64) error {
	thresholds := typology.Thresholds{}
	if d.RiskThresholds != nil {
		thresholds = *d.RiskThresholds
	}
	prev := d.RiskThresholds
	switch strings.ToLower(level) {
	case "low":
		thresholds.Low = value
	case "medium":
		thresholds.Medium = value
	case "high":
		thresholds.High = value
	default:
		return fmt.Errorf("%s: unknown threshold level %q", d.Typology, level)
	}
	d.RiskThresholds = &thresholds
	if err := d.Validate(); err != nil {
		d.RiskThresholds = prev
		return err
	}
	return nil
}

// SetEvidenceWeight updates one node's weight and re-validates
// immediately, rolling back on violation.
func (d *TypologyDocument) SetEvidenceWeight(node string, weight float64) error {
	if d.EvidenceWeights == nil {
		d.EvidenceWeights = make(map[string]float64)
	}
	prev, had := d.EvidenceWeights[node]
	d.EvidenceWeights[node] = weight
	if err := d.Validate(); err != nil {
		if had {
			d.EvidenceWeights[node] = prev
		} else {
			delete(d.EvidenceWeights, node)
		}
		return err
	}
	return nil
}

// Apply overlays the document onto a typology definition. Weight
// overrides must be given for every evidence node or not at all, since
// the per-typology weights must still sum to 1.
func (d *TypologyDocument) Apply(def *typology.Definition) error {
	if string(def.Typology) != d.Typology {
		return fmt.Errorf("document for %q applied to %q definition", d.Typology, def.Typology)
	}
	if d.UseLatentIntent != nil {
		def.UseLatentIntent = *d.UseLatentIntent
	}
	if d.RiskThresholds != nil {
		def.Thresholds = *d.RiskThresholds
	}
	if len(d.EvidenceWeights) > 0 {
		if len(d.EvidenceWeights) != len(def.Evidence) {
			return fmt.Errorf("%s: evidence_weights must cover all %d nodes, got %d", d.Typology, len(def.Evidence), len(d.EvidenceWeights))
		}
		for i, ev := range def.Evidence {
			w, ok := d.EvidenceWeights[string(ev.Node)]
			if !ok {
				return fmt.Errorf("%s: evidence_weights missing node %q", d.Typology, ev.Node)
			}
			def.Evidence[i].Weight = w
		}
	}
	for i, ev := range def.Evidence {
		if prior, ok := d.FallbackPriors[string(ev.Node)]; ok {
			def.Evidence[i].FallbackPrior = append([]float64(nil), prior...)
		}
	}
	return def.Validate()
}
