package bnet

import (
	"fmt"
	"strings"
)

// ConfigurationError reports invalid engine or typology configuration:
// an unknown profile, weights that do not sum to one, or an out-of-range
// model parameter.
type ConfigurationError struct {
	Scope  string // registry, typology, or node the bad value belongs to
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("bnet: configuration: %s: %s", e.Scope, e.Detail)
}

// MissingParentsError is returned when a noisy-OR CPT is requested for a
// node whose parent set was never configured.
type MissingParentsError struct {
	Node string
}

func (e *MissingParentsError) Error() string {
	return fmt.Sprintf("bnet: node %q has no parent nodes configured", e.Node)
}

// ParentCountExceededError is returned when a node is configured with
// more parents than the fan-in cap allows.
type ParentCountExceededError struct {
	Node  string
	Count int
}

func (e *ParentCountExceededError) Error() string {
	return fmt.Sprintf("bnet: node %q has %d parents, maximum is %d", e.Node, e.Count, MaxParents)
}

// UnsupportedCardinalityError is returned when an evidence CPT is
// requested for a cardinality other than 2 or 3.
type UnsupportedCardinalityError struct {
	Node        string
	Cardinality int
}

func (e *UnsupportedCardinalityError) Error() string {
	return fmt.Sprintf("bnet: node %q requested cardinality %d, supported values are 2 and 3", e.Node, e.Cardinality)
}

// AssemblyValidationError reports a structural defect found while
// validating a network: a cycle, a missing CPT, a disconnected node, or
// an operation attempted in the wrong lifecycle phase.
type AssemblyValidationError struct {
	Network string
	Detail  string
}

func (e *AssemblyValidationError) Error() string {
	return fmt.Sprintf("bnet: network %q: %s", e.Network, e.Detail)
}

// AggregateValidationError collects every invariant violation found by a
// full validation sweep, so callers see all problems at once.
type AggregateValidationError struct {
	Violations []string
}

func (e *AggregateValidationError) Error() string {
	return fmt.Sprintf("bnet: %d validation violation(s): %s", len(e.Violations), strings.Join(e.Violations, "; "))
}

// InferenceError wraps a failure inside the elimination procedure.
type InferenceError struct {
	Network string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("bnet: inference over %q failed: %v", e.Network, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
