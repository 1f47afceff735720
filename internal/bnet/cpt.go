// Package bnet provides the Bayesian-network building blocks for the
// risk engine: conditional probability tables, evidence and aggregation
// nodes, noisy-OR CPT construction, and the per-typology network with
// its assembly lifecycle.
//
// Everything here is pure computation over plain values. Networks are
// built once, validated, frozen, and then shared read-only across any
// number of concurrent scoring calls.
package bnet

import (
	"fmt"
	"math"
)

// Invariants enforced on every table.
const (
	// MaxParents caps fan-in so a table never exceeds 3^4 columns.
	MaxParents = 4

	// ProbabilityFloor is the minimum cell value after clamping,
	// applied before each column is renormalized.
	ProbabilityFloor = 0.01

	// SumTolerance is the permitted deviation of a column sum from 1.
	SumTolerance = 1e-6
)

// CPT is a conditional probability table. Rows index the child's states
// and columns index combinations of parent states. Parent order is
// significant: the first parent is the most significant digit of the
// column index, so for parents (A, B) with 3 states each, column 0 is
// (A=0, B=0), column 1 is (A=0, B=1) and column 3 is (A=1, B=0).
type CPT struct {
	Node        string
	States      []string    // child states, one per row
	Parents     []string    // parent node names, order significant
	ParentCards []int       // cardinality of each parent
	Values      [][]float64 // Values[row][col]
}

// Columns returns the number of parent-state combinations.
func (c *CPT) Columns() int {
	n := 1
	for _, card := range c.ParentCards {
		n *= card
	}
	return n
}

// Column returns one column as a fresh slice.
func (c *CPT) Column(idx int) []float64 {
	col := make([]float64, len(c.Values))
	for row := range c.Values {
		col[row] = c.Values[row][idx]
	}
	return col
}

// ColumnIndex converts a parent-state assignment into a column index
// using mixed-radix encoding with the first parent most significant.
func ColumnIndex(states []int, cards []int) int {
	idx := 0
	for i, s := range states {
		idx = idx*cards[i] + s
	}
	return idx
}

// Validate checks the structural invariants: consistent dimensions, no
// negative entries, and every column summing to 1 within tolerance.
func (c *CPT) Validate() error {
	if len(c.States) == 0 || len(c.Values) != len(c.States) {
		return &AssemblyValidationError{Network: c.Node, Detail: "CPT row count does not match child states"}
	}
	cols := c.Columns()
	for row := range c.Values {
		if len(c.Values[row]) != cols {
			return &AssemblyValidationError{
				Network: c.Node,
				Detail:  fmt.Sprintf("CPT row %d has %d columns, want %d", row, len(c.Values[row]), cols),
			}
		}
	}
	for col := 0; col < cols; col++ {
		sum := 0.0
		for row := range c.Values {
			v := c.Values[row][col]
			if v < 0 {
				return &AssemblyValidationError{
					Network: c.Node,
					Detail:  fmt.Sprintf("negative probability %g at row %d col %d", v, row, col),
				}
			}
			sum += v
		}
		if math.Abs(sum-1.0) > SumTolerance {
			return &AssemblyValidationError{
				Network: c.Node,
				Detail:  fmt.Sprintf("column %d sums to %.9f, want 1.0", col, sum),
			}
		}
	}
	return nil
}

// clampAndRenormalize floors every entry at ProbabilityFloor and scales
// the column so it sums to exactly 1. The floor keeps hard zeros out of
// the tables so no evidence combination is ever treated as impossible.
func clampAndRenormalize(col []float64) {
	sum := 0.0
	for i, v := range col {
		if v < ProbabilityFloor {
			col[i] = ProbabilityFloor
		}
		sum += col[i]
	}
	for i := range col {
		col[i] /= sum
	}
}
