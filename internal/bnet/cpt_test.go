package bnet

import (
	"math"
	"testing"
)

func TestColumnIndex(t *testing.T) {
	cards := []int{3, 3}

	tests := []struct {
		states []int
		want   int
	}{
		{[]int{0, 0}, 0},
		{[]int{0, 1}, 1},
		{[]int{0, 2}, 2},
		{[]int{1, 0}, 3},
		{[]int{2, 2}, 8},
	}
	for _, tt := range tests {
		if got := ColumnIndex(tt.states, cards); got != tt.want {
			t.Errorf("ColumnIndex(%v) = %d, want %d", tt.states, got, tt.want)
		}
	}
}

func TestClampAndRenormalize(t *testing.T) {
	// A column driven negative by an oversubscribed adverse split must
	// come back strictly positive and summing to exactly 1.
	col := []float64{-0.3, 0.5, 0.9}
	clampAndRenormalize(col)

	sum := 0.0
	for _, v := range col {
		if v <= 0 {
			t.Errorf("entry %g not positive after clamping", v)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > SumTolerance {
		t.Errorf("column sums to %.12f, want 1.0", sum)
	}
}

func TestCPTValidate_ColumnSum(t *testing.T) {
	cpt := &CPT{
		Node:   "bad",
		States: []string{"a", "b"},
		Values: [][]float64{{0.6}, {0.6}},
	}
	if err := cpt.Validate(); err == nil {
		t.Fatal("expected column-sum violation")
	}
}

func TestCPTValidate_Negative(t *testing.T) {
	cpt := &CPT{
		Node:   "bad",
		States: []string{"a", "b"},
		Values: [][]float64{{1.2}, {-0.2}},
	}
	if err := cpt.Validate(); err == nil {
		t.Fatal("expected negative-entry violation")
	}
}

func TestCPTColumn(t *testing.T) {
	cpt := &CPT{
		Node:        "x",
		States:      []string{"a", "b"},
		Parents:     []string{"p"},
		ParentCards: []int{3},
		Values:      [][]float64{{0.9, 0.5, 0.1}, {0.1, 0.5, 0.9}},
	}
	if cpt.Columns() != 3 {
		t.Fatalf("Columns() = %d, want 3", cpt.Columns())
	}
	col := cpt.Column(2)
	if col[0] != 0.1 || col[1] != 0.9 {
		t.Errorf("Column(2) = %v, want [0.1 0.9]", col)
	}
	if err := cpt.Validate(); err != nil {
		t.Errorf("valid CPT rejected: %v", err)
	}
}
