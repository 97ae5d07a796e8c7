package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRepairExprFromSpan_FillsGtFromSpanText(t *testing.T) {
	expr := map[string]any{"node": "Gt", "lhs": nil, "rhs": nil}
	got := repairExprFromSpan(expr, "Let x > 0.", nil)

	want := map[string]any{
		"node": "Gt",
		"lhs":  map[string]any{"node": "Symbol", "id": "x"},
		"rhs":  map[string]any{"node": "Number", "value": float64(0)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("repaired expr mismatch (-want +got):\n%s", diff)
	}
	if expr["lhs"] != nil {
		t.Error("input expression was mutated")
	}
}

func TestRepairExprFromSpan_FillsGePowFromSpanText(t *testing.T) {
	expr := map[string]any{"node": "Ge", "lhs": map[string]any{"node": "Pow"}, "rhs": nil}
	got := repairExprFromSpan(expr, "Prove x^2 >= 0.", nil)

	want := map[string]any{
		"node": "Ge",
		"lhs": map[string]any{
			"node": "Pow",
			"base": map[string]any{"node": "Symbol", "id": "x"},
			"exp":  map[string]any{"node": "Number", "value": float64(2)},
		},
		"rhs": map[string]any{"node": "Number", "value": float64(0)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("repaired expr mismatch (-want +got):\n%s", diff)
	}
}

func TestRepairExprFromSpan_EntityFallbackWhenSpanSilent(t *testing.T) {
	expr := map[string]any{"node": "Gt", "lhs": nil, "rhs": map[string]any{"node": "Number", "value": float64(1)}}
	got := repairExprFromSpan(expr, "no math here", []string{"n", "m"})

	lhs, _ := got["lhs"].(map[string]any)
	if lhs == nil || lhs["id"] != "n" {
		t.Errorf("lhs = %v, want Symbol with first entity id", got["lhs"])
	}
}

func TestRepairExprFromSpan_CompleteFieldsUntouched(t *testing.T) {
	expr := map[string]any{
		"node": "Gt",
		"lhs":  map[string]any{"node": "Symbol", "id": "y"},
		"rhs":  map[string]any{"node": "Number", "value": float64(7)},
	}
	got := repairExprFromSpan(expr, "Let x > 0.", []string{"x"})

	if diff := cmp.Diff(expr, got); diff != "" {
		t.Errorf("complete expression changed (-want +got):\n%s", diff)
	}
}

func TestRepairExprFromSpan_OtherKindsPassThrough(t *testing.T) {
	expr := map[string]any{"node": "Add", "args": []any{}}
	got := repairExprFromSpan(expr, "Let x > 0.", []string{"x"})

	if diff := cmp.Diff(expr, got); diff != "" {
		t.Errorf("non-comparison expression changed (-want +got):\n%s", diff)
	}
}
