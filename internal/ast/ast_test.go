package ast_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mvir/internal/ast"
)

func TestParseExpr_NestedTree(t *testing.T) {
	raw := []byte(`{
		"node": "Eq",
		"lhs": {"node": "Sum", "var": "k",
			"from": {"node": "Number", "value": 1},
			"to": {"node": "Symbol", "id": "n"},
			"body": {"node": "Symbol", "id": "k"}},
		"rhs": {"node": "Div",
			"num": {"node": "Mul", "args": [
				{"node": "Symbol", "id": "n"},
				{"node": "Add", "args": [
					{"node": "Symbol", "id": "n"},
					{"node": "Number", "value": 1}]}]},
			"den": {"node": "Number", "value": 2}}
	}`)

	expr, err := ast.ParseExpr(raw)
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	eq, ok := expr.(ast.Eq)
	if !ok {
		t.Fatalf("expected Eq, got %T", expr)
	}
	sum, ok := eq.LHS.(ast.Sum)
	if !ok {
		t.Fatalf("expected Sum on lhs, got %T", eq.LHS)
	}
	if sum.Var != "k" {
		t.Errorf("sum var = %q, want k", sum.Var)
	}

	out, err := ast.MarshalExpr(expr)
	if err != nil {
		t.Fatalf("MarshalExpr: %v", err)
	}
	reparsed, err := ast.ParseExpr(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if diff := cmp.Diff(expr, reparsed); diff != "" {
		t.Errorf("round trip mismatch (-first +second):\n%s", diff)
	}
}

func TestParseExpr_RejectsMalformedNodes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing node tag", `{"id": "x"}`},
		{"unknown node tag", `{"node": "Frobnicate"}`},
		{"extra field", `{"node": "Symbol", "id": "x", "name": "x"}`},
		{"symbol missing id", `{"node": "Symbol"}`},
		{"empty symbol id", `{"node": "Symbol", "id": ""}`},
		{"number missing value", `{"node": "Number"}`},
		{"add empty args", `{"node": "Add", "args": []}`},
		{"add missing args", `{"node": "Add"}`},
		{"div missing den", `{"node": "Div", "num": {"node": "Number", "value": 1}}`},
		{"sum missing var", `{"node": "Sum", "from": {"node": "Number", "value": 1}, "to": {"node": "Symbol", "id": "n"}, "body": {"node": "Symbol", "id": "k"}}`},
		{"call missing fn", `{"node": "Call", "args": []}`},
		{"null child", `{"node": "Neg", "arg": null}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ast.ParseExpr([]byte(tc.raw)); err == nil {
				t.Errorf("ParseExpr accepted %s", tc.raw)
			}
		})
	}
}

func TestParseExpr_CallWithEmptyArgs(t *testing.T) {
	expr, err := ast.ParseExpr([]byte(`{"node": "Call", "fn": "pi", "args": []}`))
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	call, ok := expr.(ast.Call)
	if !ok {
		t.Fatalf("expected Call, got %T", expr)
	}
	if call.Fn != "pi" || len(call.Args) != 0 {
		t.Errorf("call = %+v, want fn=pi with no args", call)
	}
}

func TestMarshalExpr_IntegralNumbersStayIntegral(t *testing.T) {
	out, err := ast.MarshalExpr(ast.Number{Value: 2})
	if err != nil {
		t.Fatalf("MarshalExpr: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["value"] != float64(2) {
		t.Errorf("value = %v, want 2", decoded["value"])
	}
}

func TestIsComparison(t *testing.T) {
	for _, kind := range []ast.Kind{ast.KindEq, ast.KindNeq, ast.KindLt, ast.KindLe, ast.KindGt, ast.KindGe, ast.KindDivides} {
		if !ast.IsComparison(kind) {
			t.Errorf("IsComparison(%s) = false", kind)
		}
	}
	for _, kind := range []ast.Kind{ast.KindAdd, ast.KindSymbol, ast.KindSum} {
		if ast.IsComparison(kind) {
			t.Errorf("IsComparison(%s) = true", kind)
		}
	}
}

func TestDefaultRegistry_SurfaceLookup(t *testing.T) {
	reg := ast.DefaultRegistry
	spec := reg.Lookup("plus")
	if spec == nil {
		t.Fatal("expected surface form plus to resolve")
	}
	if spec.Node != ast.KindAdd {
		t.Errorf("plus resolved to %s, want Add", spec.Node)
	}
	if reg.Lookup("no_such_operator") != nil {
		t.Error("unknown surface form resolved")
	}
}
