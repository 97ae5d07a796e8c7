package render_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mvir/internal/ast"
	"mvir/internal/render"
	"mvir/internal/schema"
)

func TestRenderExpr(t *testing.T) {
	tests := []struct {
		name string
		expr ast.Expr
		want string
	}{
		{"symbol", ast.Symbol{ID: "x"}, "x"},
		{"integral number", ast.Number{Value: 3}, "3"},
		{"fractional number", ast.Number{Value: 2.5}, "2.5"},
		{"bool", ast.Bool{Value: true}, "true"},
		{
			"comparison",
			ast.Ge{
				LHS: ast.Pow{Base: ast.Symbol{ID: "x"}, Exp: ast.Number{Value: 2}},
				RHS: ast.Number{Value: 0},
			},
			"x^2 >= 0",
		},
		{
			"divides",
			ast.Divides{LHS: ast.Number{Value: 2}, RHS: ast.Symbol{ID: "n"}},
			"2 | n",
		},
		{
			"add of products",
			ast.Add{Args: []ast.Expr{
				ast.Mul{Args: []ast.Expr{ast.Number{Value: 2}, ast.Symbol{ID: "x"}}},
				ast.Number{Value: 1},
			}},
			"2 * x + 1",
		},
		{
			"mul parenthesizes add",
			ast.Mul{Args: []ast.Expr{
				ast.Symbol{ID: "n"},
				ast.Add{Args: []ast.Expr{ast.Symbol{ID: "n"}, ast.Number{Value: 1}}},
			}},
			"n * (n + 1)",
		},
		{
			"div",
			ast.Div{Num: ast.Symbol{ID: "a"}, Den: ast.Symbol{ID: "b"}},
			"(a)/(b)",
		},
		{
			"pow parenthesizes compound base",
			ast.Pow{
				Base: ast.Add{Args: []ast.Expr{ast.Symbol{ID: "x"}, ast.Number{Value: 1}}},
				Exp:  ast.Number{Value: 2},
			},
			"(x + 1)^2",
		},
		{"neg", ast.Neg{Arg: ast.Symbol{ID: "x"}}, "-(x)"},
		{
			"sum",
			ast.Sum{
				Var:  "k",
				From: ast.Number{Value: 1},
				To:   ast.Symbol{ID: "n"},
				Body: ast.Symbol{ID: "k"},
			},
			"sum_{k=1..n} (k)",
		},
		{
			"call",
			ast.Call{Fn: "gcd", Args: []ast.Expr{ast.Symbol{ID: "a"}, ast.Symbol{ID: "b"}}},
			"gcd(a, b)",
		},
		{"zero-arity call", ast.Call{Fn: "pi", Args: nil}, "pi()"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render.RenderExpr(tt.expr); got != tt.want {
				t.Errorf("RenderExpr = %q, want %q", got, tt.want)
			}
		})
	}
}

func reportDoc() *schema.Document {
	text := "Let x > 0. Prove x^2 >= 0."
	return &schema.Document{
		Meta:   schema.Meta{Version: schema.Version, ID: "p1", Generator: "mock"},
		Source: schema.Source{Text: text},
		Entities: []schema.Entity{
			{ID: "x", Kind: schema.EntityVariable, Type: "real", Properties: []string{"positive"}, Trace: []string{"s1"}},
		},
		Assumptions: []schema.Assumption{
			{
				Expr:  ast.Gt{LHS: ast.Symbol{ID: "x"}, RHS: ast.Number{Value: 0}},
				Kind:  schema.AssumptionGiven,
				Trace: []string{"s1"},
				ID:    "a1",
			},
		},
		Goal: schema.Goal{
			Kind: schema.GoalProve,
			Expr: ast.Ge{
				LHS: ast.Pow{Base: ast.Symbol{ID: "x"}, Exp: ast.Number{Value: 2}},
				RHS: ast.Number{Value: 0},
			},
			Trace: []string{"s2"},
		},
		Concepts: []schema.Concept{
			{ID: "positivity:x", Role: schema.RoleDomain, Trigger: "assumption[0]", Trace: []string{"s1"}, Name: "Positive variable x"},
		},
		Warnings: []schema.Warning{
			{Code: schema.WarnExprContractRepair, Message: "renamed name to id", Trace: []string{}},
		},
		Trace: []schema.TraceSpan{
			{SpanID: "s0", Start: 0, End: len(text), Text: text},
			{SpanID: "s1", Start: 0, End: 10, Text: "Let x > 0."},
			{SpanID: "s2", Start: 11, End: 26, Text: "Prove x^2 >= 0."},
		},
	}
}

func TestRenderJSON_RoundTrips(t *testing.T) {
	doc := reportDoc()
	data, err := render.RenderJSON(doc)
	if err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	got, err := schema.ParseDocument(data)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderMarkdown_Sections(t *testing.T) {
	md := render.RenderMarkdown(reportDoc())

	for _, want := range []string{
		"# MVIR Report: p1",
		"## Meta",
		"## Source",
		"## Trace Spans",
		"| s0 | 0 | 26 |",
		"## Entities",
		"| x | variable | real | positive | s1 |",
		"## Assumptions",
		"- [given] x > 0 (trace: s1; id: a1)",
		"## Goal",
		"- prove: x^2 >= 0",
		"## Concepts",
		"| positivity:x | domain | Positive variable x |",
		"## Warnings",
		"- expr_contract_repair: renamed name to id (trace: )",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_Deterministic(t *testing.T) {
	doc := reportDoc()
	doc.Entities = append(doc.Entities, schema.Entity{
		ID: "a", Kind: schema.EntityConstant, Type: "integer", Properties: []string{}, Trace: []string{"s1"},
	})

	first := render.RenderMarkdown(doc)
	second := render.RenderMarkdown(doc)
	if first != second {
		t.Error("markdown differs between renders of the same document")
	}

	aIdx := strings.Index(first, "| a | constant |")
	xIdx := strings.Index(first, "| x | variable |")
	if aIdx < 0 || xIdx < 0 || aIdx > xIdx {
		t.Error("entity rows are not sorted by id")
	}
}

func TestRenderMarkdown_EscapesTableBreakers(t *testing.T) {
	doc := reportDoc()
	doc.Trace[1].Text = "Let x | y.\nnext"

	md := render.RenderMarkdown(doc)
	if strings.Contains(md, "| Let x | y.") {
		t.Error("pipe in span text was not escaped")
	}
	if !strings.Contains(md, `Let x \| y. next`) {
		t.Error("escaped span text not found")
	}
}

func TestRenderJSON_NilDocument(t *testing.T) {
	if _, err := render.RenderJSON(nil); err == nil {
		t.Error("RenderJSON(nil) succeeded, want error")
	}
}
