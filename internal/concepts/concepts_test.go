package concepts_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"mvir/internal/ast"
	"mvir/internal/concepts"
	"mvir/internal/schema"
)

func squareDoc() *schema.Document {
	return &schema.Document{
		Assumptions: []schema.Assumption{
			{
				Expr:  ast.Gt{LHS: ast.Symbol{ID: "x"}, RHS: ast.Number{Value: 0}},
				Kind:  schema.AssumptionGiven,
				Trace: []string{"s1"},
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
	}
}

func TestExtract_SquareAndPositivity(t *testing.T) {
	got := concepts.Extract(squareDoc())

	want := []schema.Concept{
		{
			ID:      "nonnegativity_of_square",
			Role:    schema.RolePattern,
			Trigger: "goal:Ge(Pow(Symbol(x), Number(2)), Number(0))",
			Trace:   []string{"s2"},
			Name:    "Nonnegativity of square",
		},
		{
			ID:      "positivity:x",
			Role:    schema.RoleDomain,
			Trigger: "assumption[0]:Gt(Symbol(x), Number(0))",
			Trace:   []string{"s1"},
			Name:    "Positive variable x",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("concepts mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_SumOfFirstNIntegers(t *testing.T) {
	sum := ast.Sum{
		Var:  "k",
		From: ast.Number{Value: 1},
		To:   ast.Symbol{ID: "n"},
		Body: ast.Symbol{ID: "k"},
	}
	closedForm := ast.Div{
		Num: ast.Mul{Args: []ast.Expr{
			ast.Add{Args: []ast.Expr{ast.Number{Value: 1}, ast.Symbol{ID: "n"}}},
			ast.Symbol{ID: "n"},
		}},
		Den: ast.Number{Value: 2},
	}
	doc := &schema.Document{
		Goal: schema.Goal{
			Kind:  schema.GoalProve,
			Expr:  ast.Eq{LHS: sum, RHS: closedForm},
			Trace: []string{"s1"},
		},
	}

	got := concepts.Extract(doc)
	if len(got) != 1 || got[0].ID != "sum_of_first_n_integers" {
		t.Fatalf("concepts = %v, want sum_of_first_n_integers", got)
	}
	if got[0].Trigger != "goal:Eq(Sum(k,1,n,k), n(n+1)/2)" {
		t.Errorf("Trigger = %q", got[0].Trigger)
	}
}

func TestExtract_DedupesByFirstOccurrence(t *testing.T) {
	doc := squareDoc()
	// The goal pattern also appears as an assumption; the goal trigger wins.
	doc.Assumptions = append(doc.Assumptions, schema.Assumption{
		Expr:  doc.Goal.Expr,
		Kind:  schema.AssumptionDerived,
		Trace: []string{"s3"},
	})

	got := concepts.Extract(doc)
	count := 0
	for _, c := range got {
		if c.ID == "nonnegativity_of_square" {
			count++
			if c.Trigger != "goal:Ge(Pow(Symbol(x), Number(2)), Number(0))" {
				t.Errorf("Trigger = %q, want the goal-sourced trigger", c.Trigger)
			}
		}
	}
	if count != 1 {
		t.Errorf("nonnegativity_of_square occurrences = %d, want 1", count)
	}
}

func TestExtract_NoMatchesYieldsEmpty(t *testing.T) {
	doc := &schema.Document{
		Goal: schema.Goal{
			Kind:  schema.GoalProve,
			Expr:  ast.Bool{Value: true},
			Trace: []string{"s0"},
		},
	}
	if got := concepts.Extract(doc); len(got) != 0 {
		t.Errorf("concepts = %v, want none", got)
	}
}

func TestAugment_ReplacesConceptsWithoutMutating(t *testing.T) {
	doc := squareDoc()
	doc.Concepts = []schema.Concept{{ID: "stale", Role: schema.RoleDomain, Trace: []string{}}}

	out := concepts.Augment(doc)
	if len(out.Concepts) != 2 {
		t.Errorf("augmented concepts = %d, want 2", len(out.Concepts))
	}
	if len(doc.Concepts) != 1 || doc.Concepts[0].ID != "stale" {
		t.Error("input document was mutated")
	}
}
