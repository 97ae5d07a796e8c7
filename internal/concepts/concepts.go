// Package concepts derives concept annotations from obvious goal and
// assumption expression patterns. Detection is deterministic: the same
// document always yields the same concepts in the same order.
package concepts

import (
	"fmt"
	"sort"

	"mvir/internal/ast"
	"mvir/internal/schema"
)

// Extract scans the goal and assumptions for recognized patterns and
// returns the deduplicated concepts sorted by id.
func Extract(doc *schema.Document) []schema.Concept {
	var candidates []schema.Concept
	candidates = append(candidates, matchGoal(doc.Goal)...)
	for i, a := range doc.Assumptions {
		candidates = append(candidates, matchAssumption(a, i)...)
	}

	byID := make(map[string]schema.Concept)
	var order []string
	for _, c := range candidates {
		if _, seen := byID[c.ID]; !seen {
			byID[c.ID] = c
			order = append(order, c.ID)
		}
	}
	sort.Strings(order)

	out := make([]schema.Concept, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// Augment returns a copy of doc with concepts replaced by the extracted set.
func Augment(doc *schema.Document) *schema.Document {
	out := *doc
	out.Concepts = Extract(doc)
	return &out
}

func matchGoal(goal schema.Goal) []schema.Concept {
	var out []schema.Concept
	if v, ok := matchNonnegativityOfSquare(goal.Expr); ok {
		out = append(out, schema.Concept{
			ID:      "nonnegativity_of_square",
			Role:    schema.RolePattern,
			Trigger: fmt.Sprintf("goal:Ge(Pow(Symbol(%s), Number(2)), Number(0))", v),
			Trace:   append([]string(nil), goal.Trace...),
			Name:    "Nonnegativity of square",
		})
	}
	if matchSumOfFirstNIntegers(goal.Expr) {
		out = append(out, schema.Concept{
			ID:      "sum_of_first_n_integers",
			Role:    schema.RolePattern,
			Trigger: "goal:Eq(Sum(k,1,n,k), n(n+1)/2)",
			Trace:   append([]string(nil), goal.Trace...),
			Name:    "Arithmetic series sum",
		})
	}
	return out
}

func matchAssumption(a schema.Assumption, idx int) []schema.Concept {
	var out []schema.Concept
	if v, ok := matchNonnegativityOfSquare(a.Expr); ok {
		out = append(out, schema.Concept{
			ID:      "nonnegativity_of_square",
			Role:    schema.RolePattern,
			Trigger: fmt.Sprintf("assumption[%d]:Ge(Pow(Symbol(%s), Number(2)), Number(0))", idx, v),
			Trace:   append([]string(nil), a.Trace...),
			Name:    "Nonnegativity of square",
		})
	}
	if matchSumOfFirstNIntegers(a.Expr) {
		out = append(out, schema.Concept{
			ID:      "sum_of_first_n_integers",
			Role:    schema.RolePattern,
			Trigger: fmt.Sprintf("assumption[%d]:Eq(Sum(k,1,n,k), n(n+1)/2)", idx),
			Trace:   append([]string(nil), a.Trace...),
			Name:    "Arithmetic series sum",
		})
	}
	if v, ok := matchPositiveVariable(a.Expr); ok {
		out = append(out, schema.Concept{
			ID:      "positivity:" + v,
			Role:    schema.RoleDomain,
			Trigger: fmt.Sprintf("assumption[%d]:Gt(Symbol(%s), Number(0))", idx, v),
			Trace:   append([]string(nil), a.Trace...),
			Name:    "Positive variable " + v,
		})
	}
	return out
}

func isNumber(expr ast.Expr, value float64) bool {
	n, ok := expr.(ast.Number)
	return ok && n.Value == value
}

// matchNonnegativityOfSquare recognizes Ge(Pow(Symbol, 2), 0) and returns
// the squared variable.
func matchNonnegativityOfSquare(expr ast.Expr) (string, bool) {
	ge, ok := expr.(ast.Ge)
	if !ok || !isNumber(ge.RHS, 0) {
		return "", false
	}
	pow, ok := ge.LHS.(ast.Pow)
	if !ok || !isNumber(pow.Exp, 2) {
		return "", false
	}
	sym, ok := pow.Base.(ast.Symbol)
	if !ok {
		return "", false
	}
	return sym.ID, true
}

// matchPositiveVariable recognizes Gt(Symbol, 0).
func matchPositiveVariable(expr ast.Expr) (string, bool) {
	gt, ok := expr.(ast.Gt)
	if !ok || !isNumber(gt.RHS, 0) {
		return "", false
	}
	sym, ok := gt.LHS.(ast.Symbol)
	if !ok {
		return "", false
	}
	return sym.ID, true
}

// matchSumOfFirstNIntegers recognizes Eq(Sum(k,1,n,k), Div(Mul(n, Add(n,1)), 2))
// in either argument order for the Mul and Add.
func matchSumOfFirstNIntegers(expr ast.Expr) bool {
	eq, ok := expr.(ast.Eq)
	if !ok {
		return false
	}
	sum, ok := eq.LHS.(ast.Sum)
	if !ok || sum.Var != "k" || !isNumber(sum.From, 1) {
		return false
	}
	if to, ok := sum.To.(ast.Symbol); !ok || to.ID != "n" {
		return false
	}
	if body, ok := sum.Body.(ast.Symbol); !ok || body.ID != "k" {
		return false
	}

	div, ok := eq.RHS.(ast.Div)
	if !ok || !isNumber(div.Den, 2) {
		return false
	}
	mul, ok := div.Num.(ast.Mul)
	if !ok || len(mul.Args) != 2 {
		return false
	}
	var hasSymbolN bool
	var addNPlusOne *ast.Add
	for _, arg := range mul.Args {
		if sym, ok := arg.(ast.Symbol); ok && sym.ID == "n" {
			hasSymbolN = true
		}
		if add, ok := arg.(ast.Add); ok && len(add.Args) == 2 {
			a := add
			addNPlusOne = &a
		}
	}
	if !hasSymbolN || addNPlusOne == nil {
		return false
	}
	var addHasN, addHasOne bool
	for _, arg := range addNPlusOne.Args {
		if sym, ok := arg.(ast.Symbol); ok && sym.ID == "n" {
			addHasN = true
		}
		if isNumber(arg, 1) {
			addHasOne = true
		}
	}
	return addHasN && addHasOne
}
