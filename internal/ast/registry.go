package ast

import "strings"

// OperatorSpec is the canonical metadata for one operator: the AST node it
// maps to, the surface forms that select it, and the argument roles its wire
// shape carries. EmitCallFn is set for operators that are represented as
// Call nodes with a fixed function name (e.g. intersection, integral).
type OperatorSpec struct {
	CanonicalID   string
	Node          Kind
	SurfaceForms  []string
	Arity         int // 0 means variadic
	ArgumentRoles []string
	EmitCallFn    string
}

// Registry is a deterministic lookup table from operator surface forms and
// canonical node names to their specs.
type Registry struct {
	bySurface map[string]*OperatorSpec
	byNode    map[Kind]*OperatorSpec
	specs     []OperatorSpec
}

func normalizeSurface(surface string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(surface))), " ")
}

// NewRegistry builds a Registry. First registration wins for both surface
// forms and node names, so ordering of specs is significant.
func NewRegistry(specs []OperatorSpec) *Registry {
	r := &Registry{
		bySurface: make(map[string]*OperatorSpec),
		byNode:    make(map[Kind]*OperatorSpec),
		specs:     append([]OperatorSpec(nil), specs...),
	}
	for i := range r.specs {
		spec := &r.specs[i]
		if _, ok := r.byNode[spec.Node]; !ok {
			r.byNode[spec.Node] = spec
		}
		for _, surface := range spec.SurfaceForms {
			key := normalizeSurface(surface)
			if key == "" {
				continue
			}
			if _, ok := r.bySurface[key]; !ok {
				r.bySurface[key] = spec
			}
		}
	}
	return r
}

// Lookup resolves an operator by surface token or alias. Returns nil when
// the surface form is not registered.
func (r *Registry) Lookup(surface string) *OperatorSpec {
	return r.bySurface[normalizeSurface(surface)]
}

// Canonical resolves an operator by its canonical AST node name.
func (r *Registry) Canonical(node Kind) *OperatorSpec {
	return r.byNode[node]
}

// Nodes returns the set of AST node kinds represented in the registry.
func (r *Registry) Nodes() map[Kind]bool {
	out := make(map[Kind]bool, len(r.byNode))
	for k := range r.byNode {
		out[k] = true
	}
	return out
}

// DefaultRegistry covers the operator vocabulary of the MVIR AST plus the
// Call-emitting forms for set intersection and integrals.
var DefaultRegistry = NewRegistry([]OperatorSpec{
	{
		CanonicalID:   "add",
		Node:          KindAdd,
		SurfaceForms:  []string{"+", "plus", "add", "sum"},
		ArgumentRoles: []string{"args"},
	},
	{
		CanonicalID:   "mul",
		Node:          KindMul,
		SurfaceForms:  []string{"*", "times", "multiply", "product", "×", `\cdot`, `\times`},
		ArgumentRoles: []string{"args"},
	},
	{
		CanonicalID:   "div",
		Node:          KindDiv,
		SurfaceForms:  []string{"/", "divide", "division", "÷", `\frac`, "over"},
		Arity:         2,
		ArgumentRoles: []string{"num", "den"},
	},
	{
		CanonicalID:   "pow",
		Node:          KindPow,
		SurfaceForms:  []string{"^", "**", "power", "to the power"},
		Arity:         2,
		ArgumentRoles: []string{"base", "exp"},
	},
	{
		CanonicalID:   "neg",
		Node:          KindNeg,
		SurfaceForms:  []string{"-", "negative", "unary minus"},
		Arity:         1,
		ArgumentRoles: []string{"arg"},
	},
	{
		CanonicalID:   "eq",
		Node:          KindEq,
		SurfaceForms:  []string{"=", "==", "equals", "equal"},
		Arity:         2,
		ArgumentRoles: []string{"lhs", "rhs"},
	},
	{
		CanonicalID:   "neq",
		Node:          KindNeq,
		SurfaceForms:  []string{"!=", "≠", `\neq`, "not equal"},
		Arity:         2,
		ArgumentRoles: []string{"lhs", "rhs"},
	},
	{
		CanonicalID:   "lt",
		Node:          KindLt,
		SurfaceForms:  []string{"<", "less than", `\lt`},
		Arity:         2,
		ArgumentRoles: []string{"lhs", "rhs"},
	},
	{
		CanonicalID:   "le",
		Node:          KindLe,
		SurfaceForms:  []string{"<=", "≤", `\le`, `\leq`, "at most"},
		Arity:         2,
		ArgumentRoles: []string{"lhs", "rhs"},
	},
	{
		CanonicalID:   "gt",
		Node:          KindGt,
		SurfaceForms:  []string{">", "greater than", `\gt`},
		Arity:         2,
		ArgumentRoles: []string{"lhs", "rhs"},
	},
	{
		CanonicalID:   "ge",
		Node:          KindGe,
		SurfaceForms:  []string{">=", "≥", `\ge`, `\geq`, "at least"},
		Arity:         2,
		ArgumentRoles: []string{"lhs", "rhs"},
	},
	{
		CanonicalID:   "divides",
		Node:          KindDivides,
		SurfaceForms:  []string{"divides", "|", `\mid`},
		Arity:         2,
		ArgumentRoles: []string{"lhs", "rhs"},
	},
	{
		CanonicalID:   "sum",
		Node:          KindSum,
		SurfaceForms:  []string{"sum", "summation", "∑", `\sum`},
		Arity:         4,
		ArgumentRoles: []string{"var", "from", "to", "body"},
	},
	{
		CanonicalID:   "call",
		Node:          KindCall,
		SurfaceForms:  []string{"call", "function", "apply"},
		ArgumentRoles: []string{"fn", "args"},
	},
	{
		CanonicalID:   "set_intersection",
		Node:          KindCall,
		SurfaceForms:  []string{`\cap`, "∩", "intersection"},
		ArgumentRoles: []string{"args"},
		EmitCallFn:    "intersection",
	},
	{
		CanonicalID:   "integral",
		Node:          KindCall,
		SurfaceForms:  []string{`\int`, "∫", "integral"},
		ArgumentRoles: []string{"args"},
		EmitCallFn:    "integral",
	},
})
