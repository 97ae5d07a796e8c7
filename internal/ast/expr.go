// Package ast defines the closed expression tree used by MVIR documents,
// its JSON wire form, the operator surface-form registry, and the
// deterministic shape normalizer for near-valid expression payloads.
package ast

// Kind is the node discriminator. It appears on the wire as the "node" key.
type Kind string

const (
	KindSymbol  Kind = "Symbol"
	KindNumber  Kind = "Number"
	KindBool    Kind = "Bool"
	KindAdd     Kind = "Add"
	KindMul     Kind = "Mul"
	KindDiv     Kind = "Div"
	KindPow     Kind = "Pow"
	KindNeg     Kind = "Neg"
	KindEq      Kind = "Eq"
	KindNeq     Kind = "Neq"
	KindLt      Kind = "Lt"
	KindLe      Kind = "Le"
	KindGt      Kind = "Gt"
	KindGe      Kind = "Ge"
	KindDivides Kind = "Divides"
	KindSum     Kind = "Sum"
	KindCall    Kind = "Call"
)

// Expr is the closed expression union. Exactly the types in this file
// implement it; consumers switch exhaustively on the concrete type.
type Expr interface {
	Kind() Kind
	isExpr()
}

// Symbol is an identifier.
type Symbol struct {
	ID string
}

// Number is a numeric literal. Integral values round-trip without a
// fractional part (Go marshals 3.0 as "3").
type Number struct {
	Value float64
}

// Bool is a boolean literal. The wire form also accepts "True"/"False" as
// the node tag itself.
type Bool struct {
	Value bool
}

// Add is addition over one or more arguments.
type Add struct {
	Args []Expr
}

// Mul is multiplication over one or more arguments.
type Mul struct {
	Args []Expr
}

// Div divides Num by Den.
type Div struct {
	Num Expr
	Den Expr
}

// Pow raises Base to Exp.
type Pow struct {
	Base Expr
	Exp  Expr
}

// Neg negates Arg.
type Neg struct {
	Arg Expr
}

// Eq is equality.
type Eq struct {
	LHS Expr
	RHS Expr
}

// Neq is inequality.
type Neq struct {
	LHS Expr
	RHS Expr
}

// Lt is less-than.
type Lt struct {
	LHS Expr
	RHS Expr
}

// Le is less-than-or-equal.
type Le struct {
	LHS Expr
	RHS Expr
}

// Gt is greater-than.
type Gt struct {
	LHS Expr
	RHS Expr
}

// Ge is greater-than-or-equal.
type Ge struct {
	LHS Expr
	RHS Expr
}

// Divides is the divisibility relation: LHS divides RHS.
type Divides struct {
	LHS Expr
	RHS Expr
}

// Sum is a bounded summation of Body with Var running from From to To.
type Sum struct {
	Var  string
	From Expr
	To   Expr
	Body Expr
}

// Call applies the named function to Args. Zero arguments are permitted.
type Call struct {
	Fn   string
	Args []Expr
}

func (Symbol) Kind() Kind  { return KindSymbol }
func (Number) Kind() Kind  { return KindNumber }
func (Bool) Kind() Kind    { return KindBool }
func (Add) Kind() Kind     { return KindAdd }
func (Mul) Kind() Kind     { return KindMul }
func (Div) Kind() Kind     { return KindDiv }
func (Pow) Kind() Kind     { return KindPow }
func (Neg) Kind() Kind     { return KindNeg }
func (Eq) Kind() Kind      { return KindEq }
func (Neq) Kind() Kind     { return KindNeq }
func (Lt) Kind() Kind      { return KindLt }
func (Le) Kind() Kind      { return KindLe }
func (Gt) Kind() Kind      { return KindGt }
func (Ge) Kind() Kind      { return KindGe }
func (Divides) Kind() Kind { return KindDivides }
func (Sum) Kind() Kind     { return KindSum }
func (Call) Kind() Kind    { return KindCall }

func (Symbol) isExpr()  {}
func (Number) isExpr()  {}
func (Bool) isExpr()    {}
func (Add) isExpr()     {}
func (Mul) isExpr()     {}
func (Div) isExpr()     {}
func (Pow) isExpr()     {}
func (Neg) isExpr()     {}
func (Eq) isExpr()      {}
func (Neq) isExpr()     {}
func (Lt) isExpr()      {}
func (Le) isExpr()      {}
func (Gt) isExpr()      {}
func (Ge) isExpr()      {}
func (Divides) isExpr() {}
func (Sum) isExpr()     {}
func (Call) isExpr()    {}

// comparisonKinds holds the six relation kinds plus Divides, all of which
// share the {lhs, rhs} field shape on the wire.
var comparisonKinds = map[Kind]bool{
	KindEq:      true,
	KindNeq:     true,
	KindLt:      true,
	KindLe:      true,
	KindGt:      true,
	KindGe:      true,
	KindDivides: true,
}

// IsComparison reports whether k is one of the binary relation kinds.
func IsComparison(k Kind) bool { return comparisonKinds[k] }
