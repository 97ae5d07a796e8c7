// Package schema defines the canonical MVIR document types: the wire format
// produced and consumed by every other component, the warning taxonomy, and
// the constructor-time invariant guard.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mvir/internal/ast"
)

// Version is the MVIR schema version stamped into meta.version.
const Version = "0.1"

// FullTextSpanID is the distinguished span covering the entire source text.
const FullTextSpanID = "s0"

// EntityKind classifies an extracted entity.
type EntityKind string

const (
	EntityVariable EntityKind = "variable"
	EntityConstant EntityKind = "constant"
	EntityFunction EntityKind = "function"
	EntitySet      EntityKind = "set"
	EntitySequence EntityKind = "sequence"
	EntityPoint    EntityKind = "point"
	EntityVector   EntityKind = "vector"
	EntityObject   EntityKind = "object"
)

// AssumptionKind classifies how an assumption entered the document.
type AssumptionKind string

const (
	AssumptionGiven   AssumptionKind = "given"
	AssumptionDerived AssumptionKind = "derived"
	AssumptionWlog    AssumptionKind = "wlog"
)

// GoalKind classifies the task the problem statement asks for.
type GoalKind string

const (
	GoalProve          GoalKind = "prove"
	GoalFind           GoalKind = "find"
	GoalCompute        GoalKind = "compute"
	GoalMaximize       GoalKind = "maximize"
	GoalMinimize       GoalKind = "minimize"
	GoalExists         GoalKind = "exists"
	GoalCounterexample GoalKind = "counterexample"
)

// ConceptRole classifies a detected concept.
type ConceptRole string

const (
	RoleDomain             ConceptRole = "domain"
	RolePattern            ConceptRole = "pattern"
	RoleCandidateTool      ConceptRole = "candidate_tool"
	RoleDefinition         ConceptRole = "definition"
	RoleRepresentationHint ConceptRole = "representation_hint"
)

// Warning codes. These are part of the observable contract; downstream
// regression tooling keys off them.
const (
	WarnExprContractError     = "expr_contract_error"
	WarnExprContractRepair    = "expr_contract_repair"
	WarnExprNormalizeRepair   = "expr_normalize_repair"
	WarnAssumptionExprDropped = "invalid_assumption_expr_dropped"
	WarnGoalExprReplaced      = "invalid_goal_expr_replaced"
	WarnGoalKindDowngraded    = "goal_kind_downgraded"
	WarnMultipleGoals         = "multiple_goals"
	WarnRecovered             = "invalid_mvir_recovered"
	WarnGroundingDegraded     = "grounding_contract_degraded"
	WarnUnspecified           = "unspecified"
)

// ValidEntityKinds is the closed entity kind set.
var ValidEntityKinds = map[EntityKind]bool{
	EntityVariable: true, EntityConstant: true, EntityFunction: true,
	EntitySet: true, EntitySequence: true, EntityPoint: true,
	EntityVector: true, EntityObject: true,
}

// ValidAssumptionKinds is the closed assumption kind set.
var ValidAssumptionKinds = map[AssumptionKind]bool{
	AssumptionGiven: true, AssumptionDerived: true, AssumptionWlog: true,
}

// ValidGoalKinds is the closed goal kind set.
var ValidGoalKinds = map[GoalKind]bool{
	GoalProve: true, GoalFind: true, GoalCompute: true, GoalMaximize: true,
	GoalMinimize: true, GoalExists: true, GoalCounterexample: true,
}

// ValidConceptRoles is the closed concept role set.
var ValidConceptRoles = map[ConceptRole]bool{
	RoleDomain: true, RolePattern: true, RoleCandidateTool: true,
	RoleDefinition: true, RoleRepresentationHint: true,
}

// TraceSpan is an offset-addressed, exact-text region of the source text.
// Trace references elsewhere in the document are string keys into the
// document's span table, never object pointers, so documents stay
// equality-comparable after JSON round-trips.
type TraceSpan struct {
	SpanID string `json:"span_id"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
}

// Meta records document identity and provenance.
type Meta struct {
	Version   string `json:"version"`
	ID        string `json:"id"`
	Generator string `json:"generator,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Source carries the original problem text.
type Source struct {
	Text           string      `json:"text"`
	NormalizedText string      `json:"normalized_text,omitempty"`
	Spans          []TraceSpan `json:"spans,omitempty"`
}

// Entity is a mathematical object named by the problem statement.
type Entity struct {
	ID         string     `json:"id"`
	Kind       EntityKind `json:"kind"`
	Type       string     `json:"type"`
	Properties []string   `json:"properties"`
	Trace      []string   `json:"trace"`
}

// Assumption is a grounded hypothesis expression.
type Assumption struct {
	Expr  ast.Expr
	Kind  AssumptionKind
	Trace []string
	ID    string
}

// Goal is the single task the document asks to be performed. Target is
// present only for find-kind goals.
type Goal struct {
	Kind   GoalKind
	Expr   ast.Expr
	Trace  []string
	Target ast.Expr
}

// Concept is a recognized mathematical pattern or domain hint.
type Concept struct {
	ID         string      `json:"id"`
	Role       ConceptRole `json:"role"`
	Trigger    string      `json:"trigger,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
	Trace      []string    `json:"trace"`
	Name       string      `json:"name,omitempty"`
}

// Warning is the audit record of one non-fatal repair or degradation.
type Warning struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Trace   []string       `json:"trace"`
	Details map[string]any `json:"details,omitempty"`
}

// Document is the top-level MVIR document.
type Document struct {
	Meta        Meta         `json:"meta"`
	Source      Source       `json:"source"`
	Entities    []Entity     `json:"entities"`
	Assumptions []Assumption `json:"assumptions"`
	Goal        Goal         `json:"goal"`
	Concepts    []Concept    `json:"concepts"`
	Warnings    []Warning    `json:"warnings"`
	Trace       []TraceSpan  `json:"trace"`
}

// assumptionWire mirrors Assumption with the expression as raw JSON.
type assumptionWire struct {
	Expr  json.RawMessage `json:"expr"`
	Kind  AssumptionKind  `json:"kind"`
	Trace []string        `json:"trace"`
	ID    string          `json:"id,omitempty"`
}

// MarshalJSON writes the assumption with its expression in canonical node
// form.
func (a Assumption) MarshalJSON() ([]byte, error) {
	exprRaw, err := ast.MarshalExpr(a.Expr)
	if err != nil {
		return nil, fmt.Errorf("schema: assumption expr: %w", err)
	}
	return json.Marshal(assumptionWire{
		Expr:  exprRaw,
		Kind:  a.Kind,
		Trace: a.Trace,
		ID:    a.ID,
	})
}

// UnmarshalJSON parses the assumption, decoding the expression strictly.
func (a *Assumption) UnmarshalJSON(data []byte) error {
	var w assumptionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("schema: assumption: %w", err)
	}
	if len(w.Expr) == 0 || string(w.Expr) == "null" {
		return fmt.Errorf("schema: assumption missing expr")
	}
	expr, err := ast.ParseExpr(w.Expr)
	if err != nil {
		return fmt.Errorf("schema: assumption expr: %w", err)
	}
	a.Expr = expr
	a.Kind = w.Kind
	a.Trace = w.Trace
	a.ID = w.ID
	return nil
}

type goalWire struct {
	Kind   GoalKind        `json:"kind"`
	Expr   json.RawMessage `json:"expr"`
	Trace  []string        `json:"trace"`
	Target json.RawMessage `json:"target,omitempty"`
}

// MarshalJSON writes the goal with expr (and target, when present) in
// canonical node form.
func (g Goal) MarshalJSON() ([]byte, error) {
	exprRaw, err := ast.MarshalExpr(g.Expr)
	if err != nil {
		return nil, fmt.Errorf("schema: goal expr: %w", err)
	}
	w := goalWire{Kind: g.Kind, Expr: exprRaw, Trace: g.Trace}
	if g.Target != nil {
		targetRaw, err := ast.MarshalExpr(g.Target)
		if err != nil {
			return nil, fmt.Errorf("schema: goal target: %w", err)
		}
		w.Target = targetRaw
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the goal; a JSON null target decodes to absent.
func (g *Goal) UnmarshalJSON(data []byte) error {
	var w goalWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("schema: goal: %w", err)
	}
	if len(w.Expr) == 0 || string(w.Expr) == "null" {
		return fmt.Errorf("schema: goal missing expr")
	}
	expr, err := ast.ParseExpr(w.Expr)
	if err != nil {
		return fmt.Errorf("schema: goal expr: %w", err)
	}
	g.Kind = w.Kind
	g.Expr = expr
	g.Trace = w.Trace
	g.Target = nil
	if len(w.Target) > 0 && string(w.Target) != "null" {
		target, err := ast.ParseExpr(w.Target)
		if err != nil {
			return fmt.Errorf("schema: goal target: %w", err)
		}
		g.Target = target
	}
	return nil
}

// ParseDocument decodes and validates a full MVIR document. Unknown
// fields are rejected; sanitize strips the aliases it tolerates before
// documents reach this layer.
func ParseDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalDocument serializes a document to indented JSON. The output
// round-trips through ParseDocument back to an equal document.
func MarshalDocument(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("schema: nil document")
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("schema: marshal: %w", err)
	}
	return b, nil
}
