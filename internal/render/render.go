// Package render produces deterministic output from a validated MVIR
// document: canonical JSON and a human-readable Markdown report.
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mvir/internal/ast"
	"mvir/internal/schema"
)

// RenderJSON produces a pretty-printed JSON representation of the document.
// The output round-trips through schema.ParseDocument back to an equal
// document.
func RenderJSON(doc *schema.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("render: nil document")
	}
	b, err := schema.MarshalDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

var binaryOpSymbols = map[ast.Kind]string{
	ast.KindEq:      "=",
	ast.KindNeq:     "!=",
	ast.KindLt:      "<",
	ast.KindLe:      "<=",
	ast.KindGt:      ">",
	ast.KindGe:      ">=",
	ast.KindDivides: "|",
}

// RenderExpr renders an expression into deterministic human-readable text.
func RenderExpr(expr ast.Expr) string {
	switch e := expr.(type) {
	case ast.Symbol:
		return e.ID
	case ast.Number:
		return strconv.FormatFloat(e.Value, 'f', -1, 64)
	case ast.Bool:
		if e.Value {
			return "true"
		}
		return "false"
	case ast.Add:
		parts := make([]string, len(e.Args))
		for i, arg := range e.Args {
			parts[i] = renderAddArg(arg)
		}
		return strings.Join(parts, " + ")
	case ast.Mul:
		parts := make([]string, len(e.Args))
		for i, arg := range e.Args {
			parts[i] = renderMulArg(arg)
		}
		return strings.Join(parts, " * ")
	case ast.Div:
		return fmt.Sprintf("(%s)/(%s)", RenderExpr(e.Num), RenderExpr(e.Den))
	case ast.Pow:
		return renderPowPart(e.Base) + "^" + renderPowPart(e.Exp)
	case ast.Neg:
		return fmt.Sprintf("-(%s)", RenderExpr(e.Arg))
	case ast.Eq:
		return renderBinary(e.Kind(), e.LHS, e.RHS)
	case ast.Neq:
		return renderBinary(e.Kind(), e.LHS, e.RHS)
	case ast.Lt:
		return renderBinary(e.Kind(), e.LHS, e.RHS)
	case ast.Le:
		return renderBinary(e.Kind(), e.LHS, e.RHS)
	case ast.Gt:
		return renderBinary(e.Kind(), e.LHS, e.RHS)
	case ast.Ge:
		return renderBinary(e.Kind(), e.LHS, e.RHS)
	case ast.Divides:
		return renderBinary(e.Kind(), e.LHS, e.RHS)
	case ast.Sum:
		return fmt.Sprintf("sum_{%s=%s..%s} (%s)",
			e.Var, RenderExpr(e.From), RenderExpr(e.To), RenderExpr(e.Body))
	case ast.Call:
		parts := make([]string, len(e.Args))
		for i, arg := range e.Args {
			parts[i] = RenderExpr(arg)
		}
		return e.Fn + "(" + strings.Join(parts, ", ") + ")"
	case nil:
		return ""
	default:
		return string(expr.Kind())
	}
}

func renderBinary(kind ast.Kind, lhs, rhs ast.Expr) string {
	return fmt.Sprintf("%s %s %s", RenderExpr(lhs), binaryOpSymbols[kind], RenderExpr(rhs))
}

func renderAddArg(expr ast.Expr) string {
	text := RenderExpr(expr)
	if expr != nil && ast.IsComparison(expr.Kind()) {
		return "(" + text + ")"
	}
	return text
}

func renderMulArg(expr ast.Expr) string {
	text := RenderExpr(expr)
	if expr == nil {
		return text
	}
	if expr.Kind() == ast.KindAdd || ast.IsComparison(expr.Kind()) {
		return "(" + text + ")"
	}
	return text
}

func renderPowPart(expr ast.Expr) string {
	text := RenderExpr(expr)
	if expr == nil {
		return text
	}
	switch expr.Kind() {
	case ast.KindSymbol, ast.KindNumber, ast.KindBool, ast.KindCall:
		return text
	default:
		return "(" + text + ")"
	}
}

// RenderMarkdown produces a deterministic Markdown report of the document.
// Entities, concepts, and warnings are sorted so identical documents always
// render byte-identically.
func RenderMarkdown(doc *schema.Document) string {
	if doc == nil {
		return ""
	}
	var sb strings.Builder

	fmt.Fprintf(&sb, "# MVIR Report: %s\n", doc.Meta.ID)

	sb.WriteString("\n## Meta\n")
	fmt.Fprintf(&sb, "- version: %s\n", doc.Meta.Version)
	fmt.Fprintf(&sb, "- id: %s\n", doc.Meta.ID)
	fmt.Fprintf(&sb, "- generator: %s\n", doc.Meta.Generator)
	fmt.Fprintf(&sb, "- created_at: %s\n", doc.Meta.CreatedAt)

	sb.WriteString("\n## Source\n")
	fmt.Fprintf(&sb, "- preview: %s\n", mdEscape(truncateText(doc.Source.Text, 300)))
	fmt.Fprintf(&sb, "- length: %d\n", len(doc.Source.Text))

	sb.WriteString("\n## Trace Spans\n")
	sb.WriteString("| span_id | start | end | text |\n")
	sb.WriteString("| --- | --- | --- | --- |\n")
	for _, span := range doc.Trace {
		fmt.Fprintf(&sb, "| %s | %d | %d | %s |\n",
			mdEscape(span.SpanID), span.Start, span.End, mdEscape(truncateText(span.Text, 120)))
	}

	sb.WriteString("\n## Entities\n")
	sb.WriteString("| id | kind | type | properties | trace_ids |\n")
	sb.WriteString("| --- | --- | --- | --- | --- |\n")
	entities := append([]schema.Entity(nil), doc.Entities...)
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	for _, e := range entities {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			mdEscape(e.ID), mdEscape(string(e.Kind)), mdEscape(e.Type),
			mdEscape(strings.Join(e.Properties, ", ")), mdEscape(strings.Join(e.Trace, ", ")))
	}

	sb.WriteString("\n## Assumptions\n")
	for _, a := range doc.Assumptions {
		idSuffix := ""
		if a.ID != "" {
			idSuffix = "; id: " + a.ID
		}
		fmt.Fprintf(&sb, "- [%s] %s (trace: %s%s)\n",
			a.Kind, RenderExpr(a.Expr), strings.Join(a.Trace, ", "), idSuffix)
	}

	sb.WriteString("\n## Goal\n")
	fmt.Fprintf(&sb, "- %s: %s\n", doc.Goal.Kind, RenderExpr(doc.Goal.Expr))
	if doc.Goal.Target != nil {
		fmt.Fprintf(&sb, "- target: %s\n", RenderExpr(doc.Goal.Target))
	}

	sb.WriteString("\n## Concepts\n")
	sb.WriteString("| id | role | name | trigger | confidence | trace_ids |\n")
	sb.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	conceptsSorted := append([]schema.Concept(nil), doc.Concepts...)
	sort.Slice(conceptsSorted, func(i, j int) bool {
		if conceptsSorted[i].Role != conceptsSorted[j].Role {
			return conceptsSorted[i].Role < conceptsSorted[j].Role
		}
		return conceptsSorted[i].ID < conceptsSorted[j].ID
	})
	for _, c := range conceptsSorted {
		confidence := ""
		if c.Confidence != nil {
			confidence = strconv.FormatFloat(*c.Confidence, 'f', -1, 64)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s |\n",
			mdEscape(c.ID), mdEscape(string(c.Role)), mdEscape(c.Name),
			mdEscape(c.Trigger), confidence, mdEscape(strings.Join(c.Trace, ", ")))
	}

	sb.WriteString("\n## Warnings\n")
	warnings := append([]schema.Warning(nil), doc.Warnings...)
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Code < warnings[j].Code })
	for _, w := range warnings {
		fmt.Fprintf(&sb, "- %s: %s (trace: %s)\n", w.Code, w.Message, strings.Join(w.Trace, ", "))
	}

	return sb.String()
}

func truncateText(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	if limit <= 3 {
		return text[:limit]
	}
	return text[:limit-3] + "..."
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
