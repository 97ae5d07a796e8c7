package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Span-text repair fills half-built Symbol/Number/Pow leaves from the
// literal text of the span an assumption or goal cites. Only two shapes are
// recognized; anything else passes through untouched for the contract
// validator to judge.
var (
	patGtZero    = regexp.MustCompile(`([a-zA-Z])\s*>\s*0`)
	patGePowZero = regexp.MustCompile(`([a-zA-Z])\s*\^\s*(\d+)\s*(?:>=|\\ge|≥)\s*0`)
)

// repairExprFromSpan returns a copy of expr with missing Gt/Ge leaf fields
// filled from spanText where a pattern matches. entityIDs supplies a
// fallback symbol id when the span text offers none.
func repairExprFromSpan(expr map[string]any, spanText string, entityIDs []string) map[string]any {
	if expr == nil {
		return nil
	}
	out := copyExprMap(expr)
	node, _ := out["node"].(string)

	switch node {
	case "Gt":
		var varHint string
		var numHint *float64
		if m := patGtZero.FindStringSubmatch(spanText); m != nil {
			varHint = m[1]
			numHint = ptrFloat(0)
		}
		out["lhs"] = repairSymbolLike(out["lhs"], varHint, entityIDs)
		out["rhs"] = repairNumberLike(out["rhs"], numHint, spanText)
	case "Ge":
		var varHint string
		var expHint, numHint *float64
		if m := patGePowZero.FindStringSubmatch(spanText); m != nil {
			varHint = m[1]
			if n, err := strconv.Atoi(m[2]); err == nil {
				expHint = ptrFloat(float64(n))
			}
			numHint = ptrFloat(0)
		}
		out["lhs"] = repairPowLike(out["lhs"], varHint, expHint, entityIDs, spanText)
		out["rhs"] = repairNumberLike(out["rhs"], numHint, spanText)
	}
	return out
}

func repairSymbolLike(value any, varHint string, entityIDs []string) any {
	out, ok := value.(map[string]any)
	if !ok {
		out = map[string]any{"node": "Symbol"}
	}
	if node, _ := out["node"].(string); node != "Symbol" {
		return out
	}
	if id, ok := out["id"].(string); ok && id != "" {
		return out
	}
	inferred := varHint
	if inferred == "" && len(entityIDs) > 0 {
		inferred = entityIDs[0]
	}
	if inferred != "" {
		out["id"] = inferred
	}
	return out
}

func repairNumberLike(value any, hint *float64, spanText string) any {
	out, ok := value.(map[string]any)
	if !ok {
		out = map[string]any{"node": "Number"}
	}
	if node, _ := out["node"].(string); node != "Number" {
		return out
	}
	switch out["value"].(type) {
	case float64, int:
		return out
	}
	if hint != nil {
		out["value"] = *hint
	} else if strings.Contains(spanText, "0") {
		out["value"] = float64(0)
	}
	return out
}

func repairPowLike(value any, varHint string, expHint *float64, entityIDs []string, spanText string) any {
	out, ok := value.(map[string]any)
	if !ok {
		out = map[string]any{"node": "Pow"}
	}
	if node, _ := out["node"].(string); node != "Pow" {
		return out
	}
	out["base"] = repairSymbolLike(out["base"], varHint, entityIDs)
	out["exp"] = repairNumberLike(out["exp"], expHint, spanText)
	return out
}

func ptrFloat(v float64) *float64 { return &v }

func copyExprMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch child := v.(type) {
		case map[string]any:
			out[k] = copyExprMap(child)
		case []any:
			dupe := make([]any, len(child))
			for i, item := range child {
				if im, ok := item.(map[string]any); ok {
					dupe[i] = copyExprMap(im)
				} else {
					dupe[i] = item
				}
			}
			out[k] = dupe
		default:
			out[k] = v
		}
	}
	return out
}
