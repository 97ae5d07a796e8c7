package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// RewriteNote records a node-kind identity rewrite applied by the
// normalizer. Pure key migrations (shape cleanup) are not noted; the
// orchestrator converts notes into expr_normalize_repair warnings.
type RewriteNote struct {
	Path string
	From string
	To   string
}

// canonicalTags maps lower-cased node tags to their canonical kind, covering
// every member of the closed union plus the Bool literal tags.
var canonicalTags = func() map[string]Kind {
	out := make(map[string]Kind)
	for k := range allowedKeys {
		out[strings.ToLower(string(k))] = k
	}
	out["true"] = KindBool
	out["false"] = KindBool
	return out
}()

// NormalizeExpr rewrites a near-valid expression map into canonical AST
// shape. It is pure, never mutates its input, and is idempotent. Missing
// required fields are left absent for the contract validator to report.
// A nil result means the node tag was unrecognized.
func NormalizeExpr(raw map[string]any) (map[string]any, []RewriteNote) {
	if raw == nil {
		return nil, nil
	}
	var notes []RewriteNote
	out := normalizeValue(deepCopyValue(raw), "", &notes)
	m, ok := out.(map[string]any)
	if !ok {
		return nil, notes
	}
	return m, notes
}

func normalizeValue(value any, path string, notes *[]RewriteNote) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, 0, len(v))
		for i, item := range v {
			n := normalizeValue(item, fmt.Sprintf("%s[%d]", path, i), notes)
			out = append(out, n)
		}
		return out
	case map[string]any:
		return normalizeNode(v, path, notes)
	default:
		return value
	}
}

func normalizeNode(m map[string]any, path string, notes *[]RewriteNote) any {
	// Infix {op, left, right} payloads carry no node tag at all.
	if _, hasNode := m["node"]; !hasNode {
		if op, ok := m["op"].(string); ok {
			if rewritten := rewriteInfix(m, op, path, notes); rewritten != nil {
				return normalizeNode(rewritten, path, notes)
			}
		}
		// No tag and no recognizable infix shape: recurse into children and
		// let the contract validator report the missing discriminator.
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = normalizeValue(v, childPath(path, k), notes)
		}
		return out
	}

	tag, ok := m["node"].(string)
	if !ok {
		return m
	}

	kind, rewrittenTag := canonicalKind(tag)
	if kind == "" {
		// Unrecognized node kinds propagate as null rather than being
		// silently dropped or passed through half-shaped.
		*notes = append(*notes, RewriteNote{Path: childPath(path, "node"), From: tag, To: "unrecognized"})
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v, childPath(path, k), notes)
	}

	if rewrittenTag != tag {
		// Kind-identity rewrites are semantic repairs; key migrations
		// below are shape cleanup and go unnoted.
		*notes = append(*notes, RewriteNote{Path: childPath(path, "node"), From: tag, To: rewrittenTag})
	}
	out["node"] = rewrittenTag

	switch kind {
	case KindSymbol:
		if _, has := out["id"]; !has {
			if name, ok := out["name"].(string); ok {
				out["id"] = name
				delete(out, "name")
			}
		}
	case KindNumber:
		if _, has := out["value"]; !has {
			if v, has := out["val"]; has {
				out["value"] = v
				delete(out, "val")
			}
		}
		if s, ok := out["value"].(string); ok {
			if n, err := parseNumeric(s); err == nil {
				out["value"] = n
			}
		}
	case KindBool:
		switch strings.ToLower(tag) {
		case "true":
			out["value"] = true
		case "false":
			out["value"] = false
		}
		if s, ok := out["value"].(string); ok {
			switch strings.ToLower(s) {
			case "true":
				out["value"] = true
			case "false":
				out["value"] = false
			}
		}
	case KindAdd, KindMul:
		migrateNamed(out, "left", "lhs")
		migrateNamed(out, "right", "rhs")
		migrateBinaryToArgs(out)
		flattenNested(out, rewrittenTag)
	case KindDiv:
		migratePositional(out, "num", "den")
	case KindPow:
		migratePositional(out, "base", "exp")
		migrateNamed(out, "left", "base")
		migrateNamed(out, "right", "exp")
	case KindNeg:
		if _, has := out["arg"]; !has {
			if args, ok := out["args"].([]any); ok && len(args) >= 1 {
				out["arg"] = args[0]
				delete(out, "args")
			}
		}
	case KindEq, KindNeq, KindLt, KindLe, KindGt, KindGe, KindDivides:
		migratePositional(out, "lhs", "rhs")
		migrateNamed(out, "left", "lhs")
		migrateNamed(out, "right", "rhs")
	case KindSum:
		migrateNamed(out, "from_", "from")
		migrateNamed(out, "lower", "from")
		migrateNamed(out, "upper", "to")
	case KindCall:
		if _, has := out["fn"]; !has {
			if name, ok := out["name"].(string); ok {
				out["fn"] = name
				delete(out, "name")
			}
		}
	}
	return out
}

// canonicalKind resolves a node tag to its canonical kind: exact or
// case-insensitive union member, Bool literal tag, "var"/"const" legacy
// tags, or a registered operator surface form. Returns ("", tag) when the
// tag is unrecognized.
func canonicalKind(tag string) (Kind, string) {
	if kind, ok := canonicalTags[strings.ToLower(tag)]; ok {
		return kind, string(kind)
	}
	switch strings.ToLower(tag) {
	case "var", "variable", "identifier":
		return KindSymbol, string(KindSymbol)
	case "const", "constant", "literal":
		return KindNumber, string(KindNumber)
	}
	if spec := DefaultRegistry.Lookup(tag); spec != nil {
		return spec.Node, string(spec.Node)
	}
	return "", tag
}

// rewriteInfix converts a tag-less {op, left, right} payload to canonical
// node shape. Returns nil when the operator is not registered.
func rewriteInfix(m map[string]any, op, path string, notes *[]RewriteNote) map[string]any {
	spec := DefaultRegistry.Lookup(op)
	if spec == nil {
		return nil
	}
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		if k == "op" {
			continue
		}
		out[k] = v
	}
	out["node"] = string(spec.Node)
	*notes = append(*notes, RewriteNote{Path: childPath(path, "op"), From: op, To: string(spec.Node)})
	return out
}

// migrateBinaryToArgs converts an {lhs, rhs} Add/Mul payload into an args
// list.
func migrateBinaryToArgs(out map[string]any) {
	if _, has := out["args"].([]any); has {
		return
	}
	lhs, hasLHS := out["lhs"]
	rhs, hasRHS := out["rhs"]
	if hasLHS && hasRHS {
		out["args"] = []any{lhs, rhs}
		delete(out, "lhs")
		delete(out, "rhs")
	}
}

// flattenNested folds same-operator Add/Mul children into the parent's
// argument list.
func flattenNested(out map[string]any, tag string) {
	args, ok := out["args"].([]any)
	if !ok {
		return
	}
	flat := make([]any, 0, len(args))
	for _, item := range args {
		if child, ok := item.(map[string]any); ok {
			if childTag, _ := child["node"].(string); childTag == tag {
				if childArgs, ok := child["args"].([]any); ok {
					flat = append(flat, childArgs...)
					continue
				}
			}
		}
		flat = append(flat, item)
	}
	out["args"] = flat
}

// migratePositional converts an args[a, b] payload into the two named
// fields, when neither named field is already present.
func migratePositional(out map[string]any, first, second string) {
	args, ok := out["args"].([]any)
	if !ok || len(args) < 2 {
		return
	}
	if _, has := out[first]; has {
		return
	}
	if _, has := out[second]; has {
		return
	}
	out[first] = args[0]
	out[second] = args[1]
	delete(out, "args")
}

func migrateNamed(out map[string]any, alias, canonical string) {
	if _, has := out[canonical]; has {
		return
	}
	if v, has := out[alias]; has {
		out[canonical] = v
		delete(out, alias)
	}
}

func parseNumeric(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func deepCopyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = deepCopyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return value
	}
}
