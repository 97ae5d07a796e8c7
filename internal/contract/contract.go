// Package contract enforces per-node-kind field completeness on expression
// payloads. It is the completeness gate behind the looser shape normalizer:
// it re-checks everything instead of trusting normalizer output, reports
// every violation with a field path, and, when repair is allowed, applies
// a small fixed set of safe key repairs.
//
// Data problems never raise: failure is signaled by a nil repaired value
// plus error warnings. Exceptions are reserved for programmer errors.
package contract

import (
	"mvir/internal/schema"
)

var binaryNodes = map[string]bool{
	"Eq": true, "Neq": true, "Lt": true, "Le": true, "Gt": true, "Ge": true, "Divides": true,
}

var naryNodes = map[string]bool{"Add": true, "Mul": true}

// ValidateExpr validates (and optionally repairs) an expression payload.
// The input is never mutated. On success the first return is the repaired
// copy; on failure it is nil and the warnings contain at least one
// expr_contract_error. Repairs each emit an expr_contract_repair warning.
func ValidateExpr(expr map[string]any, allowRepair bool) (map[string]any, []schema.Warning) {
	var warnings []schema.Warning
	if expr == nil {
		warnings = append(warnings, errWarning(path(), "not_object"))
		return nil, warnings
	}
	repaired := validateNode(copyMap(expr), path(), allowRepair, &warnings)
	return repaired, warnings
}

func validateNode(node map[string]any, p []any, allowRepair bool, warnings *[]schema.Warning) map[string]any {
	tag, ok := node["node"].(string)
	if !ok {
		*warnings = append(*warnings, errWarning(child(p, "node"), "missing_or_invalid_node"))
		return nil
	}

	switch {
	case tag == "Symbol":
		id, _ := node["id"].(string)
		if id == "" && allowRepair {
			if name, ok := node["name"].(string); ok && name != "" {
				id = name
				*warnings = append(*warnings, repairWarning(p, "symbol_name_to_id"))
			}
		}
		if id == "" {
			*warnings = append(*warnings, errWarning(child(p, "id"), "missing_required_field"))
			return nil
		}
		return map[string]any{"node": "Symbol", "id": id}

	case tag == "Number":
		value, has := node["value"]
		if !has {
			*warnings = append(*warnings, errWarning(child(p, "value"), "missing_required_field"))
			return nil
		}
		if _, ok := value.(float64); !ok {
			if _, ok := value.(int); !ok {
				*warnings = append(*warnings, errWarning(child(p, "value"), "value_not_numeric"))
				return nil
			}
		}
		return map[string]any{"node": "Number", "value": value}

	case tag == "Bool":
		value, has := node["value"]
		if !has {
			*warnings = append(*warnings, errWarning(child(p, "value"), "missing_required_field"))
			return nil
		}
		if _, ok := value.(bool); !ok {
			*warnings = append(*warnings, errWarning(child(p, "value"), "value_not_boolean"))
			return nil
		}
		return map[string]any{"node": "Bool", "value": value}

	case naryNodes[tag]:
		args, isList := node["args"].([]any)
		if !isList && allowRepair && tag == "Add" {
			if terms, ok := node["terms"].([]any); ok {
				args = terms
				isList = true
				*warnings = append(*warnings, repairWarning(p, "add_terms_to_args"))
			}
		}
		if !isList {
			*warnings = append(*warnings, errWarning(child(p, "args"), "missing_required_field"))
			return nil
		}
		validated := validateArgList(args, p, allowRepair, warnings)
		// An n-ary node that lost every child is an error, never a smaller
		// valid node.
		if len(validated) == 0 {
			*warnings = append(*warnings, errWarning(child(p, "args"), "empty_args"))
			return nil
		}
		return map[string]any{"node": tag, "args": validated}

	case binaryNodes[tag]:
		return validatePair(node, tag, "lhs", "rhs", p, allowRepair, warnings)

	case tag == "Div":
		return validatePair(node, tag, "num", "den", p, allowRepair, warnings)

	case tag == "Pow":
		return validatePair(node, tag, "base", "exp", p, allowRepair, warnings)

	case tag == "Neg":
		arg, ok := node["arg"].(map[string]any)
		if !ok {
			*warnings = append(*warnings, errWarning(child(p, "arg"), "missing_required_field"))
			return nil
		}
		argV := validateNode(arg, child(p, "arg"), allowRepair, warnings)
		if argV == nil {
			return nil
		}
		return map[string]any{"node": "Neg", "arg": argV}

	case tag == "Call":
		fn, _ := node["fn"].(string)
		if fn == "" {
			*warnings = append(*warnings, errWarning(child(p, "fn"), "missing_required_field"))
			return nil
		}
		args, isList := node["args"].([]any)
		if !isList {
			*warnings = append(*warnings, errWarning(child(p, "args"), "missing_required_field"))
			return nil
		}
		// A call written with explicitly empty args is a zero-arity call
		// and passes; a call whose children all failed would be a
		// different call entirely, so it fails like Add/Mul.
		if len(args) == 0 {
			return map[string]any{"node": "Call", "fn": fn, "args": []any{}}
		}
		validated := validateArgList(args, p, allowRepair, warnings)
		if len(validated) == 0 {
			*warnings = append(*warnings, errWarning(child(p, "args"), "empty_args"))
			return nil
		}
		return map[string]any{"node": "Call", "fn": fn, "args": validated}

	case tag == "Sum":
		v, _ := node["var"].(string)
		frm, frmOK := node["from"].(map[string]any)
		if !frmOK && allowRepair {
			if alias, ok := node["from_"].(map[string]any); ok {
				frm = alias
				frmOK = true
				*warnings = append(*warnings, repairWarning(p, "sum_from_alias_to_from"))
			}
		}
		to, toOK := node["to"].(map[string]any)
		body, bodyOK := node["body"].(map[string]any)
		if v == "" {
			*warnings = append(*warnings, errWarning(child(p, "var"), "missing_required_field"))
			return nil
		}
		if !frmOK {
			*warnings = append(*warnings, errWarning(child(p, "from"), "missing_required_field"))
			return nil
		}
		if !toOK {
			*warnings = append(*warnings, errWarning(child(p, "to"), "missing_required_field"))
			return nil
		}
		if !bodyOK {
			*warnings = append(*warnings, errWarning(child(p, "body"), "missing_required_field"))
			return nil
		}
		frmV := validateNode(frm, child(p, "from"), allowRepair, warnings)
		toV := validateNode(to, child(p, "to"), allowRepair, warnings)
		bodyV := validateNode(body, child(p, "body"), allowRepair, warnings)
		if frmV == nil || toV == nil || bodyV == nil {
			return nil
		}
		return map[string]any{"node": "Sum", "var": v, "from": frmV, "to": toV, "body": bodyV}
	}

	*warnings = append(*warnings, errWarning(child(p, "node"), "unknown_node"))
	return nil
}

// validatePair validates the two named child fields of a binary node.
func validatePair(node map[string]any, tag, first, second string, p []any, allowRepair bool, warnings *[]schema.Warning) map[string]any {
	a, aOK := node[first].(map[string]any)
	if !aOK {
		*warnings = append(*warnings, errWarning(child(p, first), "missing_required_field"))
		return nil
	}
	b, bOK := node[second].(map[string]any)
	if !bOK {
		*warnings = append(*warnings, errWarning(child(p, second), "missing_required_field"))
		return nil
	}
	aV := validateNode(a, child(p, first), allowRepair, warnings)
	bV := validateNode(b, child(p, second), allowRepair, warnings)
	if aV == nil || bV == nil {
		return nil
	}
	return map[string]any{"node": tag, first: aV, second: bV}
}

// validateArgList validates an argument list, dropping children that fail
// so that a partially malformed list still yields a smaller correct tree.
func validateArgList(args []any, p []any, allowRepair bool, warnings *[]schema.Warning) []any {
	validated := make([]any, 0, len(args))
	for i, item := range args {
		childMap, ok := item.(map[string]any)
		if !ok {
			*warnings = append(*warnings, errWarning(child(p, "args", i), "arg_not_object"))
			continue
		}
		v := validateNode(childMap, child(p, "args", i), allowRepair, warnings)
		if v != nil {
			validated = append(validated, v)
		}
	}
	return validated
}

func path(elems ...any) []any {
	return elems
}

func child(p []any, elems ...any) []any {
	out := make([]any, 0, len(p)+len(elems))
	out = append(out, p...)
	out = append(out, elems...)
	return out
}

func errWarning(p []any, reason string) schema.Warning {
	return schema.Warning{
		Code:    schema.WarnExprContractError,
		Message: "Expression violates AST contract.",
		Trace:   []string{},
		Details: map[string]any{"path": p, "reason": reason},
	}
}

func repairWarning(p []any, repair string) schema.Warning {
	return schema.Warning{
		Code:    schema.WarnExprContractRepair,
		Message: "Applied AST contract repair.",
		Trace:   []string{},
		Details: map[string]any{"path": p, "repair": repair},
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch value := v.(type) {
		case map[string]any:
			out[k] = copyMap(value)
		case []any:
			out[k] = copySlice(value)
		default:
			out[k] = v
		}
	}
	return out
}

func copySlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		switch value := v.(type) {
		case map[string]any:
			out[i] = copyMap(value)
		case []any:
			out[i] = copySlice(value)
		default:
			out[i] = v
		}
	}
	return out
}
