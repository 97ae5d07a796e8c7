package ast

import (
	"encoding/json"
	"fmt"
)

// ParseExpr decodes JSON bytes into a typed Expr, enforcing the per-kind
// field schema strictly: every required field must be present and valid, and
// no extra fields are tolerated.
func ParseExpr(data []byte) (Expr, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ast: %w", err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("ast: expression must be a JSON object")
	}
	return DecodeMap(m)
}

// MarshalExpr serializes a typed Expr to its canonical JSON wire form.
func MarshalExpr(e Expr) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("ast: nil expression")
	}
	return json.Marshal(EncodeMap(e))
}

// allowedKeys lists the full key set (including "node") per canonical kind.
var allowedKeys = map[Kind][]string{
	KindSymbol:  {"node", "id"},
	KindNumber:  {"node", "value"},
	KindBool:    {"node", "value"},
	KindAdd:     {"node", "args"},
	KindMul:     {"node", "args"},
	KindDiv:     {"node", "num", "den"},
	KindPow:     {"node", "base", "exp"},
	KindNeg:     {"node", "arg"},
	KindEq:      {"node", "lhs", "rhs"},
	KindNeq:     {"node", "lhs", "rhs"},
	KindLt:      {"node", "lhs", "rhs"},
	KindLe:      {"node", "lhs", "rhs"},
	KindGt:      {"node", "lhs", "rhs"},
	KindGe:      {"node", "lhs", "rhs"},
	KindDivides: {"node", "lhs", "rhs"},
	KindSum:     {"node", "var", "from", "to", "body"},
	KindCall:    {"node", "fn", "args"},
}

// DecodeMap converts a generic decoded-JSON map into a typed Expr.
func DecodeMap(m map[string]any) (Expr, error) {
	tag, ok := m["node"].(string)
	if !ok || tag == "" {
		return nil, fmt.Errorf("ast: missing node discriminator")
	}

	kind := Kind(tag)
	// "True"/"False" are accepted as Bool node tags on the wire.
	if tag == "True" || tag == "False" {
		kind = KindBool
	}

	keys, known := allowedKeys[kind]
	if !known {
		return nil, fmt.Errorf("ast: unknown node kind %q", tag)
	}
	if err := rejectExtraKeys(m, keys, tag); err != nil {
		return nil, err
	}

	switch kind {
	case KindSymbol:
		id, err := requireString(m, "id", tag)
		if err != nil {
			return nil, err
		}
		return Symbol{ID: id}, nil
	case KindNumber:
		v, ok := m["value"].(float64)
		if !ok {
			return nil, fmt.Errorf("ast: Number.value must be numeric")
		}
		return Number{Value: v}, nil
	case KindBool:
		switch tag {
		case "True":
			return Bool{Value: true}, nil
		case "False":
			return Bool{Value: false}, nil
		}
		v, ok := m["value"].(bool)
		if !ok {
			return nil, fmt.Errorf("ast: Bool.value must be boolean")
		}
		return Bool{Value: v}, nil
	case KindAdd, KindMul:
		args, err := decodeArgs(m, tag, 1)
		if err != nil {
			return nil, err
		}
		if kind == KindAdd {
			return Add{Args: args}, nil
		}
		return Mul{Args: args}, nil
	case KindDiv:
		num, err := decodeChild(m, "num", tag)
		if err != nil {
			return nil, err
		}
		den, err := decodeChild(m, "den", tag)
		if err != nil {
			return nil, err
		}
		return Div{Num: num, Den: den}, nil
	case KindPow:
		base, err := decodeChild(m, "base", tag)
		if err != nil {
			return nil, err
		}
		exp, err := decodeChild(m, "exp", tag)
		if err != nil {
			return nil, err
		}
		return Pow{Base: base, Exp: exp}, nil
	case KindNeg:
		arg, err := decodeChild(m, "arg", tag)
		if err != nil {
			return nil, err
		}
		return Neg{Arg: arg}, nil
	case KindEq, KindNeq, KindLt, KindLe, KindGt, KindGe, KindDivides:
		lhs, err := decodeChild(m, "lhs", tag)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeChild(m, "rhs", tag)
		if err != nil {
			return nil, err
		}
		switch kind {
		case KindEq:
			return Eq{LHS: lhs, RHS: rhs}, nil
		case KindNeq:
			return Neq{LHS: lhs, RHS: rhs}, nil
		case KindLt:
			return Lt{LHS: lhs, RHS: rhs}, nil
		case KindLe:
			return Le{LHS: lhs, RHS: rhs}, nil
		case KindGt:
			return Gt{LHS: lhs, RHS: rhs}, nil
		case KindGe:
			return Ge{LHS: lhs, RHS: rhs}, nil
		default:
			return Divides{LHS: lhs, RHS: rhs}, nil
		}
	case KindSum:
		v, err := requireString(m, "var", tag)
		if err != nil {
			return nil, err
		}
		from, err := decodeChild(m, "from", tag)
		if err != nil {
			return nil, err
		}
		to, err := decodeChild(m, "to", tag)
		if err != nil {
			return nil, err
		}
		body, err := decodeChild(m, "body", tag)
		if err != nil {
			return nil, err
		}
		return Sum{Var: v, From: from, To: to, Body: body}, nil
	case KindCall:
		fn, err := requireString(m, "fn", tag)
		if err != nil {
			return nil, err
		}
		args, err := decodeArgs(m, tag, 0)
		if err != nil {
			return nil, err
		}
		return Call{Fn: fn, Args: args}, nil
	}
	return nil, fmt.Errorf("ast: unknown node kind %q", tag)
}

func rejectExtraKeys(m map[string]any, allowed []string, tag string) error {
	for key := range m {
		found := false
		for _, a := range allowed {
			if key == a {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("ast: %s carries unexpected field %q", tag, key)
		}
	}
	return nil
}

func requireString(m map[string]any, key, tag string) (string, error) {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("ast: %s.%s must be a non-empty string", tag, key)
	}
	return s, nil
}

func decodeChild(m map[string]any, key, tag string) (Expr, error) {
	child, ok := m[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("ast: %s.%s must be an expression object", tag, key)
	}
	e, err := DecodeMap(child)
	if err != nil {
		return nil, fmt.Errorf("%w (at %s.%s)", err, tag, key)
	}
	return e, nil
}

func decodeArgs(m map[string]any, tag string, min int) ([]Expr, error) {
	raw, ok := m["args"].([]any)
	if !ok {
		return nil, fmt.Errorf("ast: %s.args must be a list", tag)
	}
	if len(raw) < min {
		return nil, fmt.Errorf("ast: %s.args must have at least %d element(s)", tag, min)
	}
	args := make([]Expr, 0, len(raw))
	for i, item := range raw {
		child, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("ast: %s.args[%d] must be an expression object", tag, i)
		}
		e, err := DecodeMap(child)
		if err != nil {
			return nil, fmt.Errorf("%w (at %s.args[%d])", err, tag, i)
		}
		args = append(args, e)
	}
	return args, nil
}

// EncodeMap converts a typed Expr back into its canonical map form.
func EncodeMap(e Expr) map[string]any {
	switch n := e.(type) {
	case Symbol:
		return map[string]any{"node": "Symbol", "id": n.ID}
	case Number:
		return map[string]any{"node": "Number", "value": n.Value}
	case Bool:
		return map[string]any{"node": "Bool", "value": n.Value}
	case Add:
		return map[string]any{"node": "Add", "args": encodeArgs(n.Args)}
	case Mul:
		return map[string]any{"node": "Mul", "args": encodeArgs(n.Args)}
	case Div:
		return map[string]any{"node": "Div", "num": EncodeMap(n.Num), "den": EncodeMap(n.Den)}
	case Pow:
		return map[string]any{"node": "Pow", "base": EncodeMap(n.Base), "exp": EncodeMap(n.Exp)}
	case Neg:
		return map[string]any{"node": "Neg", "arg": EncodeMap(n.Arg)}
	case Eq:
		return encodeBinary("Eq", n.LHS, n.RHS)
	case Neq:
		return encodeBinary("Neq", n.LHS, n.RHS)
	case Lt:
		return encodeBinary("Lt", n.LHS, n.RHS)
	case Le:
		return encodeBinary("Le", n.LHS, n.RHS)
	case Gt:
		return encodeBinary("Gt", n.LHS, n.RHS)
	case Ge:
		return encodeBinary("Ge", n.LHS, n.RHS)
	case Divides:
		return encodeBinary("Divides", n.LHS, n.RHS)
	case Sum:
		return map[string]any{
			"node": "Sum",
			"var":  n.Var,
			"from": EncodeMap(n.From),
			"to":   EncodeMap(n.To),
			"body": EncodeMap(n.Body),
		}
	case Call:
		return map[string]any{"node": "Call", "fn": n.Fn, "args": encodeArgs(n.Args)}
	}
	// Unreachable for the closed union; a new kind must extend this switch.
	panic(fmt.Sprintf("ast: unhandled expression kind %T", e))
}

func encodeBinary(tag string, lhs, rhs Expr) map[string]any {
	return map[string]any{"node": tag, "lhs": EncodeMap(lhs), "rhs": EncodeMap(rhs)}
}

func encodeArgs(args []Expr) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = EncodeMap(a)
	}
	return out
}
