// Package sanitize repairs common document-level shape issues in near-valid
// MVIR payloads before strict validation: optional-field defaults, known
// enum alias coercion, and collapsing an accidental goal list to a single
// selected goal. It never invents trace spans or ids.
package sanitize

import (
	"strings"

	"mvir/internal/schema"
)

var entityKinds = map[string]bool{
	"variable": true, "constant": true, "function": true, "set": true,
	"sequence": true, "point": true, "vector": true, "object": true,
}

// Alias tables are lower-cased exact matches only; nothing fuzzy.
var assumptionKindAliases = map[string]string{
	"assumption":       "given",
	"given_assumption": "given",
	"hypothesis":       "given",
}

var assumptionKinds = map[string]bool{"given": true, "derived": true, "wlog": true}

var conceptRoleAliases = map[string]string{
	"theorem": "definition",
	"formula": "definition",
	"concept": "pattern",
}

var conceptRoles = map[string]bool{
	"domain": true, "pattern": true, "candidate_tool": true,
	"definition": true, "representation_hint": true,
}

var goalKinds = map[string]bool{
	"prove": true, "find": true, "compute": true, "maximize": true,
	"minimize": true, "exists": true, "counterexample": true,
}

// Payload sanitizes a whole document payload. The input is never mutated.
func Payload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	data := copyMap(payload)

	setDefault(data, "concepts", []any{})
	setDefault(data, "warnings", []any{})
	setDefault(data, "entities", []any{})
	setDefault(data, "assumptions", []any{})
	setDefault(data, "trace", []any{})

	if entities, ok := data["entities"].([]any); ok {
		for _, item := range entities {
			entity, ok := item.(map[string]any)
			if !ok {
				continue
			}
			setDefault(entity, "properties", []any{})
			setDefault(entity, "trace", []any{})
			// type is free-form and low-stakes: default to a sentinel
			// rather than failing.
			if t, ok := entity["type"].(string); !ok || strings.TrimSpace(t) == "" {
				entity["type"] = "Unknown"
			}
			if kind, ok := entity["kind"].(string); ok {
				if lower := strings.ToLower(kind); entityKinds[lower] {
					entity["kind"] = lower
				}
			}
		}
	}

	if assumptions, ok := data["assumptions"].([]any); ok {
		for _, item := range assumptions {
			assumption, ok := item.(map[string]any)
			if !ok {
				continue
			}
			setDefault(assumption, "trace", []any{})
			if _, has := assumption["kind"]; !has {
				assumption["kind"] = "given"
			}
			if kind, ok := assumption["kind"].(string); ok {
				lower := strings.ToLower(kind)
				if canonical, ok := assumptionKindAliases[lower]; ok {
					assumption["kind"] = canonical
				} else if assumptionKinds[lower] {
					assumption["kind"] = lower
				}
			}
		}
	}

	sanitizeGoal(data)

	if concepts, ok := data["concepts"].([]any); ok {
		for _, item := range concepts {
			concept, ok := item.(map[string]any)
			if !ok {
				continue
			}
			setDefault(concept, "trace", []any{})
			if _, has := concept["role"]; !has {
				concept["role"] = "definition"
			}
			if role, ok := concept["role"].(string); ok {
				lower := strings.ToLower(role)
				if canonical, ok := conceptRoleAliases[lower]; ok {
					concept["role"] = canonical
				} else if conceptRoles[lower] {
					concept["role"] = lower
				}
			}
		}
	}

	if warnings, ok := data["warnings"].([]any); ok {
		for _, item := range warnings {
			warning, ok := item.(map[string]any)
			if !ok {
				continue
			}
			setDefault(warning, "trace", []any{})
			if _, has := warning["code"]; !has {
				warning["code"] = schema.WarnUnspecified
			}
		}
	}

	return data
}

// sanitizeGoal coerces the goal's enum aliases and collapses a goal list to
// one selected goal plus a multiple_goals warning listing the discards.
func sanitizeGoal(data map[string]any) {
	discarded := 0
	var discardedGoals []any
	if goalList, ok := data["goal"].([]any); ok {
		selected, keep := selectGoal(goalList)
		data["goal"] = selected
		discarded = len(goalList) - 1
		for i, item := range goalList {
			if i != keep {
				discardedGoals = append(discardedGoals, item)
			}
		}
	}

	goal, ok := data["goal"].(map[string]any)
	if !ok {
		return
	}
	// The role key only exists to steer goal selection; it is not part of
	// the goal wire shape.
	delete(goal, "role")
	if _, has := goal["kind"]; !has {
		goal["kind"] = "prove"
	}
	if kind, ok := goal["kind"].(string); ok {
		lower := strings.ToLower(kind)
		if lower == "goal" {
			goal["kind"] = "prove"
		} else if goalKinds[lower] {
			goal["kind"] = lower
		}
	}
	setDefault(goal, "trace", []any{})

	if discarded > 0 {
		goalTrace := []any{}
		if trace, ok := goal["trace"].([]any); ok {
			for _, t := range trace {
				if _, ok := t.(string); ok {
					goalTrace = append(goalTrace, t)
				}
			}
		}
		warnings, _ := data["warnings"].([]any)
		warnings = append(warnings, map[string]any{
			"code":    schema.WarnMultipleGoals,
			"message": "Multiple goals returned; kept one goal only.",
			"trace":   goalTrace,
			"details": map[string]any{"discarded": discarded, "discarded_goals": discardedGoals},
		})
		data["warnings"] = warnings
	}
}

// selectGoal picks one goal from a list: the first item whose kind or role
// mentions "prove", else the first item. The returned index identifies the
// kept item so callers can report the discards.
func selectGoal(goalList []any) (map[string]any, int) {
	if len(goalList) == 0 {
		return map[string]any{}, -1
	}
	for i, item := range goalList {
		goal, ok := item.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := goal["kind"].(string)
		role, _ := goal["role"].(string)
		if strings.Contains(strings.ToLower(kind), "prove") ||
			strings.Contains(strings.ToLower(role), "prove") {
			return goal, i
		}
	}
	if first, ok := goalList[0].(map[string]any); ok {
		return first, 0
	}
	return map[string]any{}, -1
}

func setDefault(m map[string]any, key string, value any) {
	if existing, has := m[key]; !has || existing == nil {
		m[key] = value
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
