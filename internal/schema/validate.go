package schema

import (
	"fmt"
	"strings"
)

// ValidationError reports every schema invariant a document violates.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: MVIR validation failed: %s", strings.Join(e.Problems, "; "))
}

// NewDocument validates doc and returns it. This is the always-on guard:
// the grounding checker re-verifies span exactness separately, but no
// document escapes this constructor with dangling references or duplicate
// ids.
func NewDocument(doc Document) (*Document, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate enforces the document-level invariants: non-empty trace, unique
// span/entity/concept ids, closed enums, resolved trace references, and
// goal-kind completeness. All violations are collected before returning.
func (d *Document) Validate() error {
	var problems []string

	if d.Meta.Version == "" {
		problems = append(problems, "meta.version is required")
	}
	if d.Meta.ID == "" {
		problems = append(problems, "meta.id is required")
	}

	if len(d.Trace) == 0 {
		problems = append(problems, "trace must be non-empty")
	}
	spanIDs := make(map[string]bool, len(d.Trace))
	for i, span := range d.Trace {
		if span.SpanID == "" {
			problems = append(problems, fmt.Sprintf("trace[%d].span_id is empty", i))
			continue
		}
		if spanIDs[span.SpanID] {
			problems = append(problems, fmt.Sprintf("duplicate span id %q", span.SpanID))
		}
		spanIDs[span.SpanID] = true
		if span.End < span.Start {
			problems = append(problems, fmt.Sprintf("trace[%d] (%s): end %d before start %d", i, span.SpanID, span.End, span.Start))
		}
	}

	checkRefs := func(field string, refs []string) {
		for _, ref := range refs {
			if !spanIDs[ref] {
				problems = append(problems, fmt.Sprintf("%s references unknown span %q", field, ref))
			}
		}
	}

	entityIDs := make(map[string]bool, len(d.Entities))
	for i, entity := range d.Entities {
		if entity.ID == "" {
			problems = append(problems, fmt.Sprintf("entities[%d].id is empty", i))
		} else if entityIDs[entity.ID] {
			problems = append(problems, fmt.Sprintf("duplicate entity id %q", entity.ID))
		}
		entityIDs[entity.ID] = true
		if !ValidEntityKinds[entity.Kind] {
			problems = append(problems, fmt.Sprintf("entities[%d].kind %q is not a valid entity kind", i, entity.Kind))
		}
		checkRefs(fmt.Sprintf("entities[%d].trace", i), entity.Trace)
	}

	for i, assumption := range d.Assumptions {
		if assumption.Expr == nil {
			problems = append(problems, fmt.Sprintf("assumptions[%d].expr is required", i))
		}
		if !ValidAssumptionKinds[assumption.Kind] {
			problems = append(problems, fmt.Sprintf("assumptions[%d].kind %q is not a valid assumption kind", i, assumption.Kind))
		}
		checkRefs(fmt.Sprintf("assumptions[%d].trace", i), assumption.Trace)
	}

	if !ValidGoalKinds[d.Goal.Kind] {
		problems = append(problems, fmt.Sprintf("goal.kind %q is not a valid goal kind", d.Goal.Kind))
	}
	if d.Goal.Expr == nil {
		problems = append(problems, "goal.expr is required")
	}
	if d.Goal.Kind == GoalFind && d.Goal.Target == nil {
		problems = append(problems, "goal.target is required when goal.kind is \"find\"")
	}
	checkRefs("goal.trace", d.Goal.Trace)

	conceptIDs := make(map[string]bool, len(d.Concepts))
	for i, concept := range d.Concepts {
		if concept.ID == "" {
			problems = append(problems, fmt.Sprintf("concepts[%d].id is empty", i))
		} else if conceptIDs[concept.ID] {
			problems = append(problems, fmt.Sprintf("duplicate concept id %q", concept.ID))
		}
		conceptIDs[concept.ID] = true
		if !ValidConceptRoles[concept.Role] {
			problems = append(problems, fmt.Sprintf("concepts[%d].role %q is not a valid concept role", i, concept.Role))
		}
		checkRefs(fmt.Sprintf("concepts[%d].trace", i), concept.Trace)
	}

	for i, warning := range d.Warnings {
		if warning.Code == "" {
			problems = append(problems, fmt.Sprintf("warnings[%d].code is empty", i))
		}
		checkRefs(fmt.Sprintf("warnings[%d].trace", i), warning.Trace)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
