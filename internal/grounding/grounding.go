// Package grounding verifies the trace-span referential contract of an MVIR
// document: every reference resolves, every span's recorded text matches the
// source exactly, and the distinguished full-text span covers the whole
// source. It is the stricter, business-level pass behind the document
// constructor's always-on guard.
package grounding

import (
	"fmt"
	"sort"
	"strings"

	"mvir/internal/schema"
)

// Check runs every grounding check against doc and returns all violations
// as human-readable strings. Checks never short-circuit, so one pass
// surfaces every problem. An empty result means the contract holds.
func Check(doc *schema.Document) []string {
	var errs []string
	text := doc.Source.Text

	spans := make(map[string]schema.TraceSpan, len(doc.Trace))
	for _, span := range doc.Trace {
		spans[span.SpanID] = span
	}

	s0, hasS0 := spans[schema.FullTextSpanID]
	if !hasS0 {
		errs = append(errs, fmt.Sprintf("trace must contain the %s full-text span", schema.FullTextSpanID))
	}

	// A document grounded only by the whole-text span is under-grounded.
	if len(doc.Trace) < 2 {
		errs = append(errs, fmt.Sprintf("trace must contain at least 2 spans, got %d", len(doc.Trace)))
	}

	if hasS0 && (s0.Start != 0 || s0.End != len(text)) {
		errs = append(errs, fmt.Sprintf("s0 span must cover [0, %d), got [%d, %d)", len(text), s0.Start, s0.End))
	}

	for _, span := range doc.Trace {
		if span.Start < 0 || span.End > len(text) || span.End < span.Start {
			errs = append(errs, fmt.Sprintf("span %s has out-of-range offsets [%d, %d) for text of length %d",
				span.SpanID, span.Start, span.End, len(text)))
			continue
		}
		if got := text[span.Start:span.End]; got != span.Text {
			errs = append(errs, fmt.Sprintf("span %s text mismatch: recorded %q, source has %q",
				span.SpanID, span.Text, got))
		}
	}

	unknown := collectUnknownRefs(doc, spans)
	if len(unknown) > 0 {
		errs = append(errs, fmt.Sprintf("Unknown trace ids: %s", strings.Join(unknown, ", ")))
	}

	seen := make(map[string]bool, len(doc.Entities))
	for _, entity := range doc.Entities {
		if seen[entity.ID] {
			errs = append(errs, fmt.Sprintf("duplicate entity id %q", entity.ID))
		}
		seen[entity.ID] = true
	}

	// Lighter-weight duplicate of the constructor's goal-kind checks so
	// this pass stays meaningful against payloads that were never run
	// through full model construction.
	if doc.Goal.Kind == schema.GoalCompute && doc.Goal.Expr == nil {
		errs = append(errs, "compute goal requires expr")
	}
	if doc.Goal.Kind == schema.GoalFind && doc.Goal.Target == nil {
		errs = append(errs, "find goal requires target")
	}

	return errs
}

// collectUnknownRefs gathers every trace reference in the document that
// does not resolve to a declared span, reported together and sorted.
func collectUnknownRefs(doc *schema.Document, spans map[string]schema.TraceSpan) []string {
	unknownSet := make(map[string]bool)
	note := func(refs []string) {
		for _, ref := range refs {
			if _, ok := spans[ref]; !ok {
				unknownSet[ref] = true
			}
		}
	}
	for _, entity := range doc.Entities {
		note(entity.Trace)
	}
	for _, assumption := range doc.Assumptions {
		note(assumption.Trace)
	}
	note(doc.Goal.Trace)
	for _, concept := range doc.Concepts {
		note(concept.Trace)
	}
	for _, warning := range doc.Warnings {
		note(warning.Trace)
	}

	unknown := make([]string, 0, len(unknownSet))
	for ref := range unknownSet {
		unknown = append(unknown, ref)
	}
	sort.Strings(unknown)
	return unknown
}
