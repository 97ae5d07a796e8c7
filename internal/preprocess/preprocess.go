// Package preprocess builds the addressable span table for a problem
// statement: the distinguished full-text span, sentence-level spans with
// extraction hints, and cue/math candidate spans. It is lossless and
// offset-exact; no semantic classification happens here.
package preprocess

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"mvir/internal/schema"
)

// Sentence is one addressable sentence-level span plus prompt hints.
type Sentence struct {
	SpanID          string `json:"span_id"`
	Start           int    `json:"start"`
	End             int    `json:"end"`
	Text            string `json:"text"`
	StartsWith      string `json:"starts_with"`
	HasMath         bool   `json:"has_math"`
	HasQuestionMark bool   `json:"has_question_mark"`
}

// Candidate is a cue or math token candidate detected in the source text.
type Candidate struct {
	Category string `json:"category"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Text     string `json:"text"`
}

// Result is the full preprocess output for one problem statement.
type Result struct {
	Text           string      `json:"text"`
	Sentences      []Sentence  `json:"sentences"`
	CueCandidates  []Candidate `json:"cue_candidates"`
	MathCandidates []Candidate `json:"math_candidates"`
}

var (
	sentenceRe   = regexp.MustCompile(`[^.!?]+[.!?]?`)
	goalVerbRe   = regexp.MustCompile(`(?i)\b(show|prove|find|compute|maximize|minimize|determine|solve)\b`)
	quantifierRe = regexp.MustCompile(`(?i)\b(for any|for all|there exists|exists)\b`)
	numberRe     = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	symbolRe     = regexp.MustCompile(`\b[a-zA-Z]\b`)
	mathPairRe   = regexp.MustCompile(`[A-Za-z]\s*[<>]=?\s*[A-Za-z0-9]`)
)

// cueStarters are the sentence-opening tokens reported as starts_with hints.
var cueStarters = []string{
	"let", "assume", "suppose", "given", "show", "prove", "compute",
	"find", "define", "also", "consider",
}

const mathTokens = "$\\^_≥≤∈≠=<>+-*/"

// Run preprocesses text into sentences and candidate spans.
func Run(text string) Result {
	result := Result{Text: text}

	id := 1
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		snippet := text[loc[0]:loc[1]]
		if strings.TrimSpace(snippet) == "" {
			continue
		}
		result.Sentences = append(result.Sentences, Sentence{
			SpanID:          spanID(id),
			Start:           loc[0],
			End:             loc[1],
			Text:            snippet,
			StartsWith:      startsWithHint(snippet),
			HasMath:         hasMathHint(snippet),
			HasQuestionMark: strings.Contains(snippet, "?"),
		})
		id++
	}

	result.CueCandidates = findCandidates(text, goalVerbRe, "GOAL_VERB")
	result.CueCandidates = append(result.CueCandidates, findCandidates(text, quantifierRe, "QUANTIFIER")...)
	sortCandidates(result.CueCandidates)

	result.MathCandidates = findCandidates(text, numberRe, "MATH_TOKEN")
	result.MathCandidates = append(result.MathCandidates, findCandidates(text, symbolRe, "MATH_TOKEN")...)
	sortCandidates(result.MathCandidates)

	return result
}

// Spans returns the trace-span table base: s0 covering the full text
// followed by the sentence spans.
func (r Result) Spans() []schema.TraceSpan {
	spans := make([]schema.TraceSpan, 0, len(r.Sentences)+1)
	spans = append(spans, schema.TraceSpan{
		SpanID: schema.FullTextSpanID,
		Start:  0,
		End:    len(r.Text),
		Text:   r.Text,
	})
	for _, s := range r.Sentences {
		spans = append(spans, schema.TraceSpan{SpanID: s.SpanID, Start: s.Start, End: s.End, Text: s.Text})
	}
	return spans
}

// SpanText returns the recorded text of the span with the given id, or ""
// when the id is unknown.
func (r Result) SpanText(id string) string {
	if id == schema.FullTextSpanID {
		return r.Text
	}
	for _, s := range r.Sentences {
		if s.SpanID == id {
			return s.Text
		}
	}
	return ""
}

func spanID(n int) string {
	return "s" + strconv.Itoa(n)
}

func startsWithHint(text string) string {
	stripped := strings.ToLower(strings.TrimSpace(text))
	for _, token := range cueStarters {
		if strings.HasPrefix(stripped, token) {
			return token
		}
	}
	return "none"
}

func hasMathHint(text string) bool {
	if strings.ContainsAny(text, mathTokens) {
		return true
	}
	return mathPairRe.MatchString(text)
}

func findCandidates(text string, re *regexp.Regexp, category string) []Candidate {
	var out []Candidate
	for _, loc := range re.FindAllStringIndex(text, -1) {
		out = append(out, Candidate{
			Category: category,
			Start:    loc[0],
			End:      loc[1],
			Text:     text[loc[0]:loc[1]],
		})
	}
	return out
}

func sortCandidates(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Start != cands[j].Start {
			return cands[i].Start < cands[j].Start
		}
		return cands[i].End < cands[j].End
	})
}
