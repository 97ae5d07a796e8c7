package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"mvir/internal/preprocess"
)

// promptContext is the machine-readable portion of the extraction prompt:
// the source text plus the addressable spans the model must ground every
// semantic item against.
type promptContext struct {
	SourceText string                `json:"source_text"`
	S0         promptSpan            `json:"s0"`
	Sentences  []preprocess.Sentence `json:"sentences"`
}

type promptSpan struct {
	SpanID string `json:"span_id"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
}

const extractionInstructions = `You are a formalization engine for mathematical problem statements.
Convert the problem below into an MVIR JSON document.

Output MUST be valid JSON only (no markdown, no prose).
DO NOT invent meaning. Every entity, assumption, goal, and concept must cite
trace span ids from the span table below, and span "s0" must cover the whole
source text.

The document shape is:
{"meta": {"version": "0.1", "id": "...", "generator": "..."},
 "source": {"text": "..."},
 "entities": [{"id", "kind", "type", "properties", "trace"}],
 "assumptions": [{"expr", "kind", "trace"}],
 "goal": {"kind", "expr", "target", "trace"},
 "concepts": [{"id", "role", "trace"}],
 "warnings": [],
 "trace": [{"span_id", "start", "end", "text"}]}

Expression nodes use a "node" tag: Symbol{id}, Number{value}, Bool{value},
Add{args}, Mul{args}, Div{num,den}, Pow{base,exp}, Neg{arg},
Eq|Neq|Lt|Le|Gt|Ge|Divides{lhs,rhs}, Sum{var,from,to,body}, Call{fn,args}.
Every listed field is required. If you cannot fill a field from the source
text, drop the containing assumption instead of emitting a partial node.`

// BuildPrompt assembles the extraction prompt for one problem. The
// PROBLEM_ID marker makes prompts self-identifying in logs, caches, and
// per-problem mock response tables.
func BuildPrompt(pre *preprocess.Result, problemID string) string {
	ctx := promptContext{
		SourceText: pre.Text,
		S0: promptSpan{
			SpanID: "s0",
			Start:  0,
			End:    len(pre.Text),
			Text:   pre.Text,
		},
		Sentences: pre.Sentences,
	}
	ctxJSON, err := json.Marshal(ctx)
	if err != nil {
		// Only non-serializable values can fail here; promptContext has none.
		panic(fmt.Sprintf("extract: marshal prompt context: %v", err))
	}

	var b strings.Builder
	b.WriteString(extractionInstructions)
	b.WriteString("\n\nPROBLEM_ID=")
	b.WriteString(problemID)
	b.WriteString("\n\nCONTEXT:\n")
	b.Write(ctxJSON)
	b.WriteString("\n")
	return b.String()
}

// repairErrorLines is how much of the validation error the repair prompt
// embeds.
const repairErrorLines = 15

// BuildRepairPrompt assembles the one-shot corrective prompt sent after a
// schema validation failure. It embeds the previous output, a bounded slice
// of the validation error, and the full closed-field constraint tables so
// the model has everything needed to emit a corrected document. No code
// fences anywhere: the reply must be bare JSON.
func BuildRepairPrompt(problemID string, validationErr error, previousOutput string) string {
	errText := validationErr.Error()
	lines := strings.Split(errText, "\n")
	if len(lines) > repairErrorLines {
		lines = lines[:repairErrorLines]
	}

	var b strings.Builder
	b.WriteString("You output JSON but it failed MVIR validation.\n")
	b.WriteString("PROBLEM_ID=")
	b.WriteString(problemID)
	b.WriteString("\n\nValidation errors (truncated):\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nEnum constraints:\n")
	b.WriteString(`Assumption.kind MUST be exactly one of: ["given","derived","wlog"]` + "\n")
	b.WriteString(`Goal.kind MUST be exactly one of: ["prove","find","compute","maximize","minimize","exists","counterexample"]` + "\n")
	b.WriteString(`Concept.role MUST be exactly one of: ["domain","pattern","candidate_tool","definition","representation_hint"]` + "\n")
	b.WriteString(`Entity.kind MUST be exactly one of: ["variable","constant","function","set","sequence","point","vector","object"]` + "\n")
	b.WriteString("Shorthand: " +
		`Assumption.kind in {"given","derived","wlog"}; ` +
		`Goal.kind in {"prove","find","compute","maximize","minimize","exists","counterexample"}; ` +
		`Concept.role in {"domain","pattern","candidate_tool","definition","representation_hint"}.` + "\n")
	b.WriteString("\nRequired fields:\n")
	b.WriteString("Entity requires: id, kind, type\n")
	b.WriteString("Assumption requires: expr, kind\n")
	b.WriteString("Goal requires: kind, expr\n")
	b.WriteString(`If goal.kind is "find", goal.target is required.` + "\n")
	b.WriteString(`If you cannot produce a target, do NOT keep kind="find": downgrade the kind and append a warning with "code": "goal_kind_downgraded" and "details": {"old_kind": "find", "reason": "..."}.` + "\n")
	b.WriteString("Concept requires: id, role\n")
	b.WriteString("Warning requires: code, message\n")
	b.WriteString("MVIR.trace must be non-empty\n")
	b.WriteString("\nAST node constraints:\n")
	b.WriteString(`Symbol must be {"node":"Symbol","id":"x"} not name` + "\n")
	b.WriteString("Number requires value; Bool requires value.\n")
	b.WriteString("Add/Mul require args with at least one element.\n")
	b.WriteString("Gt/Ge/etc must use lhs/rhs (args only allowed in input but output must be lhs/rhs)\n")
	b.WriteString("Div must be num/den. Pow must be base/exp. Neg requires arg.\n")
	b.WriteString("Sum requires var, from, to, body. Call requires fn, args.\n")
	b.WriteString("Example nodes:\n")
	b.WriteString(`{"node":"Gt","lhs":{"node":"Symbol","id":"x"},"rhs":{"node":"Number","value":0}}` + "\n")
	b.WriteString(`{"node":"Pow","base":{"node":"Symbol","id":"x"},"exp":{"node":"Number","value":2}}` + "\n")
	b.WriteString("Drop incomplete assumptions instead of padding fields with null.\n")
	b.WriteString("\nRules:\n")
	b.WriteString("Do not add fields not in the previous JSON unless required by schema.\n")
	b.WriteString("Do NOT change trace spans or span_ids; keep them identical.\n")
	b.WriteString("Do not change trace spans; keep trace identical.\n")
	b.WriteString("All trace references must be existing span_ids.\n")
	b.WriteString("\nPrevious output:\n")
	b.WriteString(previousOutput)
	b.WriteString("\n\nReturn corrected JSON only.")
	return b.String()
}
