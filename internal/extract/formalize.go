// Package extract runs the formalization pipeline: preprocess the problem
// text, prompt a completion provider, then parse, sanitize, repair, and
// validate the returned MVIR document. Validation failures get exactly one
// corrective re-prompt when the provider supports it, then either a
// degraded-but-valid fallback or a classified terminal error.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mvir/internal/ast"
	"mvir/internal/contract"
	"mvir/internal/grounding"
	"mvir/internal/llm"
	"mvir/internal/preprocess"
	"mvir/internal/sanitize"
	"mvir/internal/schema"
)

// DefaultMaxTokens bounds provider completions when the caller does not.
const DefaultMaxTokens = 2000

// Options controls one formalization run.
type Options struct {
	// Strict turns grounding violations into a terminal error.
	Strict bool
	// Degrade substitutes a minimal valid document when validation cannot
	// be repaired, instead of failing.
	Degrade bool
	// Temperature and MaxTokens are passed through to the provider.
	Temperature float64
	MaxTokens   int
	// Cache, when set, memoizes raw provider responses.
	Cache *ResponseCache
	// DebugDir, when set, receives a per-problem debug bundle on terminal
	// failure.
	DebugDir string
	Logger   *zap.Logger
}

// Formalize turns one problem statement into a validated MVIR document.
func Formalize(ctx context.Context, text string, provider llm.Provider, problemID string, opts Options) (*schema.Document, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("problem_id", problemID))
	if opts.MaxTokens == 0 {
		opts.MaxTokens = DefaultMaxTokens
	}

	pre := preprocess.Run(text)
	prompt := BuildPrompt(&pre, problemID)
	bundle := &debugBundle{
		dir:       opts.DebugDir,
		problemID: problemID,
		source:    text,
		pre:       &pre,
		prompt:    prompt,
	}

	raw, err := invoke(ctx, provider, prompt, opts, logger)
	if err != nil {
		kind, msg := Classify(err)
		bundle.write(kind, msg, logger)
		return nil, err
	}
	bundle.rawOutput = raw

	doc, err := runDocumentPipeline(ctx, raw, &pre, provider, problemID, opts, bundle, logger, true)
	if err != nil {
		kind, msg := Classify(err)
		bundle.write(kind, msg, logger)
		return nil, err
	}

	if violations := grounding.Check(doc); len(violations) > 0 {
		joined := strings.Join(violations, "; ")
		switch {
		case opts.Degrade:
			doc.Warnings = append(doc.Warnings, schema.Warning{
				Code:    schema.WarnGroundingDegraded,
				Message: "grounding contract violated: " + joined,
				Trace:   []string{},
			})
			logger.Warn("grounding degraded", zap.Int("violations", len(violations)))
		case opts.Strict:
			err := pipelineErr(FailGrounding, nil, "Grounding contract failed: %s", joined)
			kind, msg := Classify(err)
			bundle.write(kind, msg, logger)
			return nil, err
		default:
			logger.Warn("grounding violations (lenient mode)", zap.Strings("violations", violations))
		}
	}

	logger.Info("formalized",
		zap.Int("assumptions", len(doc.Assumptions)),
		zap.Int("entities", len(doc.Entities)),
		zap.Int("warnings", len(doc.Warnings)))
	return doc, nil
}

// invoke calls the provider, consulting the response cache first when one is
// configured. A cache hit must reproduce the provider's exact output, so the
// rest of the pipeline cannot tell the difference.
func invoke(ctx context.Context, provider llm.Provider, prompt string, opts Options, logger *zap.Logger) (string, error) {
	if opts.Cache == nil {
		return provider.Complete(ctx, prompt, opts.Temperature, opts.MaxTokens)
	}
	key := opts.Cache.Key(provider.Name(), provider.Model(), opts.Temperature, opts.MaxTokens, prompt)
	if resp, ok := opts.Cache.Get(key); ok {
		logger.Debug("response cache hit", zap.String("key", key))
		return resp, nil
	}
	resp, err := provider.Complete(ctx, prompt, opts.Temperature, opts.MaxTokens)
	if err != nil {
		return "", err
	}
	if err := opts.Cache.Set(key, resp); err != nil {
		logger.Warn("response cache write failed", zap.Error(err))
	}
	return resp, nil
}

// runDocumentPipeline takes raw provider output through parse, sanitize,
// expression repair, and validation. allowRetry permits the single
// corrective re-prompt; the recursive call always passes false.
func runDocumentPipeline(ctx context.Context, raw string, pre *preprocess.Result, provider llm.Provider, problemID string, opts Options, bundle *debugBundle, logger *zap.Logger, allowRetry bool) (*schema.Document, error) {
	payload, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	payload = sanitize.Payload(payload)
	repairPayloadExprs(payload, pre, logger)

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, pipelineErr(FailSchemaValidation, err, "MVIR validation failed: payload not serializable: %v", err)
	}
	doc, err := schema.ParseDocument(data)
	if err == nil {
		return doc, nil
	}

	if allowRetry && llm.SupportsRepair(provider) {
		logger.Info("validation failed, attempting one-shot repair re-prompt", zap.Error(err))
		repairPrompt := BuildRepairPrompt(problemID, err, raw)
		// Provider errors during the repair attempt propagate directly.
		retryRaw, provErr := provider.Complete(ctx, repairPrompt, opts.Temperature, opts.MaxTokens)
		if provErr != nil {
			return nil, provErr
		}
		bundle.rawOutput = retryRaw
		return runDocumentPipeline(ctx, retryRaw, pre, provider, problemID, opts, bundle, logger, false)
	}

	if opts.Degrade {
		logger.Warn("validation failed, degrading to minimal document", zap.Error(err))
		return degradedDocument(pre, problemID, provider.Name(), err)
	}
	return nil, pipelineErr(FailSchemaValidation, err, "MVIR validation failed: %v", err)
}

// parseResponse decodes the provider output as a JSON object, applying one
// deterministic textual repair (fence strip, outermost-brace trim) before
// giving up.
func parseResponse(raw string) (map[string]any, error) {
	if payload, ok := decodeObject(raw); ok {
		return payload, nil
	}
	if repaired := TryRepairJSONOutput(raw); repaired != "" {
		if payload, ok := decodeObject(repaired); ok {
			return payload, nil
		}
	}
	return nil, pipelineErr(FailJSONParse, nil, "JSON parse failed: output is not a JSON object")
}

func decodeObject(text string) (map[string]any, bool) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, false
	}
	if payload == nil {
		return nil, false
	}
	return payload, true
}

// TryRepairJSONOutput strips markdown code fences and trims the text to its
// outermost {...} span. It returns "" when no brace-delimited span exists.
func TryRepairJSONOutput(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

// repairPayloadExprs runs normalize, span-text repair, and the contract
// validator over every assumption expression and the goal expr/target,
// applying the drop/replace/downgrade policy and appending audit warnings
// to the payload in place.
func repairPayloadExprs(payload map[string]any, pre *preprocess.Result, logger *zap.Logger) {
	spanTexts := payloadSpanTexts(payload)
	entityIDs := payloadEntityIDs(payload)

	assumptions, _ := payload["assumptions"].([]any)
	kept := make([]any, 0, len(assumptions))
	for i, item := range assumptions {
		a, ok := item.(map[string]any)
		if !ok {
			appendWarning(payload, schema.Warning{
				Code:    schema.WarnAssumptionExprDropped,
				Message: fmt.Sprintf("assumption %d is not an object", i),
				Trace:   []string{},
			})
			continue
		}
		expr, _ := a["expr"].(map[string]any)
		spanText := firstSpanText(a, spanTexts, pre.Text)
		repaired := repairOneExpr(payload, expr, spanText, entityIDs)
		if repaired == nil {
			appendWarning(payload, schema.Warning{
				Code:    schema.WarnAssumptionExprDropped,
				Message: fmt.Sprintf("assumption %d dropped: expression unrepairable", i),
				Trace:   []string{},
				Details: map[string]any{"raw_expr": a["expr"], "reason": "incomplete_expr"},
			})
			logger.Debug("dropped assumption", zap.Int("index", i))
			continue
		}
		a["expr"] = repaired
		kept = append(kept, a)
	}
	payload["assumptions"] = kept

	goal, ok := payload["goal"].(map[string]any)
	if !ok {
		return
	}
	goalSpanText := firstSpanText(goal, spanTexts, pre.Text)

	expr, _ := goal["expr"].(map[string]any)
	repairedExpr := repairOneExpr(payload, expr, goalSpanText, entityIDs)
	if repairedExpr == nil {
		appendWarning(payload, schema.Warning{
			Code:    schema.WarnGoalExprReplaced,
			Message: "goal expression unrepairable, replaced with trivial Bool",
			Trace:   []string{},
			Details: map[string]any{"raw_expr": goal["expr"]},
		})
		goal["expr"] = map[string]any{"node": "Bool", "value": true}
		goal["kind"] = string(schema.GoalProve)
	}

	if rawTarget, present := goal["target"]; present {
		if targetMap, ok := rawTarget.(map[string]any); ok {
			repairedTarget := repairOneExpr(payload, targetMap, goalSpanText, entityIDs)
			if repairedTarget == nil {
				delete(goal, "target")
			} else {
				goal["target"] = repairedTarget
			}
		} else {
			delete(goal, "target")
		}
	}

	if kind, _ := goal["kind"].(string); kind == string(schema.GoalFind) {
		if _, has := goal["target"]; !has {
			downgraded := downgradeGoalKind(goalSpanText)
			goal["kind"] = downgraded
			appendWarning(payload, schema.Warning{
				Code:    schema.WarnGoalKindDowngraded,
				Message: fmt.Sprintf("find goal without target downgraded to %s", downgraded),
				Trace:   []string{},
				Details: map[string]any{"old_kind": string(schema.GoalFind), "reason": "target missing or unrepairable"},
			})
		}
	}
}

// repairOneExpr applies the full per-expression repair sequence. A nil
// result means the expression could not be made structurally complete.
func repairOneExpr(payload, expr map[string]any, spanText string, entityIDs []string) map[string]any {
	if expr == nil {
		return nil
	}
	normalized, notes := ast.NormalizeExpr(expr)
	for _, note := range notes {
		appendWarning(payload, schema.Warning{
			Code:    schema.WarnExprNormalizeRepair,
			Message: fmt.Sprintf("normalized %s to %s", note.From, note.To),
			Trace:   []string{},
			Details: map[string]any{"path": note.Path, "from": note.From, "to": note.To},
		})
	}
	if normalized == nil {
		return nil
	}
	patched := repairExprFromSpan(normalized, spanText, entityIDs)
	final, warnings := contract.ValidateExpr(patched, true)
	for _, w := range warnings {
		appendWarning(payload, w)
	}
	return final
}

// downgradeGoalKind picks the replacement kind for a target-less find goal
// from cue words in the goal's trace text.
func downgradeGoalKind(spanText string) string {
	lower := strings.ToLower(spanText)
	switch {
	case strings.Contains(lower, "show") || strings.Contains(lower, "prove"):
		return string(schema.GoalProve)
	case strings.Contains(lower, "there exists"):
		return string(schema.GoalExists)
	default:
		return string(schema.GoalCompute)
	}
}

// degradedDocument synthesizes the minimal valid fallback: empty semantic
// sections, a trivially provable goal, and a recovery warning carrying the
// validation failure summary.
func degradedDocument(pre *preprocess.Result, problemID, generator string, cause error) (*schema.Document, error) {
	doc := schema.Document{
		Meta: schema.Meta{
			Version:   schema.Version,
			ID:        problemID,
			Generator: generator,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
		Source:      schema.Source{Text: pre.Text},
		Entities:    []schema.Entity{},
		Assumptions: []schema.Assumption{},
		Goal: schema.Goal{
			Kind:  schema.GoalProve,
			Expr:  ast.Bool{Value: true},
			Trace: []string{schema.FullTextSpanID},
		},
		Concepts: []schema.Concept{},
		Warnings: []schema.Warning{{
			Code:    schema.WarnRecovered,
			Message: truncateMessage("recovered minimal valid document after validation failure: " + cause.Error()),
			Trace:   []string{schema.FullTextSpanID},
		}},
		Trace: pre.Spans(),
	}
	return schema.NewDocument(doc)
}

func payloadSpanTexts(payload map[string]any) map[string]string {
	out := make(map[string]string)
	spans, _ := payload["trace"].([]any)
	for _, item := range spans {
		span, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := span["span_id"].(string)
		text, _ := span["text"].(string)
		if id != "" {
			out[id] = text
		}
	}
	return out
}

func payloadEntityIDs(payload map[string]any) []string {
	var out []string
	entities, _ := payload["entities"].([]any)
	for _, item := range entities {
		entity, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := entity["id"].(string); ok && id != "" {
			out = append(out, id)
		}
	}
	return out
}

// firstSpanText resolves the first trace reference of item against the
// payload's span table, falling back to the full source text.
func firstSpanText(item map[string]any, spanTexts map[string]string, fallback string) string {
	refs, _ := item["trace"].([]any)
	for _, ref := range refs {
		if id, ok := ref.(string); ok {
			if text, found := spanTexts[id]; found && text != "" {
				return text
			}
		}
	}
	return fallback
}

func appendWarning(payload map[string]any, w schema.Warning) {
	entry := map[string]any{
		"code":    w.Code,
		"message": w.Message,
		"trace":   stringsToAny(w.Trace),
	}
	if w.Details != nil {
		entry["details"] = w.Details
	}
	existing, _ := payload["warnings"].([]any)
	payload["warnings"] = append(existing, entry)
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
