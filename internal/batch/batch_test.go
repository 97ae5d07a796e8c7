package batch_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mvir/internal/batch"
	"mvir/internal/extract"
	"mvir/internal/llm"
)

const problemText = "Let x > 0. Prove x^2 >= 0."

func goodResponse(problemID string) string {
	return `{
		"meta": {"version": "0.1", "id": "` + problemID + `", "generator": "mock"},
		"source": {"text": "Let x > 0. Prove x^2 >= 0."},
		"entities": [{"id": "x", "kind": "variable", "type": "real", "properties": [], "trace": ["s1"]}],
		"assumptions": [{"expr": {"node": "Gt", "lhs": {"node": "Symbol", "id": "x"}, "rhs": {"node": "Number", "value": 0}}, "kind": "given", "trace": ["s1"]}],
		"goal": {"kind": "prove", "expr": {"node": "Ge",
			"lhs": {"node": "Pow", "base": {"node": "Symbol", "id": "x"}, "exp": {"node": "Number", "value": 2}},
			"rhs": {"node": "Number", "value": 0}}, "trace": ["s2"]},
		"concepts": [],
		"warnings": [],
		"trace": [
			{"span_id": "s0", "start": 0, "end": 26, "text": "Let x > 0. Prove x^2 >= 0."},
			{"span_id": "s1", "start": 0, "end": 10, "text": "Let x > 0."},
			{"span_id": "s2", "start": 10, "end": 26, "text": " Prove x^2 >= 0."}
		]
	}`
}

func writeProblems(t *testing.T, ids ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		if err := os.WriteFile(filepath.Join(dir, id+".txt"), []byte(problemText), 0o644); err != nil {
			t.Fatalf("write %s: %v", id, err)
		}
	}
	return dir
}

func TestRunner_MixedResults(t *testing.T) {
	inputDir := writeProblems(t, "p1", "p2")
	outDir := t.TempDir()

	mock := llm.NewMockProvider(map[string]string{
		"p1": goodResponse("p1"),
		"p2": "sorry, no JSON today",
	})
	runner := &batch.Runner{Provider: mock, OutDir: outDir}

	report, total, err := runner.Run(context.Background(), inputDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if report.RunID == "" {
		t.Error("RunID is empty")
	}
	if diff := cmp.Diff([]string{"p1"}, report.OK); diff != "" {
		t.Errorf("OK mismatch (-want +got):\n%s", diff)
	}
	if len(report.Failed) != 1 || report.Failed[0].ID != "p2" {
		t.Fatalf("Failed = %v, want one p2 failure", report.Failed)
	}
	if report.Failed[0].Kind != string(extract.FailJSONParse) {
		t.Errorf("failure kind = %q, want %q", report.Failed[0].Kind, extract.FailJSONParse)
	}

	if _, err := os.Stat(filepath.Join(outDir, "p1.json")); err != nil {
		t.Errorf("p1.json not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "p2.json")); !os.IsNotExist(err) {
		t.Error("p2.json written for a failed problem")
	}

	summary := report.Summary(total)
	if !strings.Contains(summary, "total=2 ok=1 failed=1") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, "json_parse: 1") {
		t.Errorf("summary missing kind breakdown: %q", summary)
	}
}

func TestRunner_WorkerPoolKeepsIDOrder(t *testing.T) {
	ids := []string{"p1", "p2", "p3", "p4", "p5"}
	responses := make(map[string]string, len(ids))
	for _, id := range ids {
		responses[id] = goodResponse(id)
	}
	inputDir := writeProblems(t, ids...)

	runner := &batch.Runner{
		Provider: llm.NewMockProvider(responses),
		OutDir:   t.TempDir(),
		Workers:  4,
	}
	report, total, err := runner.Run(context.Background(), inputDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if total != len(ids) {
		t.Errorf("total = %d, want %d", total, len(ids))
	}
	if diff := cmp.Diff(ids, report.OK); diff != "" {
		t.Errorf("OK order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunner_FailFastStopsWithoutError(t *testing.T) {
	inputDir := writeProblems(t, "p1", "p2", "p3")

	mock := llm.NewMockProvider(nil)
	mock.Err = &llm.ProviderError{Provider: "mock", Kind: llm.ErrAuth, Message: "no key", Retryable: false}
	runner := &batch.Runner{Provider: mock, OutDir: t.TempDir(), FailFast: true}

	report, _, err := runner.Run(context.Background(), inputDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Failed) == 0 {
		t.Fatal("no failures recorded")
	}
	if got := report.Failed[0].Kind; got != string(extract.FailProvider) {
		t.Errorf("failure kind = %q, want %q", got, extract.FailProvider)
	}
}

func TestRunner_LenientGroundingViolationStaysOK(t *testing.T) {
	inputDir := writeProblems(t, "p1")
	outDir := t.TempDir()

	broken := strings.Replace(goodResponse("p1"),
		`"end": 10, "text": "Let x > 0."`,
		`"end": 10, "text": "Let y > 0."`, 1)
	runner := &batch.Runner{
		Provider: llm.NewMockProvider(map[string]string{"p1": broken}),
		OutDir:   outDir,
	}

	report, _, err := runner.Run(context.Background(), inputDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Lenient runs are report-only for grounding: the item counts as ok
	// and the document is written.
	if len(report.Failed) != 0 {
		t.Fatalf("Failed = %v, want none", report.Failed)
	}
	if len(report.OK) != 1 || report.OK[0] != "p1" {
		t.Fatalf("OK = %v, want [p1]", report.OK)
	}
	if _, err := os.Stat(filepath.Join(outDir, "p1.json")); err != nil {
		t.Errorf("p1.json not written: %v", err)
	}
}

func TestRunner_StrictGroundingViolationFails(t *testing.T) {
	inputDir := writeProblems(t, "p1")
	outDir := t.TempDir()

	broken := strings.Replace(goodResponse("p1"),
		`"end": 10, "text": "Let x > 0."`,
		`"end": 10, "text": "Let y > 0."`, 1)
	runner := &batch.Runner{
		Provider: llm.NewMockProvider(map[string]string{"p1": broken}),
		Options:  extract.Options{Strict: true},
		OutDir:   outDir,
	}

	report, _, err := runner.Run(context.Background(), inputDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Failed) != 1 || report.Failed[0].Kind != string(extract.FailGrounding) {
		t.Fatalf("Failed = %v, want one grounding failure", report.Failed)
	}
	if _, err := os.Stat(filepath.Join(outDir, "p1.json")); err == nil {
		t.Error("p1.json written despite strict grounding failure")
	}
}

func TestRunner_DebugPathRecordedOnFailure(t *testing.T) {
	inputDir := writeProblems(t, "p1")
	debugDir := t.TempDir()

	runner := &batch.Runner{
		Provider: llm.NewMockProvider(map[string]string{"p1": "nope"}),
		Options:  extract.Options{DebugDir: debugDir},
		OutDir:   t.TempDir(),
	}
	report, _, err := runner.Run(context.Background(), inputDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Failed) != 1 {
		t.Fatalf("Failed = %v, want one failure", report.Failed)
	}
	want := filepath.Join(debugDir, "p1")
	if report.Failed[0].DebugPath != want {
		t.Errorf("DebugPath = %q, want %q", report.Failed[0].DebugPath, want)
	}
	if _, err := os.Stat(filepath.Join(want, "error.txt")); err != nil {
		t.Errorf("debug bundle not written: %v", err)
	}
}

func TestReport_WriteJSON(t *testing.T) {
	report := &batch.Report{
		OK:     []string{"p1"},
		Failed: []batch.Failure{{ID: "p2", Kind: "json_parse", Message: "JSON parse failed"}},
	}
	path := filepath.Join(t.TempDir(), "sub", "report.json")
	if err := report.WriteJSON(path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{`"p1"`, `"json_parse"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("report missing %q:\n%s", want, data)
		}
	}
}

func TestReport_SummaryWithoutFailures(t *testing.T) {
	report := &batch.Report{OK: []string{"p1", "p2"}}
	summary := report.Summary(2)
	if !strings.Contains(summary, "total=2 ok=2 failed=0") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, "top failure kinds: none") {
		t.Errorf("summary = %q", summary)
	}
}
