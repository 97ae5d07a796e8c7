package extract_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mvir/internal/extract"
	"mvir/internal/llm"
)

func TestFormalize_WritesDebugBundleOnFailure(t *testing.T) {
	debugDir := t.TempDir()
	mock := llm.NewMockProvider(map[string]string{"p1": "not json at all"})

	_, err := extract.Formalize(context.Background(), problemText, mock, "p1", extract.Options{DebugDir: debugDir})
	if err == nil {
		t.Fatal("Formalize succeeded, want parse failure")
	}

	bundleDir := filepath.Join(debugDir, "p1")
	read := func(name string) string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(bundleDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}

	if got := read("source.txt"); got != problemText {
		t.Errorf("source.txt = %q", got)
	}
	if got := read("prompt.txt"); !strings.Contains(got, "PROBLEM_ID=p1") {
		t.Error("prompt.txt missing the PROBLEM_ID marker")
	}
	if got := read("raw_output.txt"); got != "not json at all" {
		t.Errorf("raw_output.txt = %q", got)
	}
	errText := read("error.txt")
	if !strings.HasPrefix(errText, "kind: json_parse\n") {
		t.Errorf("error.txt = %q, want json_parse kind header", errText)
	}
	if !strings.Contains(errText, "JSON parse failed") {
		t.Errorf("error.txt missing failure message: %q", errText)
	}
	if got := read("preprocess.json"); !strings.Contains(got, `"sentences"`) {
		t.Error("preprocess.json missing sentences")
	}
}

func TestFormalize_NoDebugBundleOnSuccess(t *testing.T) {
	debugDir := t.TempDir()
	mock := llm.NewMockProvider(map[string]string{"p1": goodResponse()})

	if _, err := extract.Formalize(context.Background(), problemText, mock, "p1", extract.Options{DebugDir: debugDir}); err != nil {
		t.Fatalf("Formalize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(debugDir, "p1")); !os.IsNotExist(err) {
		t.Error("debug bundle written for a successful run")
	}
}
