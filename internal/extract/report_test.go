package extract_test

import (
	"errors"
	"strings"
	"testing"

	"mvir/internal/extract"
	"mvir/internal/llm"
	"mvir/internal/schema"
)

func TestClassify_ProviderError(t *testing.T) {
	err := &llm.ProviderError{Provider: "openai", Kind: llm.ErrRateLimit, Message: "too many requests", Retryable: true}
	kind, msg := extract.Classify(err)
	if kind != extract.FailProvider {
		t.Errorf("kind = %s, want %s", kind, extract.FailProvider)
	}
	if msg != "too many requests" {
		t.Errorf("message = %q", msg)
	}
}

func TestClassify_ValidationError(t *testing.T) {
	err := &schema.ValidationError{Problems: []string{"meta.id is required"}}
	kind, msg := extract.Classify(err)
	if kind != extract.FailSchemaValidation {
		t.Errorf("kind = %s, want %s", kind, extract.FailSchemaValidation)
	}
	if !strings.Contains(msg, "meta.id is required") {
		t.Errorf("message = %q", msg)
	}
}

func TestClassify_UnknownErrorTruncated(t *testing.T) {
	long := strings.Repeat("x", 500)
	kind, msg := extract.Classify(errors.New(long))
	if kind != extract.FailUnknown {
		t.Errorf("kind = %s, want %s", kind, extract.FailUnknown)
	}
	if len(msg) != 243 {
		t.Errorf("len(message) = %d, want 243", len(msg))
	}
	if !strings.HasSuffix(msg, "...") {
		t.Errorf("message does not end with ellipsis: %q", msg[len(msg)-10:])
	}
}

func TestClassify_WrappedPipelineError(t *testing.T) {
	base := &schema.ValidationError{Problems: []string{"trace must be non-empty"}}
	var err error = &extract.PipelineError{
		Kind:    extract.FailSchemaValidation,
		Message: "MVIR validation failed: trace must be non-empty",
		Err:     base,
	}
	kind, msg := extract.Classify(err)
	if kind != extract.FailSchemaValidation {
		t.Errorf("kind = %s, want %s", kind, extract.FailSchemaValidation)
	}
	if !strings.HasPrefix(msg, "MVIR validation failed") {
		t.Errorf("message = %q", msg)
	}
	if !errors.As(err, new(*schema.ValidationError)) {
		t.Error("PipelineError does not unwrap to its cause")
	}
}
