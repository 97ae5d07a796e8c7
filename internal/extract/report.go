package extract

import (
	"errors"
	"fmt"

	"mvir/internal/llm"
	"mvir/internal/schema"
)

// FailureKind classifies a terminal pipeline failure.
type FailureKind string

const (
	FailJSONParse        FailureKind = "json_parse"
	FailSchemaValidation FailureKind = "schema_validation"
	FailGrounding        FailureKind = "grounding_contract"
	FailProvider         FailureKind = "provider"
	FailUnknown          FailureKind = "unknown"
)

// maxClassifiedMessage caps classified messages for batch reports.
const maxClassifiedMessage = 240

// PipelineError is the typed terminal error raised at the orchestrator
// boundary. The kind is assigned where the failure originates, so callers
// never have to reconstruct it from message text.
type PipelineError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	return e.Message
}

func (e *PipelineError) Unwrap() error { return e.Err }

func pipelineErr(kind FailureKind, cause error, format string, args ...any) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// Classify maps any error from the formalization pipeline to a failure kind
// and a bounded human-readable message.
func Classify(err error) (FailureKind, string) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, truncateMessage(pe.Message)
	}
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		return FailProvider, truncateMessage(provErr.Message)
	}
	var valErr *schema.ValidationError
	if errors.As(err, &valErr) {
		return FailSchemaValidation, truncateMessage(valErr.Error())
	}
	return FailUnknown, truncateMessage(err.Error())
}

func truncateMessage(msg string) string {
	if len(msg) <= maxClassifiedMessage {
		return msg
	}
	return msg[:maxClassifiedMessage] + "..."
}
