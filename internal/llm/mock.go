package llm

import (
	"context"
	"regexp"
	"sync"
)

var problemIDRe = regexp.MustCompile(`PROBLEM_ID=(\S+)`)

// MockProvider is an in-memory Provider for tests and offline runs. It
// answers from a FIFO queue when one is loaded, otherwise from a per-problem
// response table keyed by the PROBLEM_ID marker embedded in the prompt.
type MockProvider struct {
	mu sync.Mutex

	// Responses maps problem ids to canned raw outputs.
	Responses map[string]string
	// Queue is consumed front-first before Responses is consulted.
	Queue []string
	// Err, when set, is returned from every Complete call.
	Err error
	// RepairCapable controls the instruction-repair capability.
	RepairCapable bool

	// Prompts records every prompt passed to Complete, in order.
	Prompts []string
}

// NewMockProvider returns a mock answering from the given per-problem
// response table. A nil table is allowed; queue responses with Enqueue.
// The mock does not opt into instruction repair unless RepairCapable is
// set, so single-response tables never trigger a surprise second call.
func NewMockProvider(responses map[string]string) *MockProvider {
	return &MockProvider{Responses: responses}
}

func (m *MockProvider) Name() string  { return "mock" }
func (m *MockProvider) Model() string { return "mock-model" }

func (m *MockProvider) SupportsInstructionRepair() bool { return m.RepairCapable }

// Enqueue appends raw outputs to the FIFO queue.
func (m *MockProvider) Enqueue(outputs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queue = append(m.Queue, outputs...)
}

// CallCount reports how many times Complete has been invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

func (m *MockProvider) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ctxError("mock", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Queue) > 0 {
		out := m.Queue[0]
		m.Queue = m.Queue[1:]
		return out, nil
	}
	if match := problemIDRe.FindStringSubmatch(prompt); match != nil {
		if out, ok := m.Responses[match[1]]; ok {
			return out, nil
		}
	}
	return "", emptyResponseError("mock")
}
