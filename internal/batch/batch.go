// Package batch formalizes a directory of problem statements with a bounded
// worker pool and a per-kind failure report.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mvir/internal/extract"
	"mvir/internal/grounding"
	"mvir/internal/llm"
	"mvir/internal/render"
)

// errFailFast cancels the worker group after the first failure.
var errFailFast = errors.New("batch: fail-fast")

// Failure describes one problem that did not produce a valid document.
type Failure struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	DebugPath string `json:"debug_path,omitempty"`
}

// Report aggregates one directory run. Items appear in problem-id order
// regardless of worker completion order.
type Report struct {
	RunID  string    `json:"run_id"`
	OK     []string  `json:"ok"`
	Failed []Failure `json:"failed"`
}

// FailureKinds counts failures per classification kind.
func (r *Report) FailureKinds() map[string]int {
	out := make(map[string]int)
	for _, f := range r.Failed {
		out[f.Kind]++
	}
	return out
}

// Summary renders the one-line run outcome plus the per-kind breakdown.
func (r *Report) Summary(total int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "total=%d ok=%d failed=%d\n", total, len(r.OK), len(r.Failed))
	kinds := r.FailureKinds()
	if len(kinds) == 0 {
		sb.WriteString("top failure kinds: none\n")
		return sb.String()
	}
	type kindCount struct {
		kind  string
		count int
	}
	ordered := make([]kindCount, 0, len(kinds))
	for kind, count := range kinds {
		ordered = append(ordered, kindCount{kind, count})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].kind < ordered[j].kind
	})
	sb.WriteString("top failure kinds:\n")
	for _, kc := range ordered {
		fmt.Fprintf(&sb, "- %s: %d\n", kc.kind, kc.count)
	}
	return sb.String()
}

// WriteJSON persists the report, creating parent directories as needed.
func (r *Report) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("batch: report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("batch: write report: %w", err)
	}
	return nil
}

// Runner formalizes every .txt file under an input directory.
type Runner struct {
	Provider llm.Provider
	Options  extract.Options
	OutDir   string
	// Workers bounds concurrent formalizations; 0 means serial.
	Workers int
	// FailFast stops scheduling new work after the first failure.
	FailFast bool
	Logger   *zap.Logger
}

// Run formalizes all problems found under inputDir, writing one JSON
// document per success into OutDir. Per-item failures are isolated into the
// report; the returned error is reserved for setup problems and context
// cancellation.
func (r *Runner) Run(ctx context.Context, inputDir string) (*Report, int, error) {
	runID := uuid.NewString()
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run_id", runID))

	files, err := listProblems(inputDir)
	if err != nil {
		return nil, 0, err
	}
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return nil, 0, fmt.Errorf("batch: out dir: %w", err)
	}

	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make(map[string]itemOutcome, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range files {
		g.Go(func() error {
			problemID := strings.TrimSuffix(filepath.Base(path), ".txt")
			out := r.runOne(gctx, problemID, path, logger)
			mu.Lock()
			results[problemID] = out
			mu.Unlock()
			if !out.ok && r.FailFast {
				return errFailFast
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, errFailFast) {
		return nil, 0, err
	}

	report := &Report{RunID: runID, OK: []string{}, Failed: []Failure{}}
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out := results[id]
		if out.ok {
			report.OK = append(report.OK, id)
		} else {
			report.Failed = append(report.Failed, out.failure)
		}
	}
	return report, len(files), nil
}

type itemOutcome struct {
	ok      bool
	failure Failure
}

func (r *Runner) runOne(ctx context.Context, problemID, path string, logger *zap.Logger) (out itemOutcome) {
	fail := func(kind extract.FailureKind, message string) {
		out.failure = Failure{ID: problemID, Kind: string(kind), Message: message}
		if r.Options.DebugDir != "" {
			out.failure.DebugPath = filepath.Join(r.Options.DebugDir, problemID)
		}
	}

	text, err := os.ReadFile(path)
	if err != nil {
		fail(extract.FailUnknown, err.Error())
		return out
	}

	doc, err := extract.Formalize(ctx, string(text), r.Provider, problemID, r.Options)
	if err != nil {
		kind, message := extract.Classify(err)
		logger.Error("formalize failed",
			zap.String("problem_id", problemID),
			zap.String("kind", string(kind)),
			zap.String("message", message))
		fail(kind, message)
		return out
	}

	data, err := render.RenderJSON(doc)
	if err != nil {
		fail(extract.FailUnknown, err.Error())
		return out
	}
	outPath := filepath.Join(r.OutDir, problemID+".json")
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		fail(extract.FailUnknown, err.Error())
		return out
	}

	// Lenient runs treat the grounding check as report-only: the document
	// is already written, so violations are logged without failing the item.
	if !r.Options.Strict && !r.Options.Degrade {
		if violations := grounding.Check(doc); len(violations) > 0 {
			logger.Warn("grounding violations",
				zap.String("problem_id", problemID),
				zap.Strings("violations", violations))
		}
	}

	out.ok = true
	return out
}

func listProblems(inputDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".txt") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch: scan %s: %w", inputDir, err)
	}
	sort.Strings(files)
	return files, nil
}
