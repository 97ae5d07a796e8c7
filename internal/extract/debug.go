package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"mvir/internal/preprocess"
)

// debugBundle collects everything needed to reproduce a failed formalization
// offline. Writing it is best-effort: bundle errors are logged and swallowed
// so they can never mask the primary pipeline error.
type debugBundle struct {
	dir       string
	problemID string
	source    string
	pre       *preprocess.Result
	prompt    string
	rawOutput string
}

func (b *debugBundle) write(kind FailureKind, errMsg string, logger *zap.Logger) {
	if b.dir == "" {
		return
	}
	bundleDir := filepath.Join(b.dir, b.problemID)
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		logger.Warn("debug bundle dir create failed", zap.String("dir", bundleDir), zap.Error(err))
		return
	}

	writeFile := func(name, content string) {
		path := filepath.Join(bundleDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			logger.Warn("debug bundle write failed", zap.String("path", path), zap.Error(err))
		}
	}

	writeFile("source.txt", b.source)
	if b.pre != nil {
		if data, err := json.MarshalIndent(b.pre, "", "  "); err == nil {
			writeFile("preprocess.json", string(data))
		} else {
			logger.Warn("debug bundle preprocess encode failed", zap.Error(err))
		}
	}
	if b.prompt != "" {
		writeFile("prompt.txt", b.prompt)
	}
	writeFile("raw_output.txt", b.rawOutput)
	writeFile("error.txt", fmt.Sprintf("kind: %s\n%s\n", kind, errMsg))
}
