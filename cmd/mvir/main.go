package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mvir/internal/batch"
	"mvir/internal/concepts"
	"mvir/internal/config"
	"mvir/internal/extract"
	"mvir/internal/grounding"
	"mvir/internal/llm"
	"mvir/internal/preprocess"
	"mvir/internal/render"
	"mvir/internal/schema"
)

func main() {
	root := &cobra.Command{
		Use:   "mvir",
		Short: "Formalize natural-language math problems into validated MVIR documents",
	}

	root.AddCommand(newFormalizeCmd())
	root.AddCommand(newFormalizeDirCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newPreprocessCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// pipelineFlags are the provider/pipeline options shared by the formalize
// commands. File settings come first; any flag the user set wins.
type pipelineFlags struct {
	configPath  string
	provider    string
	model       string
	temperature float64
	maxTokens   int
	cacheDir    string
	debugDir    string
	strict      bool
	degrade     bool
	verbose     bool
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "mvir.yaml", "settings file path")
	cmd.Flags().StringVar(&f.provider, "provider", "", "completion provider (anthropic|openai|google|mock)")
	cmd.Flags().StringVar(&f.model, "model", "", "provider model name")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "completion token limit")
	cmd.Flags().StringVar(&f.cacheDir, "cache-dir", "", "enable response cache at this directory")
	cmd.Flags().StringVar(&f.debugDir, "debug-dir", "", "write per-problem debug bundles on failure")
	cmd.Flags().BoolVar(&f.strict, "strict", true, "enforce the grounding contract as an error")
	cmd.Flags().BoolVar(&f.degrade, "degrade", false, "recover a minimal valid document instead of failing")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
}

func (f *pipelineFlags) resolve(cmd *cobra.Command) (config.Settings, error) {
	settings, err := config.Load(f.configPath)
	if err != nil {
		return settings, err
	}
	if cmd.Flags().Changed("provider") {
		settings.Provider = f.provider
	}
	if cmd.Flags().Changed("model") {
		settings.Model = f.model
	}
	if cmd.Flags().Changed("temperature") {
		settings.Temperature = f.temperature
	}
	if cmd.Flags().Changed("max-tokens") {
		settings.MaxTokens = f.maxTokens
	}
	if cmd.Flags().Changed("cache-dir") {
		settings.CacheDir = f.cacheDir
	}
	if cmd.Flags().Changed("debug-dir") {
		settings.DebugDir = f.debugDir
	}
	if cmd.Flags().Changed("strict") {
		settings.Strict = f.strict
	}
	if cmd.Flags().Changed("degrade") {
		settings.Degrade = f.degrade
	}
	return settings, nil
}

func (f *pipelineFlags) buildLogger() (*zap.Logger, error) {
	if f.verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func extractOptions(settings config.Settings, logger *zap.Logger) extract.Options {
	opts := extract.Options{
		Strict:      settings.Strict,
		Degrade:     settings.Degrade,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		DebugDir:    settings.DebugDir,
		Logger:      logger,
	}
	if settings.CacheDir != "" {
		opts.Cache = extract.NewResponseCache(settings.CacheDir)
	}
	return opts
}

func newFormalizeCmd() *cobra.Command {
	var flags pipelineFlags
	var outPath string
	var withConcepts bool

	cmd := &cobra.Command{
		Use:   "formalize <problem.txt>",
		Short: "Formalize one problem statement into an MVIR JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			logger, err := flags.buildLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			provider, err := llm.NewProvider(settings.Provider, settings.Model)
			if err != nil {
				return err
			}

			problemID := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			ctx := cmd.Context()
			doc, err := extract.Formalize(ctx, string(text), provider, problemID, extractOptions(settings, logger))
			if err != nil {
				kind, msg := extract.Classify(err)
				return fmt.Errorf("%s: %s", kind, msg)
			}
			if withConcepts {
				doc = concepts.Augment(doc)
			}

			data, err := render.RenderJSON(doc)
			if err != nil {
				return err
			}
			if outPath == "" {
				fmt.Println(string(data))
				return nil
			}
			return os.WriteFile(outPath, data, 0o644)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&withConcepts, "concepts", false, "replace concepts with deterministically extracted ones")
	return cmd
}

func newFormalizeDirCmd() *cobra.Command {
	var flags pipelineFlags
	var outDir, reportPath string
	var workers int
	var failFast bool

	cmd := &cobra.Command{
		Use:   "formalize-dir <input-dir>",
		Short: "Formalize every .txt problem under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				settings.Workers = workers
			}
			logger, err := flags.buildLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			provider, err := llm.NewProvider(settings.Provider, settings.Model)
			if err != nil {
				return err
			}

			runner := &batch.Runner{
				Provider: provider,
				Options:  extractOptions(settings, logger),
				OutDir:   outDir,
				Workers:  settings.Workers,
				FailFast: failFast,
				Logger:   logger,
			}
			report, total, err := runner.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Print(report.Summary(total))
			if reportPath != "" {
				if err := report.WriteJSON(reportPath); err != nil {
					return err
				}
			}
			if failFast && len(report.Failed) > 0 {
				return fmt.Errorf("stopped after failure: %s", report.Failed[0].ID)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for MVIR JSON output (required)")
	cmd.Flags().StringVar(&reportPath, "report", "", "optional JSON report output path")
	cmd.Flags().IntVar(&workers, "workers", 1, "concurrent formalizations")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop after first failure and return non-zero")
	cobra.CheckErr(cmd.MarkFlagRequired("out-dir"))
	return cmd
}

func newValidateCmd() *cobra.Command {
	var checkGrounding bool

	cmd := &cobra.Command{
		Use:   "validate <mvir.json>",
		Short: "Validate an MVIR document against schema and grounding invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := schema.ParseDocument(data)
			if err != nil {
				return err
			}
			if checkGrounding {
				if violations := grounding.Check(doc); len(violations) > 0 {
					return fmt.Errorf("grounding contract failed:\n  %s", strings.Join(violations, "\n  "))
				}
			}
			fmt.Printf("OK %s\n", doc.Meta.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkGrounding, "grounding", true, "also check the grounding contract")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "render <mvir.json>",
		Short: "Render an MVIR document as Markdown or canonical JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := schema.ParseDocument(data)
			if err != nil {
				return err
			}
			switch format {
			case "md", "markdown":
				fmt.Print(render.RenderMarkdown(doc))
			case "json":
				out, err := render.RenderJSON(doc)
				if err != nil {
					return err
				}
				fmt.Println(string(out))
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format (md|json)")
	return cmd
}

func newPreprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess <problem.txt>",
		Short: "Print the span table and candidates for a problem statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			result := preprocess.Run(string(text))
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
