// Package main implements the kyt CLI for running transaction batches
// through the KYT analysis pipeline and verifying saved reports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
	"github.com/davidleathers/kyt-auditor/internal/infrastructure/config"
	"github.com/davidleathers/kyt-auditor/internal/infrastructure/telemetry"
	"github.com/davidleathers/kyt-auditor/internal/metrics"
	"github.com/davidleathers/kyt-auditor/internal/service/pipeline"
	"github.com/davidleathers/kyt-auditor/internal/service/providers"
	"github.com/davidleathers/kyt-auditor/internal/service/report"
)

// version information
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "kyt",
		Short: "Know-your-transaction analysis and audit reporting",
		Long: `kyt scores transaction batches for money-laundering risk, screens parties
against sanctions lists, audits the resulting decisions for bias and emits a
hash-verifiable audit report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newVerifyCmd())
	return root
}

type analyzeOptions struct {
	input       string
	output      string
	configPath  string
	metricsAddr string
	narrative   bool
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a transaction batch through the pipeline",
		Long: `Run a JSON array of transactions through the forensic, compliance,
bias and report stages and print the final report as JSON.

Examples:
  # Analyze a batch file
  kyt analyze --input batch.json

  # Read the batch from stdin and expose Prometheus metrics while running
  cat batch.json | kyt analyze --input - --metrics-addr :9102`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "transaction batch file, - for stdin")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to configuration file")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.narrative, "narrative", false, "print a plain-text summary to stderr")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	ctx := cmd.Context()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	zapLogger, err := telemetry.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	provider, err := telemetry.InitializeOpenTelemetry(ctx, telemetry.ConfigFromSettings(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to shutdown telemetry", "error", err)
		}
	}()

	registry, err := metrics.NewRegistry(provider.MeterProvider, "")
	if err != nil {
		return fmt.Errorf("failed to create metrics registry: %w", err)
	}

	addr := opts.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		stop := startMetricsServer(addr, logger)
		defer stop()
	}

	batch, err := readBatch(cmd.InOrStdin(), opts.input)
	if err != nil {
		return err
	}

	narrator, err := providers.NewTemplateNarrator("")
	if err != nil {
		return err
	}

	orchestrator, cleanup, err := pipeline.NewFactory(zapLogger, cfg).CreateOrchestrator(pipeline.Options{
		Tracer:   provider.TracerProvider.Tracer("github.com/davidleathers/kyt-auditor"),
		Metrics:  registry,
		Observer: pipeline.NewMultiObserver(prometheusObserver{}, pipeline.NewLogObserver(zapLogger)),
		Narrator: narrator,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warn("Failed to release providers", "error", err)
		}
	}()

	outcome, err := orchestrator.Analyze(ctx, batch)
	if err != nil {
		logger.ErrorContext(ctx, "Analysis failed", "error", err)
		return err
	}

	logger.InfoContext(ctx, "Analysis completed",
		"analysis_id", outcome.Report.AnalysisID,
		"overall_risk", outcome.Report.Summary.OverallRiskLevel,
		"hash", outcome.Report.HashValue)

	if err := writeReport(cmd.OutOrStdout(), opts.output, outcome.Report); err != nil {
		return err
	}
	if opts.narrative {
		fmt.Fprintln(cmd.ErrOrStderr(), outcome.Narrative)
	}
	return nil
}

func newVerifyCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the hash and audit trail of a saved report",
		Long: `Recompute the SHA-256 hash of a saved report and check its audit trail chain.

Examples:
  kyt verify --report report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			var r kyt.FinalReport
			if err := json.Unmarshal(data, &r); err != nil {
				return fmt.Errorf("failed to parse report: %w", err)
			}
			if err := report.Verify(r); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK %s %s %s\n", r.AnalysisID, r.HashAlgorithm, r.HashValue)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "report", "r", "-", "report file, - for stdin")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func readBatch(stdin io.Reader, path string) ([]kyt.Transaction, error) {
	data, err := readInput(stdin, path)
	if err != nil {
		return nil, err
	}

	var batch []kyt.Transaction
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse transaction batch: %w", err)
	}
	return batch, nil
}

func writeReport(stdout io.Writer, path string, r kyt.FinalReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
