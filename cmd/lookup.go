package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"techlookup/internal/domains"
	"techlookup/internal/output"
	"techlookup/internal/prompt"
	"techlookup/internal/runner"
	"techlookup/pkg/logger"
	"techlookup/pkg/metrics"
	"techlookup/pkg/serrors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultDomainFile = "domains.txt"

// lookupCommand constructs the root command: it looks up every domain in the
// input file and writes the results.
func lookupCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "techlookup <key>",
		Short: "Finds out the technology stack of websites using the Wappalyzer API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			outputPath, _ := cmd.Flags().GetString("output")
			metricsFile, _ := cmd.Flags().GetString("metrics-file")

			return c.lookup(cmd.Context(), cmd, args[0], file, outputPath, metricsFile)
		},
	}

	cmd.Flags().StringP("file", "f", defaultDomainFile, "File with the list of domains")
	cmd.Flags().StringP("output", "o", "", "Existing file to append the JSON results to")
	cmd.Flags().String("metrics-file", "", "Write run metrics in Prometheus text format to this file")

	return cmd
}

func (c *cli) lookup(ctx context.Context, cmd *cobra.Command, key, file, outputPath, metricsFile string) error {
	if !cmd.Flags().Changed("file") {
		logger.Info(ctx, "no input file given, using "+defaultDomainFile+" as default input file")
	}

	list, err := domains.Load(c.fs, file, domains.Options{SkipBlank: true})
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			logger.Error(ctx, "missing domain file, please make sure the file exists", zap.String("file", file))
			_ = cmd.Help()
		}

		return err
	}

	client := c.client()
	balance, err := client.Balance(ctx, key)
	if err != nil {
		return fmt.Errorf("could not validate API key: %w", err)
	}
	logger.Info(ctx, "API key validated", zap.Int("credits", balance.Credits), zap.Int("domains", len(list)))

	m := metrics.New()
	m.SetCredits(balance.Credits)
	defer func() {
		if metricsFile == "" {
			return
		}
		if err := m.WriteFile(metricsFile); err != nil {
			logger.Warn(ctx, "could not write metrics", zap.Error(err))
		}
	}()

	term := prompt.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout())

	var limiter *rate.Limiter
	if rps := c.cfg.Runner.RequestsPerSecond; rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	r := runner.New(runner.Deps{
		Client:   client,
		Prompter: term,
		Metrics:  m,
	}, runner.Options{
		BatchSize:  c.cfg.Runner.BatchSize,
		RetryDelay: c.cfg.Runner.RetryDelay,
		Limiter:    limiter,
	})

	// an interrupt ends the batch loop; a second one during output kills the process
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	report, runErr := r.Run(runCtx, key, balance.Credits, list)
	stop()
	if errors.Is(runErr, serrors.ErrBadRequest) {
		// the service rejected the list; nothing is saved
		return runErr
	}
	if runErr != nil {
		logger.Error(ctx, "lookup stopped early, saving partial results",
			zap.Int("processed", report.Processed),
			zap.Int("total", len(list)),
			zap.Error(runErr))
	}

	w := output.New(c.fs, term, m, output.Options{
		CombinedPath: outputPath,
		Dir:          c.cfg.Output.Dir,
	})
	// results already paid for are written even after an interrupt
	paths, err := w.Write(ctx, report.Results)
	if err != nil {
		return errors.Join(runErr, fmt.Errorf("could not write results: %w", err))
	}

	logger.Info(ctx, "lookup finished",
		zap.Int("processed", report.Processed),
		zap.Int("requests", report.Requests),
		zap.Int("credits", report.Credits),
		zap.Bool("aborted", report.Aborted),
		zap.Int("files", len(paths)))

	return runErr
}
