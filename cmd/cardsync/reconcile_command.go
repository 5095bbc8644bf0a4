package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cardsync/internal/reconcile"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var (
		channel string
		opts    reconcile.Options
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match catalog items to channel posts and update the metadata cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if channel = strings.TrimPrefix(strings.TrimSpace(channel), "@"); channel != "" {
				cfg.Timeline.Channel = channel
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			source, err := reconcile.NewTimeline(cfg, logger)
			if err != nil {
				return err
			}
			items, err := reconcile.OpenCatalog(cfg, logger)
			if err != nil {
				return fmt.Errorf("%w: open catalog: %w", reconcile.ErrSourceUnavailable, err)
			}
			defer items.Close()

			cache, err := ctx.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer cache.Close()

			runner, err := reconcile.New(cfg, reconcile.Dependencies{
				Catalog:  items,
				Timeline: source,
				Cache:    cache,
			}, logger)
			if err != nil {
				return err
			}

			report, runErr := runner.Run(cmd.Context(), opts)
			if errors.Is(runErr, reconcile.ErrRunInProgress) {
				return runErr
			}
			printReport(cmd.OutOrStdout(), report)

			switch {
			case runErr == nil:
				return nil
			case errors.Is(runErr, reconcile.ErrSourceUnavailable):
				return fmt.Errorf("nothing was written: %w", runErr)
			case report.Status == reconcile.StatusPartial:
				return fmt.Errorf("run stopped after %d committed record(s): %w", report.Written, runErr)
			default:
				return runErr
			}
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Override timeline.channel for this run")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Process at most this many catalog items")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Re-match items that already have a matched record")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Match and report without writing")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent matching workers (default from config)")
	return cmd
}

func printReport(out io.Writer, report reconcile.Report) {
	status := string(report.Status)
	if report.DryRun {
		status += " (dry run)"
	}
	fmt.Fprintf(out, "Run %s: %s\n", report.RunID, status)

	rows := [][]string{
		{"Items", strconv.Itoa(report.Items)},
		{"Messages", strconv.Itoa(report.Messages)},
		{"Matched", strconv.Itoa(report.Matched)},
		{"Provisional", strconv.Itoa(report.Provisional)},
		{"Unmatched", strconv.Itoa(report.Unmatched)},
		{"Skipped", strconv.Itoa(report.Skipped)},
		{"Failed", strconv.Itoa(report.Failed)},
		{"Written", strconv.Itoa(report.Written)},
		{"Unchanged", strconv.Itoa(report.Unchanged)},
		{"Batches", strconv.Itoa(report.Batches)},
		{"Pruned", strconv.FormatInt(report.Pruned, 10)},
	}
	if report.DryRun {
		rows = append(rows, []string{"Would write", strconv.Itoa(report.Pending)})
	}
	writeRows(out, []string{"Outcome", "Count"}, rows, []columnAlignment{alignLeft, alignRight})

	if len(report.ByStrategy) == 0 {
		return
	}
	names := make([]string, 0, len(report.ByStrategy))
	for name := range report.ByStrategy {
		names = append(names, name)
	}
	sort.Strings(names)
	strategyRows := make([][]string, 0, len(names))
	for _, name := range names {
		strategyRows = append(strategyRows, []string{name, strconv.Itoa(report.ByStrategy[name])})
	}
	writeRows(out, []string{"Strategy", "Matches"}, strategyRows, []columnAlignment{alignLeft, alignRight})
}
