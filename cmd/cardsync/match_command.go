package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cardsync/internal/catalog"
	"cardsync/internal/reconcile"
	"cardsync/internal/timeline"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "match <name...>",
		Short: "Find the channel post for a single item name",
		Args:  cobra.MinimumNArgs(1),
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
			seasons, err := cfg.SeasonDeriver()
			if err != nil {
				return err
			}

			source, err := reconcile.NewTimeline(cfg, logger)
			if err != nil {
				return err
			}
			messages, err := timeline.Fetch(cmd.Context(), source, cfg.Timeline.FetchLimit, reconcile.RetryPolicy(cfg), logger)
			if err != nil {
				return fmt.Errorf("%w: %w", reconcile.ErrSourceUnavailable, err)
			}

			engine := reconcile.NewEngine(cfg, logger)
			name := strings.Join(args, " ")
			match, err := engine.FindMatch(cmd.Context(), engine.Snapshot(messages), catalog.Item{Name: name})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !match.Found() {
				fmt.Fprintf(out, "No match for %q among %d message(s)\n", name, len(messages))
				return nil
			}
			msg := match.Message
			rows := [][]string{
				{"Strategy", match.Strategy},
				{"Score", strconv.FormatFloat(match.Score, 'f', 2, 64)},
				{"Message", strconv.FormatInt(msg.ID, 10)},
				{"Posted", msg.Timestamp.In(seasons.Location).Format(time.RFC3339)},
				{"Season", strconv.Itoa(seasons.For(msg.Timestamp))},
				{"Text", firstLine(msg.Text)},
			}
			writeRows(out, []string{"Field", "Value"}, rows, nil)
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Override timeline.channel")
	return cmd
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	runes := []rune(line)
	if len(runes) > 80 {
		return string(runes[:80]) + "…"
	}
	return line
}
