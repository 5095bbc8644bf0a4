package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var seasonDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "2006-01"}

func newSeasonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "season [date]",
		Short: "Show the season number for a date (default: now)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			seasons, err := cfg.SeasonDeriver()
			if err != nil {
				return err
			}

			at := time.Now()
			if len(args) == 1 {
				at, err = parseSeasonDate(args[0], seasons.Location)
				if err != nil {
					return err
				}
			}
			n := seasons.For(at)
			fmt.Fprintf(cmd.OutOrStdout(), "Season %d (starts %s, origin %s %s)\n",
				n,
				seasons.Start(n).Format("2006-01-02"),
				cfg.Season.Origin,
				cfg.Season.Timezone,
			)
			return nil
		},
	}
}

func parseSeasonDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range seasonDateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (use YYYY-MM-DD or RFC 3339)", value)
}
