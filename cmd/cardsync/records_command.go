package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cardsync/internal/matchcache"
)

type recordView struct {
	ItemID     int64   `json:"item_id"`
	Status     string  `json:"status"`
	MessageID  *int64  `json:"message_id"`
	UploadedAt *string `json:"uploaded_at"`
	Season     *int    `json:"season"`
}

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	var (
		statusFilter string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List cached item metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			var want matchcache.Status
			if value := strings.TrimSpace(statusFilter); value != "" {
				parsed, err := matchcache.ParseStatus(strings.ToLower(value))
				if err != nil {
					return err
				}
				want = parsed
			}

			cache, err := ctx.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer cache.Close()

			records, err := cache.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list records: %w", err)
			}

			views := make([]recordView, 0, len(records))
			for _, rec := range records {
				if want != "" && rec.Status != want {
					continue
				}
				views = append(views, newRecordView(rec))
			}

			if asJSON {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No records")
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{
					strconv.FormatInt(v.ItemID, 10),
					v.Status,
					optionalInt64(v.MessageID),
					optionalString(v.UploadedAt),
					optionalInt(v.Season),
				})
			}
			writeRows(out,
				[]string{"Item", "Status", "Message", "Uploaded", "Season"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight},
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show records with this status (matched, unmatched, provisional)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRecordView(rec matchcache.Record) recordView {
	view := recordView{
		ItemID:    rec.ItemID,
		Status:    string(rec.Status),
		MessageID: rec.MessageID,
		Season:    rec.Season,
	}
	if rec.UploadedAt != nil {
		formatted := rec.UploadedAt.UTC().Format(time.RFC3339)
		view.UploadedAt = &formatted
	}
	return view
}

func optionalInt64(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optionalString(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}
