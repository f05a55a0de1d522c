package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"evenkeel/internal/config"
	"evenkeel/internal/history"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int
	var forPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent normalization jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			hist, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer hist.Close()

			var entries []history.Entry
			if forPath != "" {
				expanded, err := config.ExpandPath(forPath)
				if err != nil {
					return err
				}
				entries, err = hist.ForPath(cmd.Context(), expanded, limit)
				if err != nil {
					return err
				}
			} else {
				entries, err = hist.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				gain := ""
				if entry.Outcome == "normalized" {
					gain = fmt.Sprintf("%+.1f dB", entry.GainDB)
				}
				rows = append(rows, []string{
					entry.CreatedAt.Local().Format("2006-01-02 15:04"),
					entry.Outcome,
					entry.Path,
					gain,
					entry.Encoder,
					formatJobDuration(entry.DurationMS),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"When", "Outcome", "Path", "Gain", "Encoder", "Took"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().StringVar(&forPath, "path", "", "Only show jobs for this file")
	return cmd
}

func formatJobDuration(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return (time.Duration(ms) * time.Millisecond).Round(100 * time.Millisecond).String()
}
