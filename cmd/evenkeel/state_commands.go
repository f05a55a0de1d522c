package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"evenkeel/internal/config"
	"evenkeel/internal/state"
)

func newStateCommand(cmdCtx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and edit the processed-file records",
	}

	stateCmd.AddCommand(newStateListCommand(cmdCtx))
	stateCmd.AddCommand(newStateForgetCommand(cmdCtx))
	stateCmd.AddCommand(newStateClearCommand(cmdCtx))

	return stateCmd
}

func (c *commandContext) openState() (*state.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.consoleLogger()
	if err != nil {
		return nil, err
	}
	return state.Open(cfg.Paths.StateFile, logger), nil
}

func newStateListCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List processed files",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := cmdCtx.openState()
			if err != nil {
				return err
			}

			records := st.Snapshot()
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No processed files recorded.")
				return nil
			}

			paths := make([]string, 0, len(records))
			for path := range records {
				paths = append(paths, path)
			}
			sort.Strings(paths)

			rows := make([][]string, 0, len(paths))
			for _, path := range paths {
				rec := records[path]
				rows = append(rows, []string{
					path,
					rec.Signature.String(),
					rec.ProcessedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Path", "Signature", "Processed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft}))
			fmt.Fprintf(cmd.OutOrStdout(), "%d file(s)\n", len(paths))
			return nil
		},
	}
}

func newStateForgetCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <file>...",
		Short: "Drop records so files are reprocessed on the next run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := cmdCtx.openState()
			if err != nil {
				return err
			}
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				if err := st.Forget(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", path)
			}
			return nil
		},
	}
}

func newStateClearCommand(cmdCtx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to clear all records without --yes")
			}
			st, err := cmdCtx.openState()
			if err != nil {
				return err
			}
			count := st.Len()
			if err := st.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d record(s)\n", count)
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm clearing every record")
	return cmd
}
