package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"evenkeel/internal/deps"
)

func newDepsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tool and library-root availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			statuses = append(statuses, deps.CheckRoots(cfg)...)

			rows := make([][]string, 0, len(statuses))
			allAvailable := true
			for _, status := range statuses {
				detail := status.Detail
				if status.Available {
					detail = "ok"
				} else {
					allAvailable = false
				}
				rows = append(rows, []string{status.Name, status.Command, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Dependency", "Target", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft}))

			if !allAvailable {
				return fmt.Errorf("missing dependencies")
			}
			return nil
		},
	}
}
