package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent export jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, repo, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer database.Close()

			jobs, err := repo.ListJobs(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No exports yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobs(jobs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of jobs to show")
	return cmd
}

func renderJobs(jobs []*history.Job) string {
	rows := make([][]string, len(jobs))
	for i, j := range jobs {
		id := j.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows[i] = []string{
			id,
			j.State,
			strconv.Itoa(j.VisibleClips),
			strconv.FormatInt(j.OutputBytes, 10),
			j.ErrorKind,
			j.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		}
	}
	return renderTable(
		[]string{"ID", "State", "Clips", "Bytes", "Error", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}
