package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"thumbsmith/internal/checkpoint"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint progress per group",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.StatsByGroup(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(stats) == 0 {
				fmt.Fprintln(out, "No checkpoints recorded yet.")
				return nil
			}

			groups := make([]string, 0, len(stats))
			for group := range stats {
				groups = append(groups, group)
			}
			sort.Strings(groups)

			totals := make(map[checkpoint.Status]int)
			rows := make([][]string, 0, len(groups)+1)
			for _, group := range groups {
				counts := stats[group]
				rows = append(rows, statusRow(group, counts))
				for status, count := range counts {
					totals[status] += count
				}
			}
			rows = append(rows, statusRow("TOTAL", totals))

			fmt.Fprintln(out, renderTable(
				[]string{"Group", "Pending", "In Progress", "Completed", "Failed"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

func statusRow(label string, counts map[checkpoint.Status]int) []string {
	return []string{
		label,
		strconv.Itoa(counts[checkpoint.StatusPending]),
		strconv.Itoa(counts[checkpoint.StatusInProgress]),
		strconv.Itoa(counts[checkpoint.StatusCompleted]),
		strconv.Itoa(counts[checkpoint.StatusFailed]),
	}
}
