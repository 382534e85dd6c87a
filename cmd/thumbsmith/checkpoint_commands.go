package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"thumbsmith/internal/checkpoint"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Checkpoint store utilities",
	}
	checkpointCmd.AddCommand(newCheckpointClearCommand(ctx))
	return checkpointCmd
}

func newCheckpointClearCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every checkpoint record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("checkpoint clear discards all progress; re-run with --yes to confirm")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d checkpoint records\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm deletion")
	return cmd
}
