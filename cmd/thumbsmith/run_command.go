package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"thumbsmith/internal/catalog"
	"thumbsmith/internal/checkpoint"
	"thumbsmith/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var clean bool
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch and transcode catalog thumbnails",
		Long: "Enumerates catalog files, downloads each entry's thumbnail with bounded\n" +
			"concurrency, transcodes to WebP, and checkpoints progress so an interrupted\n" +
			"run resumes where it left off.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			store, err := checkpoint.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enumerator := catalog.NewFileEnumerator(cfg.Paths.CatalogDir)
			coordinator := pipeline.New(cfg, store, enumerator, nil, logger)
			report, err := coordinator.Run(runCtx, pipeline.Options{Clean: clean, Force: force})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Metric", "Value"},
				[][]string{
					{"Run ID", report.RunID},
					{"Total entries", strconv.Itoa(report.TotalEntries)},
					{"Completed", strconv.Itoa(report.Completed)},
					{"Failed", strconv.Itoa(report.Failed)},
					{"Skipped", strconv.Itoa(report.Skipped)},
					{"Duplicates", strconv.Itoa(report.Duplicates)},
					{"Elapsed", fmt.Sprintf("%.1fs", report.ElapsedSeconds)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			if len(report.Failures) > 0 {
				rows := make([][]string, 0, len(report.Failures))
				for _, failure := range report.Failures {
					rows = append(rows, []string{failure.GroupKey, failure.EntityID, failure.Reason})
				}
				fmt.Fprintln(out, "Failures:")
				fmt.Fprintln(out, renderTable(
					[]string{"Group", "Entity", "Reason"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clean, "clean", false, "Discard checkpoints and artifacts before running")
	cmd.Flags().BoolVar(&force, "force", false, "Re-fetch entries even when already completed")
	return cmd
}
