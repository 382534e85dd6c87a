package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"thumbsmith/internal/pipeline"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Run report utilities",
	}
	reportCmd.AddCommand(newReportShowCommand(ctx))
	return reportCmd
}

func newReportShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [path]",
		Short: "Show the most recent run report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				latest, err := latestReportPath(cfg.Paths.MetadataDir)
				if err != nil {
					return err
				}
				path = latest
			}

			report, err := pipeline.ReadReport(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s, %.1fs)\n", report.RunID,
				report.StartedAt.Local().Format("2006-01-02 15:04:05"), report.ElapsedSeconds)

			rows := make([][]string, 0, len(report.Groups))
			for _, group := range report.Groups {
				rows = append(rows, []string{
					group.DisplayName,
					strconv.Itoa(group.TotalEntries),
					strconv.Itoa(group.Completed),
					strconv.Itoa(group.Failed),
					yesNo(group.CatalogComplete),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Group", "Entries", "Completed", "Failed", "Catalog Complete"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "Totals: %d entries, %d completed, %d failed, %d skipped, %d duplicates\n",
				report.TotalEntries, report.Completed, report.Failed, report.Skipped, report.Duplicates)
			return nil
		},
	}
}

func latestReportPath(metadataDir string) (string, error) {
	entries, err := os.ReadDir(metadataDir)
	if err != nil {
		return "", fmt.Errorf("read metadata directory: %w", err)
	}

	var reports []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, "run-") && strings.HasSuffix(name, ".json") {
			reports = append(reports, filepath.Join(metadataDir, name))
		}
	}
	if len(reports) == 0 {
		return "", fmt.Errorf("no run reports found in %s", metadataDir)
	}

	sort.Slice(reports, func(i, j int) bool {
		return modTime(reports[i]).After(modTime(reports[j]))
	})
	return reports[0], nil
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
