package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/ai-visibility/internal/observability"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List, show, export and delete test run reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			reports, err := a.reports.List(ctx)
			if err != nil {
				return err
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintReportList(reports)
			return nil
		})
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show the unified report of one test run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			r, err := a.reports.Get(ctx, args[0])
			if err != nil {
				return err
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintReport(r)
			return nil
		})
	},
}

var (
	exportFormat string
	exportOut    string
)

var reportsExportCmd = &cobra.Command{
	Use:   "export <report-id>",
	Short: "Export every provider's responses as CSV or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			d, err := a.reports.Export(ctx, args[0], exportFormat)
			if err != nil {
				return err
			}
			path := exportOut
			if path == "" {
				path = d.Filename
			}
			if err := os.WriteFile(path, d.Body, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, len(d.Body))
			return nil
		})
	},
}

var reportsDeleteCmd = &cobra.Command{
	Use:   "delete <report-id>",
	Short: "Delete the files of a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if a.runs.RemoteMode() {
				if err := a.runs.Remote().Backend().DeleteReport(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s on backend\n", args[0])
				return nil
			}
			files, err := a.resolver.DeleteReport(ctx, args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d file(s):\n", len(files))
			for _, f := range files {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", f)
			}
			return nil
		})
	},
}

func init() {
	reportsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Export format: csv or json")
	reportsExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (defaults to the export file name)")

	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd, reportsExportCmd, reportsDeleteCmd)
	rootCmd.AddCommand(reportsCmd)
}

// withApp loads settings, builds the app and runs fn.
func withApp(fn func(ctx context.Context, a *app) error) error {
	settings, err := loadSettings(nil)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, settings)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()
	return fn(ctx, a)
}
