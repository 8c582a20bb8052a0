package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/observability"
	"github.com/jonathan/ai-visibility/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run a visibility test and print the report",
	Long: `Generates customer questions for the configured business, asks each
provider, and aggregates the answers into a visibility report.

With BACKEND_URL set the run is delegated to the backend and its results
are printed as JSON.`,
	RunE: runTestCmd,
}

var (
	runProviders  []string
	runQueryTypes []string
	runConsumer   int
	runBusiness   int
	runQueries    string
	runWorkerMode string
	runVerbose    bool
)

func init() {
	runCommand.Flags().StringSliceVarP(&runProviders, "providers", "p", types.KnownProviders, "Providers to test")
	runCommand.Flags().StringSliceVarP(&runQueryTypes, "query-types", "q", []string{types.QueryTypeConsumer, types.QueryTypeBusiness}, "Query types to generate")
	runCommand.Flags().IntVar(&runConsumer, "consumer", 0, "Consumer questions per provider (defaults to the business config)")
	runCommand.Flags().IntVar(&runBusiness, "business", 0, "Business questions per provider (defaults to the business config)")
	runCommand.Flags().StringVar(&runQueries, "custom-queries", "", "JSON file with {\"consumer\": [...], \"business\": [...]} replacing generated questions")
	runCommand.Flags().StringVar(&runWorkerMode, "worker", "", "Worker mode: exec or llm (defaults to WORKER_MODE)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print progress updates")

	rootCmd.AddCommand(runCommand)
}

func runTestCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := loadSettings(func(s *config.Settings) {
		if runWorkerMode != "" {
			s.WorkerMode = runWorkerMode
		}
	})
	if err != nil {
		return err
	}

	req, err := buildRunRequest(settings)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, settings)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)

	if a.runs.RemoteMode() {
		results, err := a.runs.RunRemote(ctx, req)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	job, err := a.runs.Submit(ctx, req)
	if err != nil {
		return err
	}
	updates, err := a.runs.Watch(ctx, job.ID)
	if err != nil {
		return err
	}
	for update := range updates {
		if runVerbose {
			_, _ = fmt.Fprintf(out, "[%3d%%] %s\n", update.Progress, update.Message)
		}
		job = &update
	}
	a.runs.Wait()

	if final, err := a.runs.Status(ctx, job.ID); err == nil {
		job = final
	}
	printer.PrintJob(job)
	if job.Status == types.JobFailed {
		return fmt.Errorf("test run failed: %s", job.Error)
	}

	reports, err := a.reports.List(ctx)
	if err != nil {
		return err
	}
	for i := range reports {
		if job.RunID != "" && reports[i].RunID == job.RunID {
			printer.PrintReport(&reports[i])
			return nil
		}
	}
	if len(reports) > 0 {
		printer.PrintReport(&reports[0])
	}
	return nil
}

// buildRunRequest fills unset counts from the business config and loads
// custom questions.
func buildRunRequest(settings config.Settings) (*types.TestRunRequest, error) {
	req := &types.TestRunRequest{
		Providers:       runProviders,
		QueryTypes:      runQueryTypes,
		ConsumerQueries: runConsumer,
		BusinessQueries: runBusiness,
	}

	if req.ConsumerQueries == 0 || req.BusinessQueries == 0 {
		biz, err := config.NewBusinessStore(settings.BusinessConfig).Load()
		if err != nil {
			return nil, err
		}
		if req.ConsumerQueries == 0 {
			req.ConsumerQueries = biz.Queries.Consumer
		}
		if req.BusinessQueries == 0 {
			req.BusinessQueries = biz.Queries.Business
		}
	}

	if runQueries != "" {
		data, err := os.ReadFile(runQueries)
		if err != nil {
			return nil, fmt.Errorf("failed to read custom queries: %w", err)
		}
		var custom types.CustomQueries
		if err := json.Unmarshal(data, &custom); err != nil {
			return nil, fmt.Errorf("failed to parse custom queries: %w", err)
		}
		req.CustomQueries = &custom
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
