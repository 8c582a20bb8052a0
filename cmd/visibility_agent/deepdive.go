package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/ai-visibility/internal/observability"
	"github.com/jonathan/ai-visibility/internal/types"
)

var deepDiveCmd = &cobra.Command{
	Use:   "deep-dive",
	Short: "Manage deep-dive analysis requests",
}

var deepDiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deep-dive requests, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			list, err := a.deepDives.List(ctx)
			if err != nil {
				return err
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintDeepDives(list)
			return nil
		})
	},
}

var deepDiveCompleteCmd = &cobra.Command{
	Use:   "complete <request-id> <results.json>",
	Short: "Attach analyst results to a request and mark it completed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read results: %w", err)
		}
		update := types.DeepDiveUpdateRequest{ID: args[0]}
		if err := json.Unmarshal(data, &update.Results); err != nil {
			return fmt.Errorf("failed to parse results: %w", err)
		}
		return withApp(func(ctx context.Context, a *app) error {
			done, err := a.deepDives.Complete(ctx, &update)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s marked %s\n", done.ID, done.Status)
			return nil
		})
	},
}

func init() {
	deepDiveCmd.AddCommand(deepDiveListCmd, deepDiveCompleteCmd)
	rootCmd.AddCommand(deepDiveCmd)
}
