// Package main provides the entry point for the AI visibility API server and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var settingsPath string

var rootCmd = &cobra.Command{
	Use:   "visibility_agent",
	Short: "AI Visibility test runner and HTTP API server",
	Long: `Measures how often AI assistants recommend a business. Test runs ask each
provider a set of customer questions, record the answers and aggregate
per-provider visibility reports.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to a JSON settings file (overrides environment variables)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
