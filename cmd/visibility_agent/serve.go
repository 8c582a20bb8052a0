package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/server"
	"github.com/jonathan/ai-visibility/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes REST endpoints for test runs, reports,
usage limits and deep-dive requests.

Runs execute locally unless BACKEND_URL is set. Authentication is enabled
when JWT_SECRET is set; the deep-dive admin portal also needs
ADMIN_PASSWORD_HASH.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT or 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	settings, err := loadSettings(func(s *config.Settings) {
		if servePort != 0 {
			s.Port = servePort
		}
	})
	if err != nil {
		return err
	}

	a, err := newApp(context.Background(), settings)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	deps := server.Deps{
		Runs:      a.runs,
		Reports:   a.reports,
		Resolver:  a.resolver,
		Business:  a.business,
		DeepDives: a.deepDives,
		Usage:     a.usage,
		Admin:     config.NewAdminConfig(),
		RateLimit: ratelimit.LoadConfig(),
	}

	jwtConfig, err := config.NewJWTConfig()
	switch {
	case errors.Is(err, config.ErrAuthDisabled):
		log.Printf("[serve] %v", err)
	case err != nil:
		return err
	default:
		deps.JWT = server.NewJWTService(jwtConfig)
	}

	passwords, err := config.NewPasswordConfig()
	if err != nil {
		return err
	}
	deps.Passwords = passwords

	srv, err := server.New(server.Config{Port: settings.Port, BackendURL: settings.BackendURL}, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}
