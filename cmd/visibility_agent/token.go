package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/server"
	"github.com/jonathan/ai-visibility/internal/subscription"
)

var (
	tokenUser  string
	tokenTier  string
	tokenAdmin bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token signed with JWT_SECRET",
	Long: `Issue a bearer token for a user on a subscription tier, or an admin token
for the deep-dive portal. Useful for local testing; production user tokens
come from the account service sharing JWT_SECRET.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		jwtConfig, err := config.NewJWTConfig()
		if err != nil {
			return err
		}
		svc := server.NewJWTService(jwtConfig)

		var token string
		if tokenAdmin {
			token, err = svc.GenerateAdminToken()
		} else {
			if tokenUser == "" {
				return fmt.Errorf("--user is required unless --admin is set")
			}
			token, err = svc.GenerateToken(tokenUser, tokenTier)
		}
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash an admin password read from stdin for ADMIN_PASSWORD_HASH",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		passwords, err := config.NewPasswordConfig()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1024))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		pw := strings.TrimRight(string(data), "\r\n")
		if pw == "" {
			return fmt.Errorf("password is empty")
		}
		hash, err := passwords.HashPassword(pw)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "User id")
	tokenCmd.Flags().StringVarP(&tokenTier, "tier", "t", subscription.TierFree, "Subscription tier: free, pro or enterprise")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "Issue an admin token instead")

	hashPasswordCmd.SetIn(os.Stdin)
	rootCmd.AddCommand(tokenCmd, hashPasswordCmd)
}
