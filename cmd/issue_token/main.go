package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"realtime-calculator/internal/auth"
	"realtime-calculator/internal/config"
)

var (
	userID   int64
	nickname string

	rootCmd = &cobra.Command{
		Use:   "issue_token",
		Short: "Issue a development access token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE:  runIssueToken,
	}
)

func init() {
	rootCmd.Flags().Int64Var(&userID, "user", 1, "user id claim")
	rootCmd.Flags().StringVar(&nickname, "nickname", "dev", "nickname claim")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIssueToken(_ *cobra.Command, _ []string) error {
	cfg := config.Load()
	if !cfg.Auth.Enabled() {
		return errors.New("JWT_SECRET is not set; the server runs in demo mode and needs no token")
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	token, err := jwtManager.GenerateAccessToken(userID, nickname)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	log.Printf("Token for user %d expires in %s", userID, cfg.Auth.AccessTokenExpiry)
	fmt.Println(token)
	return nil
}
