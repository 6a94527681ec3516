package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/bigsnackbar/internal/httpapi"
)

var tokenOpts struct {
	subject string
	ttl     time.Duration
	secret  string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for the HTTP API",
	Long: `Sign an HS256 token with http.jwt_secret (or --secret) for use as
"Authorization: Bearer <token>" against "bigsnackbar serve".`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenOpts.subject, "subject", "cli",
		"Token subject, logged with each request")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 24*time.Hour,
		"Token lifetime (0 for no expiry)")
	tokenCmd.Flags().StringVar(&tokenOpts.secret, "secret", "",
		"Signing secret (default from config)")
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := tokenOpts.secret
	if secret == "" {
		secret = cfg.HTTP.JWTSecret
	}
	if secret == "" {
		return errors.New("no secret: set http.jwt_secret in the config or pass --secret")
	}

	token, err := httpapi.GenerateToken(secret, tokenOpts.subject, tokenOpts.ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
