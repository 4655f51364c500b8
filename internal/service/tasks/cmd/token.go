package main

import (
	"errors"
	"fmt"
	"time"

	pkgconfig "leadgen/internal/pkg/config"
	"leadgen/internal/pkg/server"
	"leadgen/internal/service/tasks/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

// newTokenCmd issues an admin bearer token signed with admin.jwt_secret
func newTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := pkgconfig.NewSource(configOptions())
			if err != nil {
				return err
			}
			base, err := pkgconfig.NewConfig(src)
			if err != nil {
				return err
			}
			cfg, err := config.NewServiceConfig(base, src)
			if err != nil {
				return err
			}
			if cfg.Admin.JWTSecret == "" {
				return errors.New("admin.jwt_secret is not configured")
			}

			now := time.Now()
			token, err := server.IssueToken([]byte(cfg.Admin.JWTSecret), subject, jwt.RegisteredClaims{
				Issuer:    cfg.App.Name,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "ops", "token subject recorded in admin API logs")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
