package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/chainsafe/optimal-wallet/pkg/auth"
	"github.com/chainsafe/optimal-wallet/pkg/config"
)

func tokenCmd(opts *options) *cobra.Command {
	var (
		subject string
		scope   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with auth.jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}

			now := time.Now()
			token, err := auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).Sign(&auth.Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   subject,
					IssuedAt:  jwt.NewNumericDate(now),
					ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
				},
				Scope: scope,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "sub claim")
	cmd.Flags().StringVar(&scope, "scope", "", "space separated scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
