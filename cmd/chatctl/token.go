package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Goden-Gun/chat-bindings/pkg/auth"
	"github.com/Goden-Gun/chat-bindings/pkg/bootstrap"
)

func newTokenCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue, inspect and revoke auth keys",
	}
	cmd.AddCommand(newTokenIssueCommand(a), newTokenVerifyCommand(a), newTokenRevokeCommand(a))
	return cmd
}

func newTokenIssueCommand(a *app) *cobra.Command {
	var (
		channels []string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue <user>",
		Short: "Sign an auth key granting the given channels",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := bootstrap.AuthConfig(a.cfg.Auth)
			if ttl > 0 {
				cfg.TTL = ttl
			}
			tok, err := auth.Issue(args[0], channels, cfg)
			if err != nil {
				return err
			}
			fmt.Println(tok.Value)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&channels, "channel", "c", nil, "granted channel pattern, repeatable; none grants every channel")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "validity, the configured token_ttl by default")
	return cmd
}

func newTokenVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Validate an auth key and print its grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var revs auth.RevocationList
			if a.cfg.Redis.Addr != "" {
				client, err := bootstrap.InitRedis(ctx, a.cfg.Redis)
				if err != nil {
					return err
				}
				defer client.Close()
				revs = auth.NewRedisRevocationList(client, a.cfg.Auth.RevocationPrefix)
			}
			claims, err := auth.Verify(ctx, args[0], bootstrap.AuthConfig(a.cfg.Auth), revs)
			if err != nil {
				return err
			}
			grants := "*"
			if len(claims.Channels) > 0 {
				grants = strings.Join(claims.Channels, ",")
			}
			fmt.Printf("user=%s channels=%s expires=%s jti=%s\n", claims.UserID, grants, claims.ExpiresAt.Time.Format(time.RFC3339), claims.ID)
			return nil
		},
	}
}

func newTokenRevokeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token>",
		Short: "Block an auth key until it expires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := bootstrap.InitRedis(ctx, a.cfg.Redis)
			if err != nil {
				return err
			}
			defer client.Close()
			revs := auth.NewRedisRevocationList(client, a.cfg.Auth.RevocationPrefix)
			return auth.Revoke(ctx, args[0], bootstrap.AuthConfig(a.cfg.Auth), revs)
		},
	}
}
