package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/xui-console/internal/auth"
	"github.com/briangreenhill/xui-console/internal/config"
	"github.com/briangreenhill/xui-console/internal/db"
)

// withService opens the database named by DATABASE_URL, applies the schema
// and runs fn against an auth service without a login recorder.
func withService(ctx context.Context, fn func(*auth.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	return fn(auth.NewService(db.New(pool), nil))
}

// readPassword returns flagValue, or the first line of in when it is empty.
func readPassword(flagValue string, in io.Reader) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("no password given; use --password or pipe it on stdin")
	}
	return pw, nil
}

func newCreateAdminCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(svc *auth.Service) error {
				user, err := svc.CreateAdmin(cmd.Context(), username, pw)
				if err != nil {
					return err
				}
				zerolog.Ctx(cmd.Context()).Info().Str("admin_id", user.ID.String()).Str("username", user.Username).Msg("admin created")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password (read from stdin when empty)")
	return cmd
}

func newHasAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "has-admin",
		Short: "Exit non-zero when no admin account exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *auth.Service) error {
				ok, err := svc.HasAdmin(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("no admin account exists")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "admin account present")
				return nil
			})
		},
	}
}

func newPasswdCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Reset an admin's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(svc *auth.Service) error {
				if err := svc.ResetPassword(cmd.Context(), username, pw); err != nil {
					if errors.Is(err, db.ErrNotFound) {
						return fmt.Errorf("no active admin named %q", username)
					}
					return err
				}
				zerolog.Ctx(cmd.Context()).Info().Str("username", username).Msg("password reset")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "new password (read from stdin when empty)")
	return cmd
}
