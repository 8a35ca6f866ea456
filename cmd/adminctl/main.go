// Command adminctl manages console admin accounts and probes a running
// console's auth check.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "Manage x-ui console admins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCreateAdminCmd(),
		newHasAdminCmd(),
		newPasswdCmd(),
		newCheckCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(logger.WithContext(ctx))
	stop()
	if err != nil {
		logger.Error().Err(err).Msg("adminctl failed")
		os.Exit(1)
	}
}
