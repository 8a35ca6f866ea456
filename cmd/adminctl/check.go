package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/briangreenhill/xui-console/internal/apiclient"
)

func newCheckCmd() *cobra.Command {
	var (
		baseURL string
		cookie  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Ask a running console whether a session is authenticated",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New(
				apiclient.WithBaseURL(baseURL),
				apiclient.WithTimeout(timeout),
			)

			ctx := cmd.Context()
			if cookie != "" {
				ctx = apiclient.WithCookies(ctx, &http.Cookie{Name: "session", Value: cookie})
			}

			ok, err := client.CheckAuth(ctx)
			if err != nil {
				return fmt.Errorf("auth check: %s", apiclient.HandleAPIError(err))
			}
			if ok {
				fmt.Fprintln(cmd.OutOrStdout(), "authenticated")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not authenticated")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "console base URL")
	cmd.Flags().StringVar(&cookie, "cookie", "", "value of the session cookie to check")
	cmd.Flags().DurationVar(&timeout, "timeout", apiclient.DefaultTimeout, "request timeout")
	return cmd
}
