package apiclient

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/xui-console/internal/navigation"
)

// Interceptor observes every response passing through a Client. OnResponse
// sees successful responses; OnError sees failures and returns the error the
// caller will get. Either hook may be nil.
type Interceptor struct {
	OnResponse func(ctx context.Context, resp *Response) (*Response, error)
	OnError    func(ctx context.Context, err error) error
}

// Counter is satisfied by prometheus.Counter.
type Counter interface {
	Inc()
}

// RedirectOnUnauthorized sends the current page to loginPath when a request
// fails with 401, unless that page is already the login page. The error is
// always handed on to the caller. redirects may be nil.
func RedirectOnUnauthorized(loginPath string, redirects Counter) Interceptor {
	return Interceptor{
		OnError: func(ctx context.Context, err error) error {
			if !IsUnauthorized(err) {
				return err
			}
			loc, ok := navigation.FromContext(ctx)
			if !ok || strings.Contains(loc.Path(), loginPath) {
				return err
			}
			if loc.Redirect(loginPath) {
				zerolog.Ctx(ctx).Info().
					Str("page", loc.Path()).
					Str("target", loginPath).
					Msg("unauthorized response, redirecting")
				if redirects != nil {
					redirects.Inc()
				}
			}
			return err
		},
	}
}
