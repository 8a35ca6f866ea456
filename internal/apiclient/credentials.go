package apiclient

import (
	"context"
	"net/http"
)

type credentialsKey struct{}

// WithIncoming attaches the cookies of the page request r so calls made with
// the returned context carry the visitor's session. Only cookies are taken
// from r; where requests go is fixed by the client's base URL.
func WithIncoming(ctx context.Context, r *http.Request) context.Context {
	return WithCookies(ctx, r.Cookies()...)
}

// WithCookies attaches cookies to ctx. Used by callers outside a page
// request, such as the CLI.
func WithCookies(ctx context.Context, cookies ...*http.Cookie) context.Context {
	prev := credentialsFrom(ctx)
	all := append(append([]*http.Cookie(nil), prev...), cookies...)
	return context.WithValue(ctx, credentialsKey{}, all)
}

func credentialsFrom(ctx context.Context) []*http.Cookie {
	cookies, _ := ctx.Value(credentialsKey{}).([]*http.Cookie)
	return cookies
}
