// Package navigation tracks the console page a request is rendering and any
// redirect that was forced while rendering it.
package navigation

import (
	"context"
	"sync"
)

type contextKey struct{}

// Location is the page currently displayed for one console request.
// Only the first redirect is kept.
type Location struct {
	path string

	mu         sync.Mutex
	target     string
	redirected bool
}

// NewLocation returns a Location for the page at path.
func NewLocation(path string) *Location {
	return &Location{path: path}
}

// Path returns the displayed page path.
func (l *Location) Path() string {
	return l.path
}

// Redirect asks for a full page redirect to target. It returns false when a
// redirect was already requested for this page.
func (l *Location) Redirect(target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.redirected {
		return false
	}
	l.target = target
	l.redirected = true
	return true
}

// Redirected returns the requested redirect target, if any.
func (l *Location) Redirected() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target, l.redirected
}

// WithLocation attaches l to ctx.
func WithLocation(ctx context.Context, l *Location) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the Location attached to ctx.
func FromContext(ctx context.Context) (*Location, bool) {
	l, ok := ctx.Value(contextKey{}).(*Location)
	return l, ok && l != nil
}
