// Package guard decides, before a console page renders, whether the visit
// proceeds or is redirected, based on one auth check against the admin API.
package guard

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/xui-console/internal/router"
)

// Outcome is what happens to a navigation.
type Outcome int

const (
	Proceed Outcome = iota
	RedirectLogin
	RedirectHome
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	}
	return "unknown"
}

// Target returns the redirect path for o, or "" for Proceed.
func (o Outcome) Target() string {
	switch o {
	case RedirectLogin:
		return router.LoginPath
	case RedirectHome:
		return router.HomePath
	}
	return ""
}

// Decision is the result of evaluating one navigation.
type Decision struct {
	Outcome Outcome
	Class   Class
	State   AuthState
}

// Target is the redirect path, or "" when the navigation proceeds.
func (d Decision) Target() string {
	return d.Outcome.Target()
}

// Class groups routes by how the guard treats them.
type Class int

const (
	Public Class = iota
	Login
	Protected
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case Login:
		return "login"
	case Protected:
		return "protected"
	}
	return "unknown"
}

// AuthState is what the auth check said, if it ran.
type AuthState int

const (
	Unchecked AuthState = iota
	Authenticated
	Anonymous
	CheckFailed
)

func (s AuthState) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	case CheckFailed:
		return "check_failed"
	}
	return "unknown"
}

// decisions is the whole policy. Protected routes fail closed when the check
// fails; the login page fails open so an unreachable API never locks a
// visitor out of it.
var decisions = map[Class]map[AuthState]Outcome{
	Protected: {
		Authenticated: Proceed,
		Anonymous:     RedirectLogin,
		CheckFailed:   RedirectLogin,
	},
	Login: {
		Authenticated: RedirectHome,
		Anonymous:     Proceed,
		CheckFailed:   Proceed,
	},
	Public: {
		Unchecked: Proceed,
	},
}

// Classify returns the guard class of r. A route that requires auth is
// protected even if it is the login path.
func Classify(r router.Route) Class {
	switch {
	case r.RequiresAuth:
		return Protected
	case r.IsLogin():
		return Login
	default:
		return Public
	}
}

// AuthChecker reports whether the caller behind ctx is authenticated.
type AuthChecker interface {
	CheckAuth(ctx context.Context) (bool, error)
}

// Recorder receives decision metrics. *metrics.Metrics implements it.
type Recorder interface {
	ObserveDecision(class, outcome string)
	ObserveAuthCheck(result string)
}

type Guard struct {
	checker AuthChecker
	routes  *router.Table
	rec     Recorder
}

// New returns a Guard. routes is used to resolve the page being left; rec
// may be nil.
func New(checker AuthChecker, routes *router.Table, rec Recorder) *Guard {
	return &Guard{checker: checker, routes: routes, rec: rec}
}

// Evaluate decides the navigation from "from" to "to". Public routes never
// trigger an auth check; every other evaluation makes exactly one.
func (g *Guard) Evaluate(ctx context.Context, to, from router.Route) Decision {
	class := Classify(to)

	state := Unchecked
	if class != Public {
		state = g.check(ctx)
	}

	outcome, ok := decisions[class][state]
	if !ok {
		outcome = RedirectLogin
	}

	if g.rec != nil {
		g.rec.ObserveDecision(class.String(), outcome.String())
	}
	zerolog.Ctx(ctx).Debug().
		Str("to", to.Path).
		Str("from", from.Path).
		Stringer("class", class).
		Stringer("auth", state).
		Stringer("outcome", outcome).
		Msg("guard decision")

	return Decision{Outcome: outcome, Class: class, State: state}
}

func (g *Guard) check(ctx context.Context) AuthState {
	ok, err := g.checker.CheckAuth(ctx)
	state := Anonymous
	switch {
	case err != nil:
		state = CheckFailed
		zerolog.Ctx(ctx).Debug().Err(err).Msg("auth check failed")
	case ok:
		state = Authenticated
	}
	if g.rec != nil {
		g.rec.ObserveAuthCheck(state.String())
	}
	return state
}

// Middleware guards the page for route. A redirect is sent as 302 Found.
func (g *Guard) Middleware(route router.Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Evaluate(r.Context(), route, g.referrer(r))
			if d.Outcome != Proceed {
				http.Redirect(w, r, d.Target(), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// referrer resolves the page being left from the Referer header. Foreign or
// unknown referrers yield the zero Route.
func (g *Guard) referrer(r *http.Request) router.Route {
	ref := r.Referer()
	if ref == "" || g.routes == nil {
		return router.Route{}
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return router.Route{}
	}
	from, _ := g.routes.Lookup(u.Path)
	return from
}
