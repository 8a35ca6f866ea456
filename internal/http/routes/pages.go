package routes

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/sync/errgroup"

	"github.com/briangreenhill/xui-console/internal/apiclient"
	"github.com/briangreenhill/xui-console/internal/auth"
	"github.com/briangreenhill/xui-console/internal/router"
)

func (s *Server) loginRoute() router.Route {
	if rt, ok := s.Routes.Lookup(router.LoginPath); ok {
		return rt
	}
	return router.Route{Path: router.LoginPath, Name: "login", View: "login"}
}

func (s *Server) handleLoginPage(rt router.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, rt, map[string]any{"Title": "Login"})
	}
}

// handleLoginSubmit signs in through the admin API and hands the session
// cookie it issued to the browser.
func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")

	_, resp, err := s.API.Login(r.Context(), auth.LoginRequest{Username: username, Password: password})
	if err != nil {
		s.renderPage(w, r, s.loginRoute(), map[string]any{
			"Title":    "Login",
			"Username": username,
			"Error":    apiclient.HandleAPIError(err),
		})
		return
	}

	for _, c := range resp.Cookies() {
		http.SetCookie(w, c)
	}
	http.Redirect(w, r, router.HomePath, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	resp, err := s.API.Logout(r.Context())
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("logout call failed")
	} else {
		for _, c := range resp.Cookies() {
			http.SetCookie(w, c)
		}
	}
	http.Redirect(w, r, router.LoginPath, http.StatusSeeOther)
}

func (s *Server) handleDashboard(rt router.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			user  *auth.UserInfo
			nodes []apiclient.Node
		)
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			u, err := s.API.Me(ctx)
			user = u
			return err
		})
		g.Go(func() error {
			n, err := s.API.Nodes(ctx)
			nodes = n
			return err
		})
		err := g.Wait()
		if redirected(w, r) {
			return
		}

		enabled := 0
		for _, n := range nodes {
			if n.Enabled {
				enabled++
			}
		}
		data := map[string]any{
			"Title":        "Dashboard",
			"User":         user,
			"NodeCount":    len(nodes),
			"EnabledCount": enabled,
		}
		if err != nil {
			data["Error"] = apiclient.HandleAPIError(err)
		}
		s.renderPage(w, r, rt, data)
	}
}

func (s *Server) handleNodesPage(rt router.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nodes, err := s.API.Nodes(r.Context())
		if redirected(w, r) {
			return
		}

		data := map[string]any{"Title": "Nodes", "Nodes": nodes}
		if err != nil {
			data["Error"] = apiclient.HandleAPIError(err)
		}
		s.renderPage(w, r, rt, data)
	}
}
