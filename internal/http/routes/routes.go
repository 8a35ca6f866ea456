package routes

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/xui-console/internal/apiclient"
	"github.com/briangreenhill/xui-console/internal/auth"
	"github.com/briangreenhill/xui-console/internal/db"
	"github.com/briangreenhill/xui-console/internal/guard"
	appmw "github.com/briangreenhill/xui-console/internal/http/middleware"
	"github.com/briangreenhill/xui-console/internal/metrics"
	"github.com/briangreenhill/xui-console/internal/navigation"
	"github.com/briangreenhill/xui-console/internal/router"
)

// session keys
const (
	sessAdminID  = "admin_id"
	sessUsername = "username"
)

// NodeLister is the subset of db.Queries the nodes endpoint needs.
type NodeLister interface {
	ListNodes(ctx context.Context) ([]db.Node, error)
}

type Server struct {
	Router  *chi.Mux
	Sess    *scs.SessionManager
	Tmpl    *template.Template
	Auth    *auth.Service
	Nodes   NodeLister
	API     *apiclient.Client // shared console client
	Guard   *guard.Guard
	Routes  *router.Table
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

type ServerOptions struct {
	Sess     *scs.SessionManager
	Tmpl     *template.Template
	Auth     *auth.Service
	Nodes    NodeLister
	Routes   *router.Table
	Logger   zerolog.Logger
	Registry *prometheus.Registry // nil disables /metrics

	// APIBaseURL is where the console reaches the admin API. Pages never
	// derive it from the incoming request.
	APIBaseURL string
	// APIOptions configure the console's API client on top of the base URL
	// and the unauthorized-redirect interceptor.
	APIOptions []apiclient.Option
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("req_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	routes := opts.Routes
	if routes == nil {
		routes = router.Default()
	}

	var reg prometheus.Registerer
	if opts.Registry != nil {
		reg = opts.Registry
	}
	m := metrics.New(reg)

	apiOpts := append([]apiclient.Option{
		apiclient.WithBaseURL(opts.APIBaseURL),
		apiclient.WithInterceptor(apiclient.RedirectOnUnauthorized(router.LoginPath, m.UnauthorizedRedirects)),
	}, opts.APIOptions...)
	api := apiclient.New(apiOpts...)

	s := &Server{
		Router:  r,
		Sess:    opts.Sess,
		Tmpl:    opts.Tmpl,
		Auth:    opts.Auth,
		Nodes:   opts.Nodes,
		API:     api,
		Guard:   guard.New(api, routes, m),
		Routes:  routes,
		Metrics: m,
		Log:     opts.Logger,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})
	if opts.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(ar chi.Router) {
		ar.Use(s.Sess.LoadAndSave)
		ar.Use(s.sessionToContext)

		ar.Get("/auth/check", s.handleAuthCheck)
		ar.Post("/auth/login", s.handleAPILogin)
		ar.Post("/auth/logout", s.handleAPILogout)

		ar.Group(func(pr chi.Router) {
			pr.Use(appmw.RequireSession)
			pr.Get("/auth/me", s.handleMe)
			pr.Post("/auth/password", s.handleChangePassword)
			pr.Get("/nodes", s.handleListNodes)
		})
	})

	s.mountPages(r)
	r.With(s.pageScope).Post(router.LoginPath, s.handleLoginSubmit)
	r.With(s.pageScope).Post("/logout", s.handleLogout)

	return s
}

// mountPages registers every route in the table behind the navigation guard.
func (s *Server) mountPages(r chi.Router) {
	pages := map[string]func(router.Route) http.HandlerFunc{
		"login":     s.handleLoginPage,
		"dashboard": s.handleDashboard,
		"nodes":     s.handleNodesPage,
	}
	for _, rt := range s.Routes.Routes() {
		page, ok := pages[rt.View]
		if !ok {
			s.Log.Warn().Str("path", rt.Path).Str("view", rt.View).Msg("no handler for view, route not mounted")
			continue
		}
		r.With(s.pageScope, s.Guard.Middleware(rt)).Get(rt.Path, page(rt))
	}
}

// pageScope makes API calls for this page carry the visitor's cookies and
// records the page so a 401 can redirect it.
func (s *Server) pageScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := apiclient.WithIncoming(r.Context(), r)
		ctx = navigation.WithLocation(ctx, navigation.NewLocation(r.URL.Path))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) sessionToContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := s.Sess.GetString(r.Context(), sessAdminID); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), appmw.AdminIDKey, id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// redirected sends the browser on if an interceptor forced a redirect while
// the page was loading.
func redirected(w http.ResponseWriter, r *http.Request) bool {
	loc, ok := navigation.FromContext(r.Context())
	if !ok {
		return false
	}
	target, ok := loc.Redirected()
	if !ok {
		return false
	}
	http.Redirect(w, r, target, http.StatusFound)
	return true
}

// renderPage renders the route's view, wrapped in its layout when it has one.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, rt router.Route, data map[string]any) {
	var view bytes.Buffer
	if err := s.Tmpl.ExecuteTemplate(&view, rt.View, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("view", rt.View).Msg("render view failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if rt.Layout == "" {
		_, _ = w.Write(view.Bytes())
		return
	}

	data["Content"] = template.HTML(view.String())
	var page bytes.Buffer
	if err := s.Tmpl.ExecuteTemplate(&page, rt.Layout, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("layout", rt.Layout).Msg("render layout failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(page.Bytes())
}
