// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/xui-console/internal/apiclient"
	"github.com/briangreenhill/xui-console/internal/auth"
	"github.com/briangreenhill/xui-console/internal/config"
	"github.com/briangreenhill/xui-console/internal/db"
	"github.com/briangreenhill/xui-console/internal/http/routes"
	"github.com/briangreenhill/xui-console/internal/jobs"
	"github.com/briangreenhill/xui-console/web"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}
	if !cfg.IsProduction() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db error")
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	queries := db.New(pool)

	// Sessions
	sess := scs.New()
	sess.Lifetime = cfg.SessionLifetime
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode
	sess.Cookie.Secure = cfg.CookieSecure

	tmpl, err := web.Templates()
	if err != nil {
		logger.Fatal().Err(err).Msg("parse templates")
	}

	// Logins are recorded by the worker
	jobsClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}()
	authSvc := auth.NewService(queries, jobs.LoginRecorder{Client: jobsClient})

	if ok, err := authSvc.HasAdmin(ctx); err != nil {
		logger.Fatal().Err(err).Msg("count admins")
	} else if !ok {
		logger.Warn().Msg("no admin account exists, create one with adminctl create-admin")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := routes.New(routes.ServerOptions{
		Sess:       sess,
		Tmpl:       tmpl,
		Auth:       authSvc,
		Nodes:      queries,
		Logger:     logger,
		Registry:   reg,
		APIBaseURL: cfg.APIBase(),
		APIOptions: []apiclient.Option{apiclient.WithTimeout(cfg.APITimeout)},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("base_url", cfg.BaseURL).Str("api_url", cfg.APIBase()).Msg("starting console")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}
