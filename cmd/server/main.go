package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	authmetrics "tradegate/internal/auth/metrics"
	"tradegate/internal/auth/models"
	"tradegate/internal/auth/service"
	"tradegate/internal/auth/session"
	"tradegate/internal/auth/store/profile"
	jwttoken "tradegate/internal/jwt_token"
	"tradegate/internal/platform/config"
	"tradegate/internal/platform/httpserver"
	"tradegate/internal/platform/logger"
	"tradegate/internal/platform/metrics"
	httptransport "tradegate/internal/transport/http"
	"tradegate/internal/wallet/poller"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	envPath := flag.String("env", ".env", "path to a dotenv file")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics := authmetrics.New(reg)

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	persist, err := newPersistence(cfg, infra)
	if err != nil {
		return err
	}
	sessions, err := session.New(persist,
		session.WithLogger(log),
		session.WithMetrics(authMetrics),
		session.WithKey(cfg.Session.Key),
		session.WithPersistTimeout(cfg.Session.PersistTimeout.Duration),
	)
	if err != nil {
		log.Warn("starting with a fresh session", "error", err)
	}
	unwatch := sessions.Subscribe(func(s models.Session) {
		log.Debug("session changed",
			"address", s.WalletAddress,
			"connected", s.IsConnected,
			"loading", s.IsLoading,
			"gate", s.Gate(),
		)
	})
	defer unwatch()

	docs, err := newDocumentStore(ctx, cfg, infra)
	if err != nil {
		return err
	}

	provider, err := dialWallet(ctx, cfg, log, infra)
	if err != nil {
		return err
	}

	auditor, runAudit, err := newAuditPublisher(ctx, cfg, log, infra)
	if err != nil {
		return err
	}
	auditCtx, stopAudit := context.WithCancel(context.WithoutCancel(ctx))
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		_ = runAudit(auditCtx)
	}()
	defer func() {
		stopAudit()
		<-auditDone
	}()

	svc := service.New(provider, profile.New(docs), sessions,
		service.WithLogger(log),
		service.WithMetrics(authMetrics),
		service.WithAuditPublisher(auditor),
		service.WithConnectTimeout(cfg.Wallet.ConnectTimeout.Duration),
	)
	sub, err := svc.Start(ctx)
	if err != nil {
		return fmt.Errorf("start wallet subscription: %w", err)
	}
	defer sub.Unsubscribe()

	if provider != nil && cfg.Wallet.PollInterval.Duration > 0 {
		p := poller.New(provider, sub.Dispatch, cfg.Wallet.PollInterval.Duration, poller.WithLogger(log))
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("start account poller: %w", err)
		}
		defer p.Stop()
	}

	tokens := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "tradegate", "tradegate-ui")
	handler := httptransport.New(svc, tokens, cfg.Server.TokenTTL.Duration, log)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Logger:     log,
		Validator:  jwttoken.NewJWTServiceAdapter(tokens),
		Observer:   metrics.New(reg),
		Gatherer:   reg,
		AdminToken: cfg.Server.AdminToken,

		HealthChecks: infra.healthChecks(),
	})

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Wallet.ConnectTimeout.Duration)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting tradegate", "addr", cfg.Server.Addr, "gate", svc.Gate())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
