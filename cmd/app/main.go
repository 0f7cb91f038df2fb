package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris/token-purchases/pkg/api"
	"github.com/chris/token-purchases/pkg/bootstrap"
	"github.com/chris/token-purchases/pkg/config"
	"github.com/chris/token-purchases/pkg/handlers"
	wshandlers "github.com/chris/token-purchases/pkg/handlers/websockets"
	"github.com/chris/token-purchases/pkg/middleware"
	"github.com/chris/token-purchases/pkg/purchase"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.ValidateGateway(); err != nil {
		slog.Error("invalid gateway configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	s, err := bootstrap.New(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to wire services", "error", err)
		os.Exit(1)
	}
	if s.LocalQueue != nil {
		go s.LocalQueue.Run(ctx)
	}

	handler := handlers.NewApiHandler(handlers.Dependencies{
		Store:     s.Store,
		Initiator: purchase.NewInitiator(s.Store, s.Gateway, s.Metrics, cfg.Gateway.MinChargeAmount),
		Verifier:  s.Gateway,
		Engine:    s.Engine,
		Cache:     s.Cache,
		Metrics:   s.Metrics,
	})

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.NewStructuredLogger(logger))

	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if s.Hub != nil {
		router.Handle("/ws", wshandlers.NewHandler(s.Store, s.Hub))
	}
	api.HandlerFromMux(handler, router)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting server", "port", cfg.HTTPPort, "backend", cfg.StorageBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
