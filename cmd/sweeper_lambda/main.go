package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/token-purchases/pkg/bootstrap"
	"github.com/chris/token-purchases/pkg/config"
	"github.com/chris/token-purchases/pkg/sweeper"
	"github.com/prometheus/client_golang/prometheus"
)

var sw *sweeper.Sweeper

func init() {
	cfg := config.Load()
	slog.SetDefault(cfg.NewLogger(os.Stdout))

	if err := cfg.ValidateGateway(); err != nil {
		slog.Error("invalid gateway configuration", "error", err)
		os.Exit(1)
	}

	s, err := bootstrap.New(context.Background(), cfg, prometheus.NewRegistry())
	if err != nil {
		slog.Error("failed to wire services", "error", err)
		os.Exit(1)
	}
	sw = sweeper.New(s.Store, s.Gateway, s.Engine, s.Metrics, cfg.StalePendingAfter, cfg.SweepConcurrency)
}

// HandleRequest is triggered by an EventBridge schedule.
func HandleRequest(ctx context.Context) error {
	slog.Info("Starting sweep of stale pending transactions...")

	report, err := sw.Sweep(ctx)
	if err != nil {
		slog.Error("sweep failed", "error", err)
		return err
	}

	slog.Info("Sweep finished",
		"examined", report.Examined,
		"applied", report.Applied,
		"stillPending", report.StillPending,
		"errors", report.Errors)
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
