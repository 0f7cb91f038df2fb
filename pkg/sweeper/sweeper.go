package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chris/token-purchases/pkg/gateway"
	"github.com/chris/token-purchases/pkg/metrics"
	"github.com/chris/token-purchases/pkg/reconcile"
	"github.com/chris/token-purchases/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds concurrent gateway lookups during a sweep.
const DefaultConcurrency = 8

// IntentLookup reports the gateway's current view of a charge intent.
type IntentLookup interface {
	RetrieveChargeIntent(ctx context.Context, intentID string) (*gateway.Event, error)
}

// Applier applies an event to the ledger.
type Applier interface {
	Apply(ctx context.Context, ev *gateway.Event) (reconcile.Outcome, error)
}

// Report summarises one sweep.
type Report struct {
	Examined     int
	Applied      int
	StillPending int
	Errors       int
}

// Sweeper resolves transactions left pending because a webhook was lost, or arrived before the
// transaction was visible. It asks the gateway for each intent's outcome and applies it through the
// reconciliation engine, so a sweep racing a late webhook still credits at most once.
type Sweeper struct {
	store       storage.TransactionReader
	gateway     IntentLookup
	engine      Applier
	metrics     *metrics.Metrics
	maxAge      time.Duration
	concurrency int
}

// New creates a Sweeper for transactions pending longer than maxAge.
func New(store storage.TransactionReader, lookup IntentLookup, engine Applier, m *metrics.Metrics, maxAge time.Duration, concurrency int) *Sweeper {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Sweeper{
		store:       store,
		gateway:     lookup,
		engine:      engine,
		metrics:     m,
		maxAge:      maxAge,
		concurrency: concurrency,
	}
}

// Sweep examines every stale pending transaction. Failures on individual transactions are counted
// and logged; the next sweep retries them.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	slog.Info("starting sweep of stale pending transactions", "maxAge", s.maxAge)

	stale, err := s.store.ListStalePending(ctx, s.maxAge)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list stale pending transactions: %w", err)
	}
	if len(stale) == 0 {
		slog.Info("no stale pending transactions found")
		return Report{}, nil
	}

	var (
		mu     sync.Mutex
		report = Report{Examined: len(stale)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, tx := range stale {
		g.Go(func() error {
			outcome, err := s.ReconcileIntent(gctx, tx.ChargeIntentId)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && !reconcile.IsAcknowledged(err):
				slog.Error("failed to reconcile stale transaction",
					"transactionId", tx.Id, "chargeIntentId", tx.ChargeIntentId, "error", err)
				report.Errors++
			case err != nil:
				slog.Warn("stale transaction could not be applied",
					"transactionId", tx.Id, "chargeIntentId", tx.ChargeIntentId, "error", err)
				report.Errors++
			case outcome == reconcile.NotReady:
				report.StillPending++
			case outcome == reconcile.Applied:
				report.Applied++
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("sweep finished", "examined", report.Examined, "applied", report.Applied,
		"stillPending", report.StillPending, "errors", report.Errors)
	return report, nil
}

// ReconcileIntent looks up one intent at the gateway and applies its outcome.
func (s *Sweeper) ReconcileIntent(ctx context.Context, chargeIntentID string) (reconcile.Outcome, error) {
	ev, err := s.gateway.RetrieveChargeIntent(ctx, chargeIntentID)
	if err != nil {
		s.metrics.ObserveSweep(metrics.OutcomeUnavailable)
		return "", fmt.Errorf("failed to retrieve charge intent %s: %w", chargeIntentID, err)
	}

	outcome, err := s.engine.Apply(ctx, ev)
	s.metrics.ObserveSweep(sweepOutcome(outcome, err))
	return outcome, err
}

func sweepOutcome(outcome reconcile.Outcome, err error) string {
	switch {
	case err != nil && reconcile.IsAcknowledged(err):
		return metrics.OutcomeMalformed
	case err != nil:
		return metrics.OutcomeRetryable
	case outcome == reconcile.Applied:
		return metrics.OutcomeApplied
	case outcome == reconcile.NotReady:
		return metrics.OutcomeStillPending
	default:
		return metrics.OutcomeNoop
	}
}
