package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/chris/token-purchases/pkg/gateway"
	"github.com/chris/token-purchases/pkg/metrics"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/notify"
	"github.com/chris/token-purchases/pkg/scheduler"
	"github.com/chris/token-purchases/pkg/storage"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrOrphanEvent means the event's charge intent has no transaction. The event is recorded and acknowledged.
	ErrOrphanEvent = errors.New("event references an unknown charge intent")
	// ErrMalformedEvent means a verified event can never be applied. It is logged and acknowledged.
	ErrMalformedEvent = errors.New("malformed gateway event")
	// ErrEventIgnored means the event type is not one the engine acts on.
	ErrEventIgnored = errors.New("gateway event type ignored")
)

// Outcome describes what a successful Apply did.
type Outcome string

const (
	// Applied means this call moved the transaction to its terminal state.
	Applied Outcome = "applied"
	// AlreadyTerminal means the transaction was already completed or failed.
	AlreadyTerminal Outcome = "already_terminal"
	// ConcurrencyLost means a concurrent call won the conditional update.
	ConcurrencyLost Outcome = "concurrency_lost"
	// NotReady means the event reports no outcome yet.
	NotReady Outcome = "not_ready"
)

// DefaultTimeout bounds a single Apply when no timeout is configured.
const DefaultTimeout = 10 * time.Second

const userFacingFailure = "payment could not be completed"

// Dependencies wires an Engine.
type Dependencies struct {
	Store     storage.ReconciliationStore
	History   storage.HistoryWriter
	Orphans   storage.OrphanStore
	Scheduler scheduler.Scheduler
	Sink      notify.Sink
	Metrics   *metrics.Metrics
	Timeout   time.Duration
}

// Engine applies verified gateway events to the transaction ledger and account balances.
// Every transition is a conditional write on status = pending, so repeated or concurrent deliveries
// of one event produce at most one credit.
type Engine struct {
	store     storage.ReconciliationStore
	history   storage.HistoryWriter
	orphans   storage.OrphanStore
	scheduler scheduler.Scheduler
	sink      notify.Sink
	metrics   *metrics.Metrics
	timeout   time.Duration
	now       func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(deps Dependencies) *Engine {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		store:     deps.Store,
		history:   deps.History,
		orphans:   deps.Orphans,
		scheduler: deps.Scheduler,
		sink:      deps.Sink,
		metrics:   deps.Metrics,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Apply processes one event. A nil error means the event can be acknowledged. ErrOrphanEvent,
// ErrMalformedEvent and ErrEventIgnored should also be acknowledged; any other error is retryable.
func (e *Engine) Apply(ctx context.Context, ev *gateway.Event) (Outcome, error) {
	start := e.now()
	outcome, err := e.apply(ctx, ev)
	e.metrics.ObserveReconcile(string(ev.Kind), metricOutcome(outcome, err), e.now().Sub(start))
	return outcome, err
}

func (e *Engine) apply(ctx context.Context, ev *gateway.Event) (Outcome, error) {
	logger := slog.With("eventId", ev.Id, "eventType", ev.Type, "chargeIntentId", ev.ChargeIntentId)

	switch ev.Kind {
	case gateway.EventSucceeded, gateway.EventFailed:
	case gateway.EventPending:
		return NotReady, nil
	default:
		logger.Info("ignoring gateway event")
		return "", ErrEventIgnored
	}

	if ev.ChargeIntentId == "" {
		logger.Warn("gateway event has no charge intent id")
		return "", fmt.Errorf("%w: missing charge intent id", ErrMalformedEvent)
	}
	meta, err := gateway.ParsePurchaseMetadata(ev.Metadata)
	if err != nil {
		logger.Warn("gateway event has unusable metadata", "error", err)
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.store.GetTransactionByChargeIntent(ctx, ev.ChargeIntentId)
	if errors.Is(err, storage.ErrTransactionNotFound) {
		return e.recordOrphan(ctx, ev, meta)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up transaction: %w", err)
	}
	logger = logger.With("transactionId", tx.Id, "userId", tx.UserId)

	if tx.Status.IsTerminal() {
		logger.Info("transaction already terminal, ignoring event", "status", tx.Status)
		return AlreadyTerminal, nil
	}

	if meta.UserId != tx.UserId || meta.TokenCount != tx.TokenCount {
		logger.Error("event metadata disagrees with ledger",
			"metadataUserId", meta.UserId, "metadataTokenCount", meta.TokenCount, "ledgerTokenCount", tx.TokenCount)
		return "", fmt.Errorf("%w: metadata does not match transaction %s", ErrMalformedEvent, tx.Id)
	}

	if ev.Kind == gateway.EventSucceeded {
		return e.complete(ctx, logger, tx)
	}
	return e.fail(ctx, logger, tx, ev.FailureReason)
}

func (e *Engine) complete(ctx context.Context, logger *slog.Logger, tx *models.Transaction) (Outcome, error) {
	completedAt := e.now().UTC()
	err := e.store.CompleteTransaction(ctx, tx, completedAt)
	if errors.Is(err, storage.ErrConcurrencyLost) {
		logger.Info("transaction completed by a concurrent delivery")
		return ConcurrencyLost, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to complete transaction: %w", err)
	}
	logger.Info("transaction completed", "tokens", tx.TokenCount)

	// The credit is committed. Side effects must not be cut short by the caller going away.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	rec := newHistoryRecord(tx, completedAt)
	if err := e.history.AppendHistory(sideCtx, rec); err != nil && !errors.Is(err, storage.ErrHistoryExists) {
		logger.Error("failed to append history, scheduling retry", "error", err)
		if err := e.scheduler.Schedule(sideCtx, &scheduler.Task{Kind: scheduler.TaskAppendHistory, History: rec}); err != nil {
			logger.Error("failed to schedule history retry", "error", err)
		}
	}

	e.sink.Enqueue(sideCtx, models.NotificationRequest{
		UserId: tx.UserId,
		Kind:   models.NotificationPurchaseCompleted,
		Payload: map[string]string{
			"transaction_id": tx.Id,
			"package_id":     tx.PackageId,
			"token_count":    strconv.FormatInt(tx.TokenCount, 10),
		},
	})
	return Applied, nil
}

func (e *Engine) fail(ctx context.Context, logger *slog.Logger, tx *models.Transaction, reason string) (Outcome, error) {
	if reason == "" {
		reason = "payment_failed"
	}
	err := e.store.FailTransaction(ctx, tx.Id, reason, e.now().UTC())
	if errors.Is(err, storage.ErrConcurrencyLost) {
		logger.Info("transaction reached a terminal state concurrently")
		return ConcurrencyLost, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to mark transaction failed: %w", err)
	}
	logger.Info("transaction failed", "reason", reason)

	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	e.sink.Enqueue(sideCtx, models.NotificationRequest{
		UserId: tx.UserId,
		Kind:   models.NotificationPurchaseFailed,
		Payload: map[string]string{
			"transaction_id": tx.Id,
			"message":        userFacingFailure,
		},
	})
	return Applied, nil
}

func (e *Engine) recordOrphan(ctx context.Context, ev *gateway.Event, meta gateway.PurchaseMetadata) (Outcome, error) {
	slog.Warn("gateway event references unknown charge intent",
		"eventId", ev.Id, "chargeIntentId", ev.ChargeIntentId, "userId", meta.UserId)

	orphan := &models.OrphanEvent{
		EventId:        ev.Id,
		EventType:      ev.Type,
		ChargeIntentId: ev.ChargeIntentId,
		UserId:         meta.UserId,
		TokenCount:     meta.TokenCount,
		ReceivedAt:     e.now().UTC(),
	}
	if err := e.orphans.RecordOrphan(ctx, orphan); err != nil {
		return "", fmt.Errorf("failed to record orphan event: %w", err)
	}
	return "", ErrOrphanEvent
}

func newHistoryRecord(tx *models.Transaction, purchasedAt time.Time) *models.PurchaseHistoryRecord {
	return &models.PurchaseHistoryRecord{
		TransactionId:    tx.Id,
		RecordId:         ulid.MustNew(ulid.Timestamp(purchasedAt), ulid.DefaultEntropy()).String(),
		UserId:           tx.UserId,
		PackageId:        tx.PackageId,
		TokenCount:       tx.TokenCount,
		AmountMinorUnits: tx.AmountMinorUnits,
		Currency:         tx.Currency,
		ChargeIntentId:   tx.ChargeIntentId,
		PurchasedAt:      purchasedAt,
	}
}

func metricOutcome(outcome Outcome, err error) string {
	switch {
	case err == nil && outcome == Applied:
		return metrics.OutcomeApplied
	case err == nil && outcome == ConcurrencyLost:
		return metrics.OutcomeConcurrency
	case err == nil && outcome == NotReady:
		return metrics.OutcomeStillPending
	case err == nil:
		return metrics.OutcomeNoop
	case errors.Is(err, ErrOrphanEvent):
		return metrics.OutcomeOrphan
	case errors.Is(err, ErrMalformedEvent):
		return metrics.OutcomeMalformed
	case errors.Is(err, ErrEventIgnored):
		return metrics.OutcomeIgnored
	default:
		return metrics.OutcomeRetryable
	}
}

// IsAcknowledged reports whether an Apply error still means the event was handled and must not be redelivered.
func IsAcknowledged(err error) bool {
	return err == nil || errors.Is(err, ErrOrphanEvent) || errors.Is(err, ErrMalformedEvent) || errors.Is(err, ErrEventIgnored)
}
