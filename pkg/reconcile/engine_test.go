package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chris/token-purchases/pkg/gateway"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/scheduler"
	"github.com/chris/token-purchases/pkg/storage"
	"github.com/chris/token-purchases/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	requests []models.NotificationRequest
}

func (r *recordingSink) Enqueue(ctx context.Context, req models.NotificationRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

type recordingScheduler struct {
	mu    sync.Mutex
	tasks []*scheduler.Task
}

func (r *recordingScheduler) Schedule(ctx context.Context, task *scheduler.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

type failingHistory struct{}

func (failingHistory) AppendHistory(ctx context.Context, rec *models.PurchaseHistoryRecord) error {
	return errors.New("history table unavailable")
}

// slowStore blocks completions until the context is done.
type slowStore struct {
	*memory.Store
}

func (s slowStore) CompleteTransaction(ctx context.Context, tx *models.Transaction, at time.Time) error {
	<-ctx.Done()
	return ctx.Err()
}

type fixture struct {
	store  *memory.Store
	sink   *recordingSink
	tasks  *recordingScheduler
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), sink: &recordingSink{}, tasks: &recordingScheduler{}}
	f.engine = NewEngine(Dependencies{
		Store:     f.store,
		History:   f.store,
		Orphans:   f.store,
		Scheduler: f.tasks,
		Sink:      f.sink,
		Timeout:   time.Second,
	})
	return f
}

func (f *fixture) seed(t *testing.T, txID, intentID, userID string, tokens, amount int64) {
	t.Helper()
	_, err := f.store.CreateTransaction(context.Background(), &models.Transaction{
		Id:               txID,
		ChargeIntentId:   intentID,
		UserId:           userID,
		PackageId:        "pkg_small",
		TokenCount:       tokens,
		AmountMinorUnits: amount,
		Currency:         "aud",
	})
	require.NoError(t, err)
}

func succeeded(intentID, userID string, tokens int64, amount int64) *gateway.Event {
	return &gateway.Event{
		Id:               "evt_" + intentID,
		Type:             "payment_intent.succeeded",
		Kind:             gateway.EventSucceeded,
		ChargeIntentId:   intentID,
		AmountMinorUnits: amount,
		Currency:         "aud",
		Metadata:         gateway.PurchaseMetadata{UserId: userID, PackageId: "pkg_small", TokenCount: tokens}.Encode(),
	}
}

func failed(intentID, userID string, tokens int64) *gateway.Event {
	ev := succeeded(intentID, userID, tokens, 500)
	ev.Id = "evt_fail_" + intentID
	ev.Type = "payment_intent.payment_failed"
	ev.Kind = gateway.EventFailed
	ev.FailureReason = "card_declined"
	return ev
}

func (f *fixture) balance(t *testing.T, userID string) (int64, int64) {
	t.Helper()
	account, err := f.store.GetAccount(context.Background(), userID)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return 0, 0
	}
	require.NoError(t, err)
	return account.TokenBalance, account.TotalTokensPurchased
}

func (f *fixture) historyCount(t *testing.T, userID string) int {
	t.Helper()
	records, err := f.store.ListHistoryByUserID(context.Background(), userID, 100)
	require.NoError(t, err)
	return len(records)
}

func TestApplySuccess(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "tx_1", "pi_1", "u1", 5, 500)

	outcome, err := f.engine.Apply(context.Background(), succeeded("pi_1", "u1", 5, 500))

	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)
	balance, total := f.balance(t, "u1")
	assert.Equal(t, int64(5), balance)
	assert.Equal(t, int64(5), total)

	tx, err := f.store.GetTransaction(context.Background(), "tx_1")
	require.NoError(t, err)
	assert.Equal(t, models.COMPLETED, tx.Status)
	assert.NotNil(t, tx.CompletedAt)

	assert.Equal(t, 1, f.historyCount(t, "u1"))
	require.Equal(t, 1, f.sink.count())
	assert.Equal(t, models.NotificationPurchaseCompleted, f.sink.requests[0].Kind)
	assert.Equal(t, "5", f.sink.requests[0].Payload["token_count"])
}

func TestApplyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "tx_1", "pi_1", "u1", 5, 500)
	ev := succeeded("pi_1", "u1", 5, 500)

	for i := 0; i < 5; i++ {
		outcome, err := f.engine.Apply(context.Background(), ev)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, Applied, outcome)
		} else {
			assert.Equal(t, AlreadyTerminal, outcome)
		}
	}

	balance, total := f.balance(t, "u1")
	assert.Equal(t, int64(5), balance)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, 1, f.historyCount(t, "u1"))
	assert.Equal(t, 1, f.sink.count())
}

func TestApplyConcurrentDeliveries(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "tx_1", "pi_1", "u1", 5, 500)
	ev := succeeded("pi_1", "u1", 5, 500)

	const callers = 32
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := f.engine.Apply(context.Background(), ev)
			assert.NoError(t, err)
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	applied := 0
	for outcome := range outcomes {
		if outcome == Applied {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
	balance, total := f.balance(t, "u1")
	assert.Equal(t, int64(5), balance)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, 1, f.historyCount(t, "u1"))
	assert.Equal(t, 1, f.sink.count())
}

func TestApplyDuplicateDeliveryScenario(t *testing.T) {
	// u1 buys a 5 token package for 500 AUD minor units; the gateway delivers the success twice at once.
	f := newFixture(t)
	f.seed(t, "tx_u1", "pi_1", "u1", 5, 500)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Apply(context.Background(), succeeded("pi_1", "u1", 5, 500))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	tx, err := f.store.GetTransaction(context.Background(), "tx_u1")
	require.NoError(t, err)
	assert.Equal(t, models.COMPLETED, tx.Status)
	balance, total := f.balance(t, "u1")
	assert.Equal(t, int64(5), balance)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, 1, f.historyCount(t, "u1"))
}

func TestApplyOrphan(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Apply(context.Background(), succeeded("pi_unknown", "u1", 5, 500))

	assert.ErrorIs(t, err, ErrOrphanEvent)
	assert.True(t, IsAcknowledged(err))
	balance, _ := f.balance(t, "u1")
	assert.Equal(t, int64(0), balance)

	orphans, err := f.store.ListOrphans(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "pi_unknown", orphans[0].ChargeIntentId)
	assert.Equal(t, "u1", orphans[0].UserId)
}

func TestApplyTerminalMonotonicity(t *testing.T) {
	t.Run("Failure After Completion", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "tx_1", "pi_1", "u1", 5, 500)
		_, err := f.engine.Apply(context.Background(), succeeded("pi_1", "u1", 5, 500))
		require.NoError(t, err)

		outcome, err := f.engine.Apply(context.Background(), failed("pi_1", "u1", 5))

		require.NoError(t, err)
		assert.Equal(t, AlreadyTerminal, outcome)
		tx, err := f.store.GetTransaction(context.Background(), "tx_1")
		require.NoError(t, err)
		assert.Equal(t, models.COMPLETED, tx.Status)
		assert.Empty(t, tx.FailureReason)
		balance, _ := f.balance(t, "u1")
		assert.Equal(t, int64(5), balance)
	})

	t.Run("Success After Failure", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "tx_1", "pi_1", "u1", 5, 500)
		_, err := f.engine.Apply(context.Background(), failed("pi_1", "u1", 5))
		require.NoError(t, err)

		outcome, err := f.engine.Apply(context.Background(), succeeded("pi_1", "u1", 5, 500))

		require.NoError(t, err)
		assert.Equal(t, AlreadyTerminal, outcome)
		tx, err := f.store.GetTransaction(context.Background(), "tx_1")
		require.NoError(t, err)
		assert.Equal(t, models.FAILED, tx.Status)
		assert.Equal(t, "card_declined", tx.FailureReason)
		balance, _ := f.balance(t, "u1")
		assert.Equal(t, int64(0), balance)
	})
}

func TestApplyFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "tx_1", "pi_1", "u1", 5, 500)

	outcome, err := f.engine.Apply(context.Background(), failed("pi_1", "u1", 5))

	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)
	tx, err := f.store.GetTransaction(context.Background(), "tx_1")
	require.NoError(t, err)
	assert.Equal(t, models.FAILED, tx.Status)
	assert.NotNil(t, tx.FailedAt)
	require.Equal(t, 1, f.sink.count())
	assert.Equal(t, models.NotificationPurchaseFailed, f.sink.requests[0].Kind)
	assert.Equal(t, userFacingFailure, f.sink.requests[0].Payload["message"])
	assert.Equal(t, 0, f.historyCount(t, "u1"))
}

func TestApplyCreditsMetadataTokenCount(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "tx_1", "pi_1", "u1", 5, 99_999)

	_, err := f.engine.Apply(context.Background(), succeeded("pi_1", "u1", 5, 99_999))

	require.NoError(t, err)
	balance, _ := f.balance(t, "u1")
	assert.Equal(t, int64(5), balance)
}

func TestApplyMalformed(t *testing.T) {
	t.Run("Missing Token Count", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "tx_1", "pi_1", "u1", 5, 500)
		ev := succeeded("pi_1", "u1", 5, 500)
		delete(ev.Metadata, gateway.MetadataTokenCount)

		_, err := f.engine.Apply(context.Background(), ev)

		assert.ErrorIs(t, err, ErrMalformedEvent)
		assert.True(t, IsAcknowledged(err))
		tx, err := f.store.GetTransaction(context.Background(), "tx_1")
		require.NoError(t, err)
		assert.Equal(t, models.PENDING, tx.Status)
	})

	t.Run("Metadata Disagrees With Ledger", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "tx_1", "pi_1", "u1", 5, 500)

		_, err := f.engine.Apply(context.Background(), succeeded("pi_1", "u1", 500, 500))

		assert.ErrorIs(t, err, ErrMalformedEvent)
		balance, _ := f.balance(t, "u1")
		assert.Equal(t, int64(0), balance)
	})
}

func TestApplyIgnoredAndPending(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Apply(context.Background(), &gateway.Event{Id: "evt_x", Type: "customer.created", Kind: gateway.EventUnsupported})
	assert.ErrorIs(t, err, ErrEventIgnored)

	outcome, err := f.engine.Apply(context.Background(), &gateway.Event{Id: "lookup", Kind: gateway.EventPending, ChargeIntentId: "pi_1"})
	assert.NoError(t, err)
	assert.Equal(t, NotReady, outcome)
}

func TestApplyHistoryFailureSchedulesRetry(t *testing.T) {
	f := newFixture(t)
	f.engine.history = failingHistory{}
	f.seed(t, "tx_1", "pi_1", "u1", 5, 500)

	outcome, err := f.engine.Apply(context.Background(), succeeded("pi_1", "u1", 5, 500))

	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)
	balance, _ := f.balance(t, "u1")
	assert.Equal(t, int64(5), balance)
	require.Len(t, f.tasks.tasks, 1)
	assert.Equal(t, scheduler.TaskAppendHistory, f.tasks.tasks[0].Kind)
	assert.Equal(t, "tx_1", f.tasks.tasks[0].History.TransactionId)
	assert.Equal(t, 1, f.sink.count())
}

func TestApplyTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "tx_1", "pi_1", "u1", 5, 500)
	f.engine.store = slowStore{f.store}
	f.engine.timeout = 20 * time.Millisecond

	_, err := f.engine.Apply(context.Background(), succeeded("pi_1", "u1", 5, 500))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsAcknowledged(err))
	tx, err := f.store.GetTransaction(context.Background(), "tx_1")
	require.NoError(t, err)
	assert.Equal(t, models.PENDING, tx.Status)
}
