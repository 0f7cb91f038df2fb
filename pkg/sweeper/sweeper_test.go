package sweeper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/chris/token-purchases/pkg/gateway"
	gateway_mocks "github.com/chris/token-purchases/pkg/gateway/mocks"
	"github.com/chris/token-purchases/pkg/metrics"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/notify"
	"github.com/chris/token-purchases/pkg/reconcile"
	"github.com/chris/token-purchases/pkg/scheduler"
	"github.com/chris/token-purchases/pkg/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type discardScheduler struct{}

func (discardScheduler) Schedule(ctx context.Context, task *scheduler.Task) error { return nil }

func seedPending(t *testing.T, store *memory.Store, txID, intentID string, age time.Duration) {
	t.Helper()
	_, err := store.CreateTransaction(context.Background(), &models.Transaction{
		Id:             txID,
		ChargeIntentId: intentID,
		UserId:         "u1",
		PackageId:      "pkg_small",
		TokenCount:     5,
		Currency:       "aud",
		CreatedAt:      time.Now().UTC().Add(-age),
	})
	require.NoError(t, err)
}

func lookupEvent(intentID string, kind gateway.EventKind) *gateway.Event {
	return &gateway.Event{
		Id:             "lookup:" + intentID + ":" + string(kind),
		Type:           "payment_intent.lookup",
		Kind:           kind,
		ChargeIntentId: intentID,
		Metadata:       gateway.PurchaseMetadata{UserId: "u1", PackageId: "pkg_small", TokenCount: 5}.Encode(),
	}
}

func newSweeper(store *memory.Store, client *gateway_mocks.Client, m *metrics.Metrics) *Sweeper {
	engine := reconcile.NewEngine(reconcile.Dependencies{
		Store:     store,
		History:   store,
		Orphans:   store,
		Scheduler: discardScheduler{},
		Sink:      notify.NewQueueSink(discardScheduler{}),
	})
	return New(store, client, engine, m, 20*time.Minute, 2)
}

func TestSweep(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		store := memory.New()
		seedPending(t, store, "tx_paid", "pi_paid", time.Hour)
		seedPending(t, store, "tx_declined", "pi_declined", time.Hour)
		seedPending(t, store, "tx_waiting", "pi_waiting", time.Hour)
		seedPending(t, store, "tx_fresh", "pi_fresh", time.Minute)

		client := new(gateway_mocks.Client)
		client.On("RetrieveChargeIntent", mock.Anything, "pi_paid").Return(lookupEvent("pi_paid", gateway.EventSucceeded), nil)
		client.On("RetrieveChargeIntent", mock.Anything, "pi_declined").Return(lookupEvent("pi_declined", gateway.EventFailed), nil)
		client.On("RetrieveChargeIntent", mock.Anything, "pi_waiting").Return(lookupEvent("pi_waiting", gateway.EventPending), nil)
		reg := prometheus.NewRegistry()
		m := metrics.New(reg, "test")

		// Act
		report, err := newSweeper(store, client, m).Sweep(context.Background())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, Report{Examined: 3, Applied: 2, StillPending: 1}, report)

		paid, err := store.GetTransaction(context.Background(), "tx_paid")
		require.NoError(t, err)
		assert.Equal(t, models.COMPLETED, paid.Status)
		declined, err := store.GetTransaction(context.Background(), "tx_declined")
		require.NoError(t, err)
		assert.Equal(t, models.FAILED, declined.Status)
		fresh, err := store.GetTransaction(context.Background(), "tx_fresh")
		require.NoError(t, err)
		assert.Equal(t, models.PENDING, fresh.Status)

		account, err := store.GetAccount(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(5), account.TokenBalance)

		client.AssertNotCalled(t, "RetrieveChargeIntent", mock.Anything, "pi_fresh")
		series, err := testutil.GatherAndCount(reg, "token_purchases_sweep_transactions_total")
		require.NoError(t, err)
		assert.Equal(t, 2, series)
	})

	t.Run("Gateway Unavailable", func(t *testing.T) {
		store := memory.New()
		seedPending(t, store, "tx_1", "pi_1", time.Hour)
		client := new(gateway_mocks.Client)
		client.On("RetrieveChargeIntent", mock.Anything, "pi_1").
			Return(nil, fmt.Errorf("%w: status 503", gateway.ErrGatewayUnavailable))

		report, err := newSweeper(store, client, nil).Sweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, Report{Examined: 1, Errors: 1}, report)
		tx, err := store.GetTransaction(context.Background(), "tx_1")
		require.NoError(t, err)
		assert.Equal(t, models.PENDING, tx.Status)
	})

	t.Run("Nothing To Do", func(t *testing.T) {
		report, err := newSweeper(memory.New(), new(gateway_mocks.Client), nil).Sweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, Report{}, report)
	})
}

func TestReconcileIntentAfterWebhook(t *testing.T) {
	store := memory.New()
	seedPending(t, store, "tx_1", "pi_1", time.Hour)
	client := new(gateway_mocks.Client)
	client.On("RetrieveChargeIntent", mock.Anything, "pi_1").Return(lookupEvent("pi_1", gateway.EventSucceeded), nil)
	s := newSweeper(store, client, nil)

	first, err := s.ReconcileIntent(context.Background(), "pi_1")
	require.NoError(t, err)
	second, err := s.ReconcileIntent(context.Background(), "pi_1")
	require.NoError(t, err)

	assert.Equal(t, reconcile.Applied, first)
	assert.Equal(t, reconcile.AlreadyTerminal, second)
	account, err := store.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), account.TokenBalance)
}
