package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/scheduler"
	"github.com/chris/token-purchases/pkg/storage/memory"
	"github.com/chris/token-purchases/pkg/websockets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	userIDs  []string
	messages []websockets.Message
	err      error
}

func (r *recordingPublisher) Publish(ctx context.Context, userID string, message websockets.Message) error {
	if r.err != nil {
		return r.err
	}
	r.userIDs = append(r.userIDs, userID)
	r.messages = append(r.messages, message)
	return nil
}

func TestProcessor(t *testing.T) {
	rec := &models.PurchaseHistoryRecord{TransactionId: "tx_1", UserId: "u1", TokenCount: 5}

	t.Run("Append History Is Idempotent", func(t *testing.T) {
		store := memory.New()
		p := NewProcessor(store, &recordingPublisher{})
		task := &scheduler.Task{Kind: scheduler.TaskAppendHistory, History: rec}

		require.NoError(t, p.Handle(context.Background(), task))
		require.NoError(t, p.Handle(context.Background(), task))

		records, err := store.ListHistoryByUserID(context.Background(), "u1", 10)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("Notify Publishes To User", func(t *testing.T) {
		pub := &recordingPublisher{}
		p := NewProcessor(memory.New(), pub)

		err := p.Handle(context.Background(), &scheduler.Task{
			Kind:         scheduler.TaskNotify,
			Notification: &models.NotificationRequest{UserId: "u1", Kind: models.NotificationPurchaseFailed},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"u1"}, pub.userIDs)
		assert.Equal(t, websockets.MessageTypePurchaseFailed, pub.messages[0].Type)
	})

	t.Run("Publish Error Is Retryable", func(t *testing.T) {
		p := NewProcessor(memory.New(), &recordingPublisher{err: errors.New("endpoint down")})

		err := p.Handle(context.Background(), &scheduler.Task{
			Kind:         scheduler.TaskNotify,
			Notification: &models.NotificationRequest{UserId: "u1"},
		})

		assert.Error(t, err)
	})
}
