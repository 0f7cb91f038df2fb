package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.SendMessageOutput)
	return out, args.Error(1)
}

func TestSQSScheduler(t *testing.T) {
	task := &Task{
		Kind:    TaskAppendHistory,
		History: &models.PurchaseHistoryRecord{TransactionId: "tx_1", UserId: "u1", TokenCount: 5},
	}

	t.Run("Success", func(t *testing.T) {
		client := new(mockSQS)
		s := NewSQSScheduler(client, "https://sqs.local/queue")

		var body string
		client.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
			body = *in.MessageBody
			return *in.QueueUrl == "https://sqs.local/queue"
		})).Return(&sqs.SendMessageOutput{}, nil).Once()

		require.NoError(t, s.Schedule(context.Background(), task))

		decoded, err := DecodeTask(body)
		require.NoError(t, err)
		assert.Equal(t, TaskAppendHistory, decoded.Kind)
		assert.Equal(t, "tx_1", decoded.History.TransactionId)
		client.AssertExpectations(t)
	})

	t.Run("Send Error", func(t *testing.T) {
		client := new(mockSQS)
		s := NewSQSScheduler(client, "https://sqs.local/queue")

		client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()

		err := s.Schedule(context.Background(), task)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send message to SQS")
		client.AssertExpectations(t)
	})
}
