package websockets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockConnections struct {
	mock.Mock
}

func (m *mockConnections) GetConnectionsByUserID(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockConnections) AddConnection(ctx context.Context, connectionID, userID string) error {
	return m.Called(ctx, connectionID, userID).Error(0)
}

func (m *mockConnections) RemoveConnection(ctx context.Context, connectionID string) error {
	return m.Called(ctx, connectionID).Error(0)
}

type mockAPIGateway struct {
	mock.Mock
}

func (m *mockAPIGateway) PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	args := m.Called(ctx, *params.ConnectionId)
	out, _ := args.Get(0).(*apigatewaymanagementapi.PostToConnectionOutput)
	return out, args.Error(1)
}

func TestDefaultPublisher(t *testing.T) {
	msg := MessageFromNotification(&models.NotificationRequest{
		UserId:  "u1",
		Kind:    models.NotificationPurchaseCompleted,
		Payload: map[string]string{"transaction_id": "tx_1"},
	})

	t.Run("Removes Gone Connections", func(t *testing.T) {
		conns := new(mockConnections)
		client := new(mockAPIGateway)
		p := NewPublisher(conns, conns, client)

		conns.On("GetConnectionsByUserID", mock.Anything, "u1").Return([]string{"live", "gone"}, nil).Once()
		client.On("PostToConnection", mock.Anything, "live").Return(&apigatewaymanagementapi.PostToConnectionOutput{}, nil).Once()
		client.On("PostToConnection", mock.Anything, "gone").Return(nil, &apigwtypes.GoneException{}).Once()
		conns.On("RemoveConnection", mock.Anything, "gone").Return(nil).Once()

		err := p.Publish(context.Background(), "u1", msg)

		assert.NoError(t, err)
		conns.AssertExpectations(t)
		client.AssertExpectations(t)
	})

	t.Run("All Deliveries Failed", func(t *testing.T) {
		conns := new(mockConnections)
		client := new(mockAPIGateway)
		p := NewPublisher(conns, conns, client)

		conns.On("GetConnectionsByUserID", mock.Anything, "u1").Return([]string{"a", "b"}, nil).Once()
		client.On("PostToConnection", mock.Anything, mock.Anything).Return(nil, assert.AnError).Twice()

		err := p.Publish(context.Background(), "u1", msg)

		assert.ErrorIs(t, err, ErrDeliveryFailed)
		conns.AssertNotCalled(t, "RemoveConnection", mock.Anything, mock.Anything)
	})

	t.Run("No Connections", func(t *testing.T) {
		conns := new(mockConnections)
		client := new(mockAPIGateway)
		p := NewPublisher(conns, conns, client)

		conns.On("GetConnectionsByUserID", mock.Anything, "u1").Return(nil, nil).Once()

		assert.NoError(t, p.Publish(context.Background(), "u1", msg))
		client.AssertNotCalled(t, "PostToConnection", mock.Anything, mock.Anything)
	})

	t.Run("Lookup Error", func(t *testing.T) {
		conns := new(mockConnections)
		p := NewPublisher(conns, conns, new(mockAPIGateway))

		conns.On("GetConnectionsByUserID", mock.Anything, "u1").Return(nil, assert.AnError).Once()

		err := p.Publish(context.Background(), "u1", msg)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get user connections")
	})
}

func TestHub(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register("u1", "conn_1", conn)
		close(registered)
	}))
	defer server.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()
	<-registered

	require.NoError(t, hub.Publish(context.Background(), "u1", Message{Type: MessageTypePurchaseCompleted, Payload: map[string]string{"token_count": "5"}}))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	var got Message
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, MessageTypePurchaseCompleted, got.Type)
	assert.Equal(t, "5", got.Payload["token_count"])

	hub.Unregister("u1", "conn_1")
	assert.NoError(t, hub.Publish(context.Background(), "u1", Message{Type: MessageTypePurchaseFailed}))
}
