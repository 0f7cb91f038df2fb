package websockets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
)

// UserConnectionsGetter defines an interface for getting the connection IDs of a user.
type UserConnectionsGetter interface {
	GetConnectionsByUserID(ctx context.Context, userID string) ([]string, error)
}

// PostToConnectionAPI is the subset of the API Gateway management client used for delivery.
type PostToConnectionAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// DefaultPublisher delivers messages through the API Gateway WebSocket management API.
type DefaultPublisher struct {
	store       UserConnectionsGetter
	connManager ConnectionManager
	apiGwClient PostToConnectionAPI
}

// NewAPIGatewayClient builds a management API client for the given WebSocket endpoint.
func NewAPIGatewayClient(cfg aws.Config, apiEndpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(apiEndpoint)
	})
}

// NewPublisher creates a new DefaultPublisher.
func NewPublisher(store UserConnectionsGetter, connManager ConnectionManager, client PostToConnectionAPI) *DefaultPublisher {
	return &DefaultPublisher{
		store:       store,
		connManager: connManager,
		apiGwClient: client,
	}
}

// ErrDeliveryFailed is returned when a message reached none of the user's live connections.
var ErrDeliveryFailed = errors.New("message not delivered to any connection")

// Publish sends message to each of the user's connections. Connections the API reports gone are
// forgotten. If every live connection failed, ErrDeliveryFailed lets the task queue retry.
func (p *DefaultPublisher) Publish(ctx context.Context, userID string, message Message) error {
	connectionIDs, err := p.store.GetConnectionsByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user connections: %w", err)
	}
	if len(connectionIDs) == 0 {
		slog.Debug("user has no open connections", "userId", userID, "type", message.Type)
		return nil
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	var delivered, failed int
	for _, connectionID := range connectionIDs {
		err := p.post(ctx, connectionID, payload)
		var gone *apigwtypes.GoneException
		switch {
		case err == nil:
			delivered++
		case errors.As(err, &gone):
			slog.Info("forgetting gone connection", "connectionId", connectionID, "userId", userID)
			if err := p.connManager.RemoveConnection(ctx, connectionID); err != nil {
				slog.Error("failed to delete gone connection", "connectionId", connectionID, "error", err)
			}
		default:
			failed++
			slog.Warn("failed to post to connection", "connectionId", connectionID, "error", err)
		}
	}

	if delivered == 0 && failed > 0 {
		return fmt.Errorf("%w: %d attempts for user %s", ErrDeliveryFailed, failed, userID)
	}
	return nil
}

func (p *DefaultPublisher) post(ctx context.Context, connectionID string, payload []byte) error {
	_, err := p.apiGwClient.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         payload,
	})
	return err
}
