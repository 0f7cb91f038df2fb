package websockets

import (
	"context"
	"log/slog"
)

// NoOpPublisher logs messages instead of delivering them.
type NoOpPublisher struct{}

// Publish only logs.
func (p *NoOpPublisher) Publish(ctx context.Context, userID string, message Message) error {
	slog.Debug("dropping websocket message", "userId", userID, "type", message.Type)
	return nil
}
