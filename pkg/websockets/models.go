package websockets

import "github.com/chris/token-purchases/pkg/models"

// MessageType defines the type of a WebSocket message.
type MessageType string

const (
	MessageTypePurchaseCompleted MessageType = "purchaseCompleted"
	MessageTypePurchaseFailed    MessageType = "purchaseFailed"
)

// Message represents a generic WebSocket message.
type Message struct {
	Type    MessageType       `json:"type"`
	Payload map[string]string `json:"payload"`
}

// MessageFromNotification converts a notification request into the message pushed to clients.
func MessageFromNotification(req *models.NotificationRequest) Message {
	msgType := MessageTypePurchaseFailed
	if req.Kind == models.NotificationPurchaseCompleted {
		msgType = MessageTypePurchaseCompleted
	}
	return Message{Type: msgType, Payload: req.Payload}
}
