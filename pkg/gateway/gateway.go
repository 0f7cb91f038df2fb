package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSignatureInvalid is returned when a webhook payload fails signature verification.
	ErrSignatureInvalid = errors.New("invalid webhook signature")
	// ErrMalformedPayload is returned when a correctly signed payload cannot be decoded.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrGatewayUnavailable covers transport failures, timeouts, 5xx and 429 responses. Callers may retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected is returned for non-retryable 4xx responses.
	ErrGatewayRejected = errors.New("payment gateway rejected request")
)

// EventKind is the normalized outcome an event reports for a charge intent.
type EventKind string

const (
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	// EventPending is only produced by RetrieveChargeIntent for intents that have no outcome yet.
	EventPending EventKind = "pending"
	// EventUnsupported marks event types this service does not act on.
	EventUnsupported EventKind = "unsupported"
)

// Event is a verified gateway event, or an outcome synthesized from a charge intent lookup.
type Event struct {
	Id               string
	Type             string
	Kind             EventKind
	ChargeIntentId   string
	AmountMinorUnits int64
	Currency         string
	Metadata         map[string]string
	FailureReason    string
	CreatedAt        time.Time
}

// ChargeIntentRequest describes a charge intent to create.
type ChargeIntentRequest struct {
	AmountMinorUnits int64
	Currency         string
	CustomerId       string
	Metadata         PurchaseMetadata
	// IdempotencyKey makes retries of the same create call return the same intent.
	IdempotencyKey string
}

// ChargeIntent is the gateway's answer to a create call.
type ChargeIntent struct {
	Id           string
	ClientSecret string
}

// Client is the payment gateway surface used by the service.
type Client interface {
	// EnsureCustomer creates (or, on an idempotent retry, returns) the gateway customer for a user.
	EnsureCustomer(ctx context.Context, userID string) (string, error)
	CreateChargeIntent(ctx context.Context, req ChargeIntentRequest) (*ChargeIntent, error)
	// RetrieveChargeIntent looks up the current outcome of an intent and reports it as an Event.
	RetrieveChargeIntent(ctx context.Context, intentID string) (*Event, error)
	// Verify checks the signature header against the raw payload and decodes the event.
	Verify(payload []byte, signatureHeader string) (*Event, error)
}
