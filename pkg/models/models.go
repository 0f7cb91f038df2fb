package models

import (
	"time"
)

// TransactionStatus defines the possible states of a purchase transaction.
type TransactionStatus string

const (
	PENDING   TransactionStatus = "pending"
	COMPLETED TransactionStatus = "completed"
	FAILED    TransactionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed out of the status.
func (s TransactionStatus) IsTerminal() bool {
	return s == COMPLETED || s == FAILED
}

// Account is the per-user token account.
type Account struct {
	UserId               string    `json:"user_id" dynamodbav:"user_id"`
	TokenBalance         int64     `json:"token_balance" dynamodbav:"token_balance"`
	TotalTokensPurchased int64     `json:"total_tokens_purchased" dynamodbav:"total_tokens_purchased"`
	ExternalCustomerId   string    `json:"external_customer_id,omitempty" dynamodbav:"external_customer_id,omitempty"`
	CreatedAt            time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Transaction represents a single purchase attempt.
// It includes dynamodbav tags for marshalling.
type Transaction struct {
	Id               string            `dynamodbav:"id"`
	ChargeIntentId   string            `dynamodbav:"charge_intent_id"`
	UserId           string            `dynamodbav:"user_id"`
	PackageId        string            `dynamodbav:"package_id"`
	TokenCount       int64             `dynamodbav:"token_count"`
	AmountMinorUnits int64             `dynamodbav:"amount_minor_units"`
	Currency         string            `dynamodbav:"currency"`
	Status           TransactionStatus `dynamodbav:"status"`
	FailureReason    string            `dynamodbav:"failure_reason,omitempty"`
	CreatedAt        time.Time         `dynamodbav:"created_at"`
	UpdatedAt        time.Time         `dynamodbav:"updated_at"`
	CompletedAt      *time.Time        `dynamodbav:"completed_at,omitempty"`
	FailedAt         *time.Time        `dynamodbav:"failed_at,omitempty"`
}

// PurchaseHistoryRecord is the user-facing, append-only copy of a completed purchase.
// TransactionId is the table key so a record can only be written once per purchase.
type PurchaseHistoryRecord struct {
	TransactionId    string    `dynamodbav:"transaction_id"`
	RecordId         string    `dynamodbav:"record_id"`
	UserId           string    `dynamodbav:"user_id"`
	PackageId        string    `dynamodbav:"package_id"`
	TokenCount       int64     `dynamodbav:"token_count"`
	AmountMinorUnits int64     `dynamodbav:"amount_minor_units"`
	Currency         string    `dynamodbav:"currency"`
	ChargeIntentId   string    `dynamodbav:"charge_intent_id"`
	PurchasedAt      time.Time `dynamodbav:"purchased_at"`
}

// OrphanEvent records a gateway event that referenced a charge intent this system never created.
type OrphanEvent struct {
	EventId        string    `dynamodbav:"event_id"`
	EventType      string    `dynamodbav:"event_type"`
	ChargeIntentId string    `dynamodbav:"charge_intent_id"`
	UserId         string    `dynamodbav:"user_id,omitempty"`
	TokenCount     int64     `dynamodbav:"token_count,omitempty"`
	ReceivedAt     time.Time `dynamodbav:"received_at"`
}

// NotificationKind identifies the user-facing message to deliver.
type NotificationKind string

const (
	NotificationPurchaseCompleted NotificationKind = "purchase_completed"
	NotificationPurchaseFailed    NotificationKind = "purchase_failed"
)

// NotificationRequest is handed to the notification sink. It is never persisted.
type NotificationRequest struct {
	UserId  string            `json:"user_id"`
	Kind    NotificationKind  `json:"kind"`
	Payload map[string]string `json:"payload,omitempty"`
}
