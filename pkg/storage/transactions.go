package storage

import (
	"context"
	"time"

	"github.com/chris/token-purchases/pkg/models"
)

// TransactionReader defines the interface for reading transaction data.
type TransactionReader interface {
	// GetTransaction retrieves a transaction by its ID.
	GetTransaction(ctx context.Context, txID string) (*models.Transaction, error)

	// GetTransactionByChargeIntent retrieves the transaction created for a gateway charge intent.
	GetTransactionByChargeIntent(ctx context.Context, chargeIntentID string) (*models.Transaction, error)

	// ListStalePending retrieves transactions that have been pending for longer than the specified duration.
	ListStalePending(ctx context.Context, maxAge time.Duration) ([]models.Transaction, error)

	// ListTransactionsByUserID retrieves all transactions for a specific user.
	ListTransactionsByUserID(ctx context.Context, userID string) ([]models.Transaction, error)
}

// TransactionManager defines the interface for creating transactions before they are reconciled.
type TransactionManager interface {
	// CreateTransaction writes a new pending transaction. Returns ErrTransactionExists if the id is taken.
	CreateTransaction(ctx context.Context, newTx *models.Transaction) (*models.Transaction, error)
}

// TransactionStore combines the reader and manager interfaces.
type TransactionStore interface {
	TransactionReader
	TransactionManager
}

// ReconciliationStore defines the terminal state transitions applied when gateway events arrive.
// Both transitions are conditional on the transaction still being pending and return
// ErrConcurrencyLost when that condition does not hold.
type ReconciliationStore interface {
	TransactionReader

	// CompleteTransaction moves the transaction to completed and credits its token count to the
	// owner's account as a single atomic write.
	CompleteTransaction(ctx context.Context, tx *models.Transaction, completedAt time.Time) error

	// FailTransaction moves the transaction to failed and records the reason. Balances are untouched.
	FailTransaction(ctx context.Context, txID, reason string, failedAt time.Time) error
}
