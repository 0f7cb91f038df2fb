package storage

import (
	"context"

	"github.com/chris/token-purchases/pkg/models"
)

// AccountReader defines the interface for reading account data.
type AccountReader interface {
	// GetAccount retrieves the account for a user. Returns ErrAccountNotFound if none exists.
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
}

// AccountManager defines account writes outside of reconciliation.
type AccountManager interface {
	// LinkExternalCustomer stores customerID on the user's account only if no customer id is set yet,
	// creating the account if it does not exist. It returns the customer id that is stored after the
	// call, which is the caller's value if it won and the earlier writer's value otherwise.
	LinkExternalCustomer(ctx context.Context, userID, customerID string) (string, error)
}

// AccountStore combines the reader and manager interfaces.
type AccountStore interface {
	AccountReader
	AccountManager
}
