package storage

import (
	"context"

	"github.com/chris/token-purchases/pkg/models"
)

// HistoryReader defines the interface for reading a user's purchase history.
type HistoryReader interface {
	// ListHistoryByUserID returns the user's history records, newest first.
	ListHistoryByUserID(ctx context.Context, userID string, limit int32) ([]models.PurchaseHistoryRecord, error)
}

// HistoryWriter appends purchase history.
type HistoryWriter interface {
	// AppendHistory writes rec once per transaction id. Returns ErrHistoryExists on a repeat.
	AppendHistory(ctx context.Context, rec *models.PurchaseHistoryRecord) error
}

// HistoryStore combines the reader and writer interfaces.
type HistoryStore interface {
	HistoryReader
	HistoryWriter
}

// OrphanStore records gateway events that reference no known transaction.
type OrphanStore interface {
	RecordOrphan(ctx context.Context, ev *models.OrphanEvent) error
	ListOrphans(ctx context.Context, limit int32) ([]models.OrphanEvent, error)
}
