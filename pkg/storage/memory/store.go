// Package memory is an in-process implementation of the storage interfaces. It applies the same
// conditional write rules as the DynamoDB store and is used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/storage"
)

// Store keeps every table in maps guarded by a single mutex.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]models.Account
	transactions map[string]models.Transaction
	byIntent     map[string]string
	history      map[string]models.PurchaseHistoryRecord
	orphans      map[string]models.OrphanEvent
	connections  map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts:     make(map[string]models.Account),
		transactions: make(map[string]models.Transaction),
		byIntent:     make(map[string]string),
		history:      make(map[string]models.PurchaseHistoryRecord),
		orphans:      make(map[string]models.OrphanEvent),
		connections:  make(map[string]string),
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

func (s *Store) GetAccount(_ context.Context, userID string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[userID]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return &account, nil
}

func (s *Store) LinkExternalCustomer(_ context.Context, userID, customerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	account, ok := s.accounts[userID]
	if !ok {
		account = models.Account{UserId: userID, CreatedAt: now}
	}
	if account.ExternalCustomerId != "" {
		return account.ExternalCustomerId, nil
	}
	account.ExternalCustomerId = customerID
	account.UpdatedAt = now
	s.accounts[userID] = account
	return customerID, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx *models.Transaction) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.Id]; exists {
		return nil, storage.ErrTransactionExists
	}
	if owner, taken := s.byIntent[tx.ChargeIntentId]; taken && tx.ChargeIntentId != "" {
		return nil, fmt.Errorf("%w: charge intent %s belongs to transaction %s", storage.ErrTransactionExists, tx.ChargeIntentId, owner)
	}

	now := time.Now().UTC()
	tx.Status = models.PENDING
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	s.transactions[tx.Id] = *tx
	if tx.ChargeIntentId != "" {
		s.byIntent[tx.ChargeIntentId] = tx.Id
	}
	created := *tx
	return &created, nil
}

func (s *Store) GetTransaction(_ context.Context, txID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return nil, fmt.Errorf("transaction with ID %s: %w", txID, storage.ErrTransactionNotFound)
	}
	return &tx, nil
}

func (s *Store) GetTransactionByChargeIntent(_ context.Context, chargeIntentID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txID, ok := s.byIntent[chargeIntentID]
	if !ok {
		return nil, fmt.Errorf("charge intent %s: %w", chargeIntentID, storage.ErrTransactionNotFound)
	}
	tx := s.transactions[txID]
	return &tx, nil
}

func (s *Store) ListStalePending(_ context.Context, maxAge time.Duration) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.Status == models.PENDING && tx.CreatedAt.Before(cutoff) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListTransactionsByUserID(_ context.Context, userID string) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.UserId == userID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CompleteTransaction checks the pending status and applies the credit under one lock, which is the
// in-process equivalent of the conditional TransactWriteItems used by the DynamoDB store.
func (s *Store) CompleteTransaction(_ context.Context, tx *models.Transaction, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactions[tx.Id]
	if !ok || stored.Status != models.PENDING {
		return storage.ErrConcurrencyLost
	}

	at := completedAt.UTC()
	stored.Status = models.COMPLETED
	stored.CompletedAt = &at
	stored.UpdatedAt = at
	s.transactions[tx.Id] = stored

	account, ok := s.accounts[stored.UserId]
	if !ok {
		account = models.Account{UserId: stored.UserId, CreatedAt: at}
	}
	account.TokenBalance += stored.TokenCount
	account.TotalTokensPurchased += stored.TokenCount
	account.UpdatedAt = at
	s.accounts[stored.UserId] = account

	return nil
}

func (s *Store) FailTransaction(_ context.Context, txID, reason string, failedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactions[txID]
	if !ok || stored.Status != models.PENDING {
		return storage.ErrConcurrencyLost
	}

	at := failedAt.UTC()
	stored.Status = models.FAILED
	stored.FailureReason = reason
	stored.FailedAt = &at
	stored.UpdatedAt = at
	s.transactions[txID] = stored
	return nil
}

func (s *Store) AppendHistory(_ context.Context, rec *models.PurchaseHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.history[rec.TransactionId]; exists {
		return storage.ErrHistoryExists
	}
	s.history[rec.TransactionId] = *rec
	return nil
}

func (s *Store) ListHistoryByUserID(_ context.Context, userID string, limit int32) ([]models.PurchaseHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.PurchaseHistoryRecord
	for _, rec := range s.history {
		if rec.UserId == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) RecordOrphan(_ context.Context, ev *models.OrphanEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orphans[ev.EventId] = *ev
	return nil
}

func (s *Store) ListOrphans(_ context.Context, limit int32) ([]models.OrphanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.OrphanEvent, 0, len(s.orphans))
	for _, ev := range s.orphans {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AddConnection(_ context.Context, connectionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections[connectionID] = userID
	return nil
}

func (s *Store) RemoveConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.connections, connectionID)
	return nil
}

func (s *Store) GetConnectionsByUserID(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, owner := range s.connections {
		if owner == userID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
