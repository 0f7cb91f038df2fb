package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/chris/token-purchases/pkg/gateway"
	"github.com/chris/token-purchases/pkg/metrics"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidRequest is returned for purchase requests that can never succeed.
	ErrInvalidRequest = errors.New("invalid purchase request")
	// ErrRetryable wraps failures the client may retry, such as an unavailable gateway or store.
	ErrRetryable = errors.New("purchase could not be started, retry later")
)

// DefaultMinChargeAmount is the smallest charge, in minor units, the gateway accepts.
const DefaultMinChargeAmount = 50

// Request is a purchase initiation.
type Request struct {
	UserId           string
	PackageId        string
	TokenCount       int64
	AmountMinorUnits int64
	Currency         string
}

// Result is what the client needs to confirm the charge.
type Result struct {
	ClientSecret  string
	TransactionId string
}

// Initiator opens purchases: it links the user's gateway customer, creates the charge intent and
// writes the pending transaction the reconciliation engine will later settle.
type Initiator struct {
	store     storage.PurchaseStore
	gateway   gateway.Client
	metrics   *metrics.Metrics
	minCharge int64
	customers singleflight.Group

	// MaxTries bounds gateway attempts when it reports itself unavailable.
	MaxTries        uint
	InitialInterval time.Duration
	// CustomerTimeout bounds the shared create-and-link call for one user.
	CustomerTimeout time.Duration
	newID           func() string
}

// NewInitiator creates an Initiator. A minCharge of zero or less uses DefaultMinChargeAmount.
func NewInitiator(store storage.PurchaseStore, client gateway.Client, m *metrics.Metrics, minCharge int64) *Initiator {
	if minCharge <= 0 {
		minCharge = DefaultMinChargeAmount
	}
	return &Initiator{
		store:           store,
		gateway:         client,
		metrics:         m,
		minCharge:       minCharge,
		MaxTries:        4,
		InitialInterval: 200 * time.Millisecond,
		CustomerTimeout: 15 * time.Second,
		newID:           func() string { return uuid.NewString() },
	}
}

// Initiate validates req, creates a charge intent and records the pending transaction.
func (i *Initiator) Initiate(ctx context.Context, req Request) (*Result, error) {
	res, err := i.initiate(ctx, req)
	switch {
	case err == nil:
		i.metrics.ObservePurchase(metrics.OutcomeCreated)
	case errors.Is(err, ErrInvalidRequest):
		i.metrics.ObservePurchase(metrics.OutcomeInvalid)
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		i.metrics.ObservePurchase(metrics.OutcomeUnavailable)
	default:
		i.metrics.ObservePurchase(metrics.OutcomeRetryable)
	}
	return res, err
}

func (i *Initiator) initiate(ctx context.Context, req Request) (*Result, error) {
	if err := i.validate(req); err != nil {
		return nil, err
	}
	currency := strings.ToLower(req.Currency)

	customerID, err := i.resolveCustomer(ctx, req.UserId)
	if err != nil {
		return nil, err
	}

	txID := i.newID()
	logger := slog.With("userId", req.UserId, "transactionId", txID)

	intent, err := withRetry(ctx, i, func() (*gateway.ChargeIntent, error) {
		return i.gateway.CreateChargeIntent(ctx, gateway.ChargeIntentRequest{
			AmountMinorUnits: req.AmountMinorUnits,
			Currency:         currency,
			CustomerId:       customerID,
			Metadata: gateway.PurchaseMetadata{
				UserId:        req.UserId,
				PackageId:     req.PackageId,
				TokenCount:    req.TokenCount,
				TransactionId: txID,
			},
			IdempotencyKey: "purchase:" + txID,
		})
	})
	if err != nil {
		logger.Error("failed to create charge intent", "error", err)
		return nil, fmt.Errorf("failed to create charge intent: %w", err)
	}

	_, err = i.store.CreateTransaction(ctx, &models.Transaction{
		Id:               txID,
		ChargeIntentId:   intent.Id,
		UserId:           req.UserId,
		PackageId:        req.PackageId,
		TokenCount:       req.TokenCount,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         currency,
	})
	if err != nil {
		// The intent exists at the gateway with nothing in the ledger. Its webhook will be recorded as an orphan.
		logger.Error("CRITICAL: charge intent created but transaction write failed",
			"chargeIntentId", intent.Id, "error", err)
		return nil, fmt.Errorf("%w: failed to record transaction: %v", ErrRetryable, err)
	}

	logger.Info("purchase initiated", "chargeIntentId", intent.Id, "tokens", req.TokenCount)
	return &Result{ClientSecret: intent.ClientSecret, TransactionId: txID}, nil
}

func (i *Initiator) validate(req Request) error {
	switch {
	case strings.TrimSpace(req.UserId) == "":
		return fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	case strings.TrimSpace(req.PackageId) == "":
		return fmt.Errorf("%w: packageId is required", ErrInvalidRequest)
	case req.TokenCount <= 0:
		return fmt.Errorf("%w: tokenCount must be positive", ErrInvalidRequest)
	case len(req.Currency) != 3:
		return fmt.Errorf("%w: currency must be a three letter code", ErrInvalidRequest)
	case req.AmountMinorUnits < i.minCharge:
		return fmt.Errorf("%w: amountMinorUnits must be at least %d", ErrInvalidRequest, i.minCharge)
	}
	return nil
}

// resolveCustomer returns the user's gateway customer id, creating and linking one if needed.
// Concurrent calls for one user share a single gateway call; across processes the store's
// compare-and-set decides, and a losing racer adopts the stored id. The shared call is detached
// from any one caller, and each caller stops waiting when its own ctx ends.
func (i *Initiator) resolveCustomer(ctx context.Context, userID string) (string, error) {
	account, err := i.store.GetAccount(ctx, userID)
	if err == nil && account.ExternalCustomerId != "" {
		return account.ExternalCustomerId, nil
	}
	if err != nil && !errors.Is(err, storage.ErrAccountNotFound) {
		return "", fmt.Errorf("%w: failed to read account: %v", ErrRetryable, err)
	}

	flight := i.customers.DoChan(userID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.CustomerTimeout)
		defer cancel()

		created, err := withRetry(flightCtx, i, func() (string, error) {
			return i.gateway.EnsureCustomer(flightCtx, userID)
		})
		if err != nil {
			return "", fmt.Errorf("failed to create gateway customer: %w", err)
		}
		linked, err := i.store.LinkExternalCustomer(flightCtx, userID, created)
		if err != nil {
			return "", fmt.Errorf("%w: failed to link gateway customer: %v", ErrRetryable, err)
		}
		if linked != created {
			slog.Info("adopted concurrently linked gateway customer", "userId", userID, "customerId", linked)
		}
		return linked, nil
	})

	select {
	case res := <-flight:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// withRetry retries op while the gateway reports itself unavailable.
func withRetry[T any](ctx context.Context, i *Initiator, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = i.InitialInterval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, gateway.ErrGatewayUnavailable) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(i.MaxTries))
}
