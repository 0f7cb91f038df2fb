package mapping

import (
	"strings"

	"github.com/chris/token-purchases/pkg/api"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/purchase"
	"github.com/google/uuid"
)

// ToApiTransaction converts a domain Transaction model to an API Transaction model.
func ToApiTransaction(tx *models.Transaction) *api.Transaction {
	out := &api.Transaction{
		Id:               tx.Id,
		ChargeIntentId:   tx.ChargeIntentId,
		UserId:           tx.UserId,
		PackageId:        tx.PackageId,
		TokenCount:       tx.TokenCount,
		AmountMinorUnits: tx.AmountMinorUnits,
		Currency:         tx.Currency,
		Status:           api.TransactionStatus(tx.Status),
		CreatedAt:        tx.CreatedAt,
		UpdatedAt:        tx.UpdatedAt,
		CompletedAt:      tx.CompletedAt,
		FailedAt:         tx.FailedAt,
	}
	if tx.FailureReason != "" {
		reason := tx.FailureReason
		out.FailureReason = &reason
	}
	return out
}

// ToApiAccount converts a domain Account model to an API Account model.
// The gateway customer id stays internal.
func ToApiAccount(account *models.Account) *api.Account {
	return &api.Account{
		UserId:               account.UserId,
		TokenBalance:         account.TokenBalance,
		TotalTokensPurchased: account.TotalTokensPurchased,
		HasPaymentCustomer:   account.ExternalCustomerId != "",
		CreatedAt:            account.CreatedAt,
		UpdatedAt:            account.UpdatedAt,
	}
}

// ToApiHistoryRecord converts a domain PurchaseHistoryRecord to its API model.
func ToApiHistoryRecord(rec *models.PurchaseHistoryRecord) *api.PurchaseHistoryRecord {
	return &api.PurchaseHistoryRecord{
		TransactionId:    rec.TransactionId,
		RecordId:         rec.RecordId,
		PackageId:        rec.PackageId,
		TokenCount:       rec.TokenCount,
		AmountMinorUnits: rec.AmountMinorUnits,
		Currency:         rec.Currency,
		PurchasedAt:      rec.PurchasedAt,
	}
}

// ToPurchaseRequest converts an API NewPurchase to an initiator request.
func ToPurchaseRequest(p *api.NewPurchase) purchase.Request {
	return purchase.Request{
		UserId:           strings.TrimSpace(p.UserId),
		PackageId:        strings.TrimSpace(p.PackageId),
		TokenCount:       p.TokenCount,
		AmountMinorUnits: p.AmountMinorUnits,
		Currency:         strings.TrimSpace(p.Currency),
	}
}

// ToApiPurchaseCreated converts an initiator result. Transaction ids are UUIDs minted by the initiator.
func ToApiPurchaseCreated(res *purchase.Result) (*api.PurchaseCreated, error) {
	id, err := uuid.Parse(res.TransactionId)
	if err != nil {
		return nil, err
	}
	return &api.PurchaseCreated{ClientSecret: res.ClientSecret, TransactionId: id}, nil
}
