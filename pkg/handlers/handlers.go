package handlers

import (
	"github.com/chris/token-purchases/pkg/api"
	"github.com/chris/token-purchases/pkg/handlers/accounts"
	"github.com/chris/token-purchases/pkg/handlers/purchases"
	"github.com/chris/token-purchases/pkg/handlers/transactions"
	"github.com/chris/token-purchases/pkg/handlers/webhooks"
	"github.com/chris/token-purchases/pkg/metrics"
	"github.com/chris/token-purchases/pkg/storage"
)

// ApiHandler implements the API server interface by composing the per-resource handlers.
type ApiHandler struct {
	*accounts.AccountsHandler
	*purchases.PurchasesHandler
	*transactions.TransactionsHandler
	*webhooks.WebhooksHandler
}

// Dependencies wires an ApiHandler.
type Dependencies struct {
	Store     storage.ApiStore
	Initiator purchases.Initiator
	Verifier  webhooks.Verifier
	Engine    webhooks.Applier
	Cache     webhooks.HandledCache
	Metrics   *metrics.Metrics
}

// NewApiHandler creates a new ApiHandler.
func NewApiHandler(deps Dependencies) *ApiHandler {
	return &ApiHandler{
		AccountsHandler:     accounts.NewAccountsHandler(deps.Store),
		PurchasesHandler:    purchases.NewPurchasesHandler(deps.Initiator),
		TransactionsHandler: transactions.NewTransactionsHandler(deps.Store),
		WebhooksHandler:     webhooks.NewWebhooksHandler(deps.Verifier, deps.Engine, deps.Cache, deps.Metrics),
	}
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)
