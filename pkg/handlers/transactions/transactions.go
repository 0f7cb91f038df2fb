package transactions

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/chris/token-purchases/pkg/api"
	"github.com/chris/token-purchases/pkg/mapping"
	"github.com/chris/token-purchases/pkg/storage"
	"github.com/oapi-codegen/runtime/types"
)

// TransactionsHandler holds the dependencies for transaction-related handlers.
type TransactionsHandler struct {
	Store storage.ApiStore
}

// NewTransactionsHandler creates a new TransactionsHandler.
func NewTransactionsHandler(store storage.ApiStore) *TransactionsHandler {
	return &TransactionsHandler{Store: store}
}

// GetTransactionById handles the logic for retrieving a transaction by its ID.
func (h *TransactionsHandler) GetTransactionById(w http.ResponseWriter, r *http.Request, transactionId types.UUID) {
	domainTx, err := h.Store.GetTransaction(r.Context(), transactionId.String())
	if err != nil {
		if errors.Is(err, storage.ErrTransactionNotFound) {
			api.WriteError(w, http.StatusNotFound, api.ErrorCodeNotFound, "transaction not found")
			return
		}
		slog.Error("failed to retrieve transaction", "transactionId", transactionId, "error", err)
		api.WriteError(w, http.StatusInternalServerError, api.ErrorCodeInternal, "failed to retrieve transaction")
		return
	}

	api.WriteJSON(w, http.StatusOK, mapping.ToApiTransaction(domainTx))
}

// ListTransactionsByUserId handles the logic for retrieving all transactions for a user.
func (h *TransactionsHandler) ListTransactionsByUserId(w http.ResponseWriter, r *http.Request, userId string) {
	domainTxs, err := h.Store.ListTransactionsByUserID(r.Context(), userId)
	if err != nil {
		slog.Error("failed to list transactions", "userId", userId, "error", err)
		api.WriteError(w, http.StatusInternalServerError, api.ErrorCodeInternal, "failed to retrieve transactions")
		return
	}

	apiTxs := make([]*api.Transaction, len(domainTxs))
	for i, tx := range domainTxs {
		apiTxs[i] = mapping.ToApiTransaction(&tx)
	}

	api.WriteJSON(w, http.StatusOK, apiTxs)
}
