package accounts

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chris/token-purchases/pkg/api"
	"github.com/chris/token-purchases/pkg/mapping"
	"github.com/chris/token-purchases/pkg/storage"
)

const (
	defaultHistoryLimit int32 = 20
	maxHistoryLimit     int32 = 100
)

// AccountsHandler holds the dependencies for account-related handlers.
type AccountsHandler struct {
	Store storage.ApiStore
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(store storage.ApiStore) *AccountsHandler {
	return &AccountsHandler{Store: store}
}

// GetAccountByUserId returns the user's token balance and purchase totals.
func (h *AccountsHandler) GetAccountByUserId(w http.ResponseWriter, r *http.Request, userId string) {
	account, err := h.Store.GetAccount(r.Context(), userId)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			api.WriteError(w, http.StatusNotFound, api.ErrorCodeNotFound, "account not found")
			return
		}
		slog.Error("failed to retrieve account", "userId", userId, "error", err)
		api.WriteError(w, http.StatusInternalServerError, api.ErrorCodeInternal, "failed to retrieve account")
		return
	}

	api.WriteJSON(w, http.StatusOK, mapping.ToApiAccount(account))
}

// GetAccountHistory returns the user's completed purchases, newest first.
func (h *AccountsHandler) GetAccountHistory(w http.ResponseWriter, r *http.Request, userId string, params api.GetAccountHistoryParams) {
	limit := defaultHistoryLimit
	if params.Limit != nil {
		limit = *params.Limit
	}
	if limit < 1 || limit > maxHistoryLimit {
		api.WriteError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest,
			fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit))
		return
	}

	records, err := h.Store.ListHistoryByUserID(r.Context(), userId, limit)
	if err != nil {
		slog.Error("failed to list purchase history", "userId", userId, "error", err)
		api.WriteError(w, http.StatusInternalServerError, api.ErrorCodeInternal, "failed to retrieve purchase history")
		return
	}

	out := make([]*api.PurchaseHistoryRecord, len(records))
	for i, rec := range records {
		out[i] = mapping.ToApiHistoryRecord(&rec)
	}
	api.WriteJSON(w, http.StatusOK, out)
}
