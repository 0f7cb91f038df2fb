package purchases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chris/token-purchases/pkg/api"
	"github.com/chris/token-purchases/pkg/gateway"
	"github.com/chris/token-purchases/pkg/mapping"
	"github.com/chris/token-purchases/pkg/purchase"
)

// Initiator starts a purchase.
type Initiator interface {
	Initiate(ctx context.Context, req purchase.Request) (*purchase.Result, error)
}

// PurchasesHandler holds the dependencies for purchase-related handlers.
type PurchasesHandler struct {
	Initiator Initiator
}

// NewPurchasesHandler creates a new PurchasesHandler.
func NewPurchasesHandler(initiator Initiator) *PurchasesHandler {
	return &PurchasesHandler{Initiator: initiator}
}

// CreatePurchase opens a charge intent and a pending transaction for the requested package.
func (h *PurchasesHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var body api.CreatePurchaseJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	res, err := h.Initiator.Initiate(r.Context(), mapping.ToPurchaseRequest(&body))
	if err != nil {
		switch {
		case errors.Is(err, purchase.ErrInvalidRequest):
			api.WriteError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, err.Error())
		case errors.Is(err, gateway.ErrGatewayRejected):
			api.WriteError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, "payment gateway rejected the purchase")
		case errors.Is(err, gateway.ErrGatewayUnavailable):
			api.WriteError(w, http.StatusServiceUnavailable, api.ErrorCodeGatewayUnavailable, "payment gateway unavailable, retry later")
		default:
			slog.Error("failed to initiate purchase", "userId", body.UserId, "error", err)
			api.WriteError(w, http.StatusServiceUnavailable, api.ErrorCodeRetryable, "purchase could not be started, retry later")
		}
		return
	}

	created, err := mapping.ToApiPurchaseCreated(res)
	if err != nil {
		slog.Error("initiator returned a malformed transaction id", "transactionId", res.TransactionId, "error", err)
		api.WriteError(w, http.StatusInternalServerError, api.ErrorCodeInternal, "failed to write response")
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}
