package webhooks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/chris/token-purchases/pkg/api"
	"github.com/chris/token-purchases/pkg/gateway"
	"github.com/chris/token-purchases/pkg/metrics"
	"github.com/chris/token-purchases/pkg/reconcile"
)

const maxPayloadBytes = 64 << 10

// Verifier authenticates and decodes a raw webhook delivery.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (*gateway.Event, error)
}

// Applier applies a verified event to the ledger.
type Applier interface {
	Apply(ctx context.Context, ev *gateway.Event) (reconcile.Outcome, error)
}

// HandledCache remembers events that need no further work.
type HandledCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkHandled(ctx context.Context, eventID string) error
}

// WebhooksHandler receives payment gateway deliveries. A 200 tells the gateway to stop redelivering;
// anything else asks it to try again.
type WebhooksHandler struct {
	Verifier Verifier
	Engine   Applier
	Cache    HandledCache
	Metrics  *metrics.Metrics
}

// NewWebhooksHandler creates a new WebhooksHandler. cache may be nil.
func NewWebhooksHandler(verifier Verifier, engine Applier, cache HandledCache, m *metrics.Metrics) *WebhooksHandler {
	return &WebhooksHandler{Verifier: verifier, Engine: engine, Cache: cache, Metrics: m}
}

// HandlePaymentWebhook verifies the delivery and hands it to the reconciliation engine.
func (h *WebhooksHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrorCodeInvalidRequest, "unable to read payload")
		return
	}

	ev, err := h.Verifier.Verify(payload, r.Header.Get(gateway.SignatureHeader))
	if err != nil {
		if errors.Is(err, gateway.ErrMalformedPayload) {
			slog.Warn("acknowledging undecodable webhook payload", "error", err)
			api.WriteJSON(w, http.StatusOK, api.WebhookAck{Received: true})
			return
		}
		slog.Warn("rejected webhook with invalid signature",
			"security_event", true, "remote_addr", r.RemoteAddr, "error", err)
		h.Metrics.ObserveSignatureRejected()
		api.WriteError(w, http.StatusBadRequest, api.ErrorCodeSignatureInvalid, "invalid signature")
		return
	}
	logger := slog.With("eventId", ev.Id, "eventType", ev.Type)

	ctx := r.Context()
	if h.Cache != nil {
		seen, err := h.Cache.Seen(ctx, ev.Id)
		if err != nil {
			logger.Warn("handled-event cache lookup failed", "error", err)
		} else if seen {
			logger.Debug("event already handled")
			api.WriteJSON(w, http.StatusOK, api.WebhookAck{Received: true})
			return
		}
	}

	outcome, err := h.Engine.Apply(ctx, ev)
	if !reconcile.IsAcknowledged(err) {
		logger.Error("event not applied, requesting redelivery", "error", err)
		api.WriteError(w, http.StatusServiceUnavailable, api.ErrorCodeRetryable, "event could not be processed, retry later")
		return
	}
	if err != nil {
		logger.Info("event acknowledged without applying", "reason", err)
	} else {
		logger.Debug("event processed", "outcome", outcome)
	}

	if h.Cache != nil {
		if err := h.Cache.MarkHandled(ctx, ev.Id); err != nil {
			logger.Warn("failed to mark event handled", "error", err)
		}
	}
	api.WriteJSON(w, http.StatusOK, api.WebhookAck{Received: true})
}
