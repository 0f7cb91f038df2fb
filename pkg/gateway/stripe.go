package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL          = "https://api.stripe.com"
	defaultTimeout          = 12 * time.Second
	defaultWebhookTolerance = 5 * time.Minute
)

// StripeConfig configures a StripeClient.
type StripeConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	// Tolerance bounds the age of a webhook signature timestamp. Zero means five minutes.
	Tolerance time.Duration
}

// StripeClient talks to a Stripe-compatible REST API with form-encoded requests.
type StripeClient struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	tolerance     time.Duration
	client        *http.Client
	now           func() time.Time
}

// NewStripeClient creates a StripeClient.
func NewStripeClient(cfg StripeConfig) *StripeClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = defaultWebhookTolerance
	}
	return &StripeClient{
		baseURL:       baseURL,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		tolerance:     tolerance,
		client:        &http.Client{Timeout: timeout},
		now:           time.Now,
	}
}

// Make sure we conform to the interface
var _ Client = (*StripeClient)(nil)

type stripeCustomer struct {
	ID string `json:"id"`
}

type stripePaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type stripePaymentIntent struct {
	ID                 string              `json:"id"`
	ClientSecret       string              `json:"client_secret"`
	Status             string              `json:"status"`
	Amount             int64               `json:"amount"`
	Currency           string              `json:"currency"`
	Created            int64               `json:"created"`
	Metadata           map[string]any      `json:"metadata"`
	LastPaymentError   *stripePaymentError `json:"last_payment_error"`
	CancellationReason string              `json:"cancellation_reason"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// EnsureCustomer creates a customer tagged with the user id. The idempotency key is derived from
// the user id so concurrent or retried calls for one user collapse into one customer.
func (c *StripeClient) EnsureCustomer(ctx context.Context, userID string) (string, error) {
	values := url.Values{}
	values.Set("metadata["+MetadataUserID+"]", userID)

	var customer stripeCustomer
	if err := c.doRequest(ctx, http.MethodPost, "/v1/customers", values, "customer:"+userID, &customer); err != nil {
		return "", err
	}
	if customer.ID == "" {
		return "", fmt.Errorf("%w: customer response has no id", ErrGatewayRejected)
	}
	return customer.ID, nil
}

// CreateChargeIntent creates a payment intent carrying the purchase metadata.
func (c *StripeClient) CreateChargeIntent(ctx context.Context, req ChargeIntentRequest) (*ChargeIntent, error) {
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(req.AmountMinorUnits, 10))
	values.Set("currency", strings.ToLower(req.Currency))
	if req.CustomerId != "" {
		values.Set("customer", req.CustomerId)
	}
	values.Set("automatic_payment_methods[enabled]", "true")
	for key, value := range req.Metadata.Encode() {
		values.Set("metadata["+key+"]", value)
	}

	var intent stripePaymentIntent
	if err := c.doRequest(ctx, http.MethodPost, "/v1/payment_intents", values, req.IdempotencyKey, &intent); err != nil {
		return nil, err
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("%w: payment intent response has no id", ErrGatewayRejected)
	}
	return &ChargeIntent{Id: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// RetrieveChargeIntent fetches an intent and maps its status to an outcome.
func (c *StripeClient) RetrieveChargeIntent(ctx context.Context, intentID string) (*Event, error) {
	var intent stripePaymentIntent
	if err := c.doRequest(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil, "", &intent); err != nil {
		return nil, err
	}

	kind := EventPending
	switch intent.Status {
	case "succeeded":
		kind = EventSucceeded
	case "canceled":
		kind = EventFailed
	case "requires_payment_method":
		if intent.LastPaymentError != nil {
			kind = EventFailed
		}
	}

	ev := intentEvent(intent, kind)
	ev.Id = "lookup:" + intent.ID + ":" + intent.Status
	ev.Type = "payment_intent.lookup"
	return ev, nil
}

func (c *StripeClient) doRequest(ctx context.Context, method, path string, values url.Values, idempotencyKey string, out any) error {
	var body io.Reader
	if values != nil {
		body = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		message := "gateway request failed"
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err == nil && strings.TrimSpace(stripeErr.Error.Message) != "" {
			message = strings.TrimSpace(stripeErr.Error.Message)
		}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: status %d: %s", ErrGatewayUnavailable, resp.StatusCode, message)
		}
		return fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode, message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrGatewayUnavailable, err)
	}
	return nil
}

func intentEvent(intent stripePaymentIntent, kind EventKind) *Event {
	ev := &Event{
		Kind:             kind,
		ChargeIntentId:   intent.ID,
		AmountMinorUnits: intent.Amount,
		Currency:         strings.ToLower(strings.TrimSpace(intent.Currency)),
		Metadata:         metadataStrings(intent.Metadata),
	}
	if intent.Created > 0 {
		ev.CreatedAt = time.Unix(intent.Created, 0).UTC()
	}
	if kind == EventFailed {
		ev.FailureReason = failureReason(intent)
	}
	return ev
}

func failureReason(intent stripePaymentIntent) string {
	if intent.LastPaymentError != nil {
		if code := strings.TrimSpace(intent.LastPaymentError.Code); code != "" {
			return code
		}
		if msg := strings.TrimSpace(intent.LastPaymentError.Message); msg != "" {
			return msg
		}
	}
	if reason := strings.TrimSpace(intent.CancellationReason); reason != "" {
		return "canceled: " + reason
	}
	return "payment_failed"
}

func metadataStrings(metadata map[string]any) map[string]string {
	out := make(map[string]string, len(metadata))
	for key := range metadata {
		if value := readMetadataValue(metadata, key); value != "" {
			out[key] = value
		}
	}
	return out
}

func readMetadataValue(metadata map[string]any, key string) string {
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast != float64(int64(cast)) {
			return strconv.FormatFloat(cast, 'f', -1, 64)
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	}
	return ""
}
