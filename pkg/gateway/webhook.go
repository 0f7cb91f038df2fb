package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header carrying the webhook signature.
const SignatureHeader = "Stripe-Signature"

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Verify checks a "t=<unix>,v1=<hex>" signature header: an HMAC-SHA256 of "<t>.<payload>" keyed
// with the webhook secret, with t no further than the tolerance from now.
func (c *StripeClient) Verify(payload []byte, signatureHeader string) (*Event, error) {
	if c.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrSignatureInvalid)
	}

	ts, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, ErrSignatureInvalid
	}

	signedAt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, ErrSignatureInvalid
	}
	age := c.now().Sub(time.Unix(signedAt, 0))
	if age > c.tolerance || age < -c.tolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	expected := ComputeSignature(c.webhookSecret, ts, payload)
	matched := false
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrSignatureInvalid
	}

	return parseEvent(payload)
}

// ComputeSignature returns the hex signature for a payload signed at timestamp ts.
func ComputeSignature(secret, ts string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(ts + "." + string(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeaderValue builds a header value for payload signed at the given time.
func SignatureHeaderValue(secret string, at time.Time, payload []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + ComputeSignature(secret, ts, payload)
}

func parseEvent(payload []byte) (*Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, fmt.Errorf("%w: event has no id", ErrMalformedPayload)
	}

	var kind EventKind
	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		kind = EventSucceeded
	case "payment_intent.payment_failed", "payment_intent.canceled":
		kind = EventFailed
	default:
		return &Event{Id: event.ID, Type: event.Type, Kind: EventUnsupported}, nil
	}

	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, fmt.Errorf("%w: payment intent has no id", ErrMalformedPayload)
	}

	ev := intentEvent(intent, kind)
	ev.Id = event.ID
	ev.Type = event.Type
	if event.Created > 0 {
		ev.CreatedAt = time.Unix(event.Created, 0).UTC()
	}
	return ev, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	signatures := []string{}
	for _, part := range strings.Split(header, ",") {
		keyValue := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid signature header")
	}
	return timestamp, signatures, nil
}
