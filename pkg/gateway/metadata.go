package gateway

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Metadata keys written on every charge intent.
const (
	MetadataUserID        = "user_id"
	MetadataPackageID     = "package_id"
	MetadataTokenCount    = "token_count"
	MetadataTransactionID = "transaction_id"
)

// ErrMissingMetadata is returned when an intent's metadata lacks the purchase fields.
var ErrMissingMetadata = errors.New("missing purchase metadata")

// PurchaseMetadata is the purchase description carried on a charge intent.
type PurchaseMetadata struct {
	UserId        string
	PackageId     string
	TokenCount    int64
	TransactionId string
}

// Encode renders the metadata as the flat string map the gateway stores.
func (m PurchaseMetadata) Encode() map[string]string {
	out := map[string]string{
		MetadataUserID:     m.UserId,
		MetadataPackageID:  m.PackageId,
		MetadataTokenCount: strconv.FormatInt(m.TokenCount, 10),
	}
	if m.TransactionId != "" {
		out[MetadataTransactionID] = m.TransactionId
	}
	return out
}

// ParsePurchaseMetadata reads purchase metadata back from an event. userId and a positive integer
// tokenCount are required.
func ParsePurchaseMetadata(raw map[string]string) (PurchaseMetadata, error) {
	userID := strings.TrimSpace(raw[MetadataUserID])
	if userID == "" {
		return PurchaseMetadata{}, fmt.Errorf("%w: %s", ErrMissingMetadata, MetadataUserID)
	}

	countRaw := strings.TrimSpace(raw[MetadataTokenCount])
	if countRaw == "" {
		return PurchaseMetadata{}, fmt.Errorf("%w: %s", ErrMissingMetadata, MetadataTokenCount)
	}
	count, err := strconv.ParseInt(countRaw, 10, 64)
	if err != nil || count <= 0 {
		return PurchaseMetadata{}, fmt.Errorf("%w: %s=%q is not a positive integer", ErrMissingMetadata, MetadataTokenCount, countRaw)
	}

	return PurchaseMetadata{
		UserId:        userID,
		PackageId:     strings.TrimSpace(raw[MetadataPackageID]),
		TokenCount:    count,
		TransactionId: strings.TrimSpace(raw[MetadataTransactionID]),
	}, nil
}
