package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/storage"
)

const chargeIntentGuardPrefix = "charge_intent#"

// chargeIntentGuard claims a charge intent id inside the transactions table. It carries no status,
// user_id or charge_intent_id attribute, so it never appears in the table's indexes.
type chargeIntentGuard struct {
	Id            string `dynamodbav:"id"`
	TransactionId string `dynamodbav:"transaction_id"`
}

func chargeIntentGuardKey(chargeIntentID string) string {
	return chargeIntentGuardPrefix + chargeIntentID
}

// CreateTransaction writes a new pending transaction. The transaction and a guard item keyed by its
// charge intent are put in one TransactWriteItems call, so a charge intent is owned by at most one
// transaction. Either collision returns storage.ErrTransactionExists.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	now := time.Now().UTC()
	tx.Status = models.PENDING
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	// created_at is a GSI range key compared as a string; whole seconds keep it fixed width.
	tx.CreatedAt = sortableTime(tx.CreatedAt)
	tx.UpdatedAt = now

	txAV, err := attributevalue.MarshalMap(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	items := []types.TransactWriteItem{
		{
			// Operation 1: The transaction itself.
			Put: &types.Put{
				TableName:           aws.String(s.TransactionsTableName),
				Item:                txAV,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		},
	}
	if tx.ChargeIntentId != "" {
		guardAV, err := attributevalue.MarshalMap(chargeIntentGuard{
			Id:            chargeIntentGuardKey(tx.ChargeIntentId),
			TransactionId: tx.Id,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal charge intent guard: %w", err)
		}
		// Operation 2: Claim the charge intent.
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.TransactionsTableName),
				Item:                guardAV,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		})
	}

	if _, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		if isConditionFailure(err) {
			if intentTaken(err) {
				return nil, fmt.Errorf("%w: charge intent %s already has a transaction", storage.ErrTransactionExists, tx.ChargeIntentId)
			}
			return nil, storage.ErrTransactionExists
		}
		return nil, fmt.Errorf("failed to create transaction in DynamoDB: %w", err)
	}

	return tx, nil
}

// intentTaken reports whether the guard put, the second item, failed its condition.
func intentTaken(err error) bool {
	var txCanceled *types.TransactionCanceledException
	if !errors.As(err, &txCanceled) || len(txCanceled.CancellationReasons) < 2 {
		return false
	}
	code := txCanceled.CancellationReasons[1].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

// sortableTime drops sub-second precision so marshalled timestamps sort lexically in time order.
func sortableTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
