package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/storage"
)

// GetTransaction retrieves a transaction from DynamoDB by its ID.
func (s *Store) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": txID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction ID: %w", err)
	}

	input := &dynamodb.GetItemInput{
		TableName:      &s.TransactionsTableName,
		Key:            key,
		ConsistentRead: aws.Bool(true),
	}

	result, err := s.Client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("transaction with ID %s: %w", txID, storage.ErrTransactionNotFound)
	}

	var tx models.Transaction
	if err := attributevalue.UnmarshalMap(result.Item, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}

	return &tx, nil
}

// GetTransactionByChargeIntent finds the transaction for a charge intent through the GSI and then
// re-reads the base item with a consistent read, since index projections can lag behind writes.
func (s *Store) GetTransactionByChargeIntent(ctx context.Context, chargeIntentID string) (*models.Transaction, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.TransactionsTableName),
		IndexName:              aws.String(chargeIntentIndex),
		KeyConditionExpression: aws.String("charge_intent_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: chargeIntentID},
		},
		ProjectionExpression: aws.String("id"),
		Limit:                aws.Int32(1),
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction by charge intent: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("charge intent %s: %w", chargeIntentID, storage.ErrTransactionNotFound)
	}

	var ref struct {
		Id string `dynamodbav:"id"`
	}
	if err := attributevalue.UnmarshalMap(result.Items[0], &ref); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction reference: %w", err)
	}

	return s.GetTransaction(ctx, ref.Id)
}
