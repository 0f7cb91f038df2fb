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

// AppendHistory writes a purchase history record keyed by transaction id.
func (s *Store) AppendHistory(ctx context.Context, rec *models.PurchaseHistoryRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.HistoryTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(transaction_id)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return storage.ErrHistoryExists
		}
		return fmt.Errorf("failed to put history record: %w", err)
	}

	return nil
}

// ListHistoryByUserID returns up to limit history records for the user, newest first.
func (s *Store) ListHistoryByUserID(ctx context.Context, userID string, limit int32) ([]models.PurchaseHistoryRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.HistoryTableName),
		IndexName:              aws.String(userHistoryIndex),
		KeyConditionExpression: aws.String("user_id = :userID"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userID": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false), // Sort by purchased_at in descending order
		Limit:            &limit,
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query history by user ID: %w", err)
	}

	var records []models.PurchaseHistoryRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history records: %w", err)
	}

	return records, nil
}
