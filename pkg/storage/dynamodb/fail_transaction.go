package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/storage"
)

// FailTransaction atomically updates the transaction status from pending to failed.
func (s *Store) FailTransaction(ctx context.Context, txID, reason string, failedAt time.Time) error {
	nowAV, err := attributevalue.Marshal(failedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp for failure: %w", err)
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.TransactionsTableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: txID},
		},
		UpdateExpression:    aws.String("SET #status = :failed_status, failure_reason = :reason, updated_at = :now, failed_at = :now"),
		ConditionExpression: aws.String("#status = :pending_status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed_status":  &types.AttributeValueMemberS{Value: string(models.FAILED)},
			":pending_status": &types.AttributeValueMemberS{Value: string(models.PENDING)},
			":reason":         &types.AttributeValueMemberS{Value: reason},
			":now":            nowAV,
		},
	}

	if _, err := s.Client.UpdateItem(ctx, input); err != nil {
		if isConditionFailure(err) {
			return storage.ErrConcurrencyLost
		}
		return fmt.Errorf("failed to update transaction status to failed: %w", err)
	}

	return nil
}
