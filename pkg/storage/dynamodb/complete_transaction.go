package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/storage"
)

// CompleteTransaction marks a pending transaction completed and credits the purchased tokens in
// one TransactWriteItems call. The status condition on the transaction item makes the credit
// happen at most once: a second caller gets storage.ErrConcurrencyLost and nothing is written.
func (s *Store) CompleteTransaction(ctx context.Context, tx *models.Transaction, completedAt time.Time) error {
	nowAV, err := attributevalue.Marshal(completedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp for completion: %w", err)
	}
	tokensAV := &types.AttributeValueMemberN{Value: strconv.FormatInt(tx.TokenCount, 10)}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				// Operation 1: Move the transaction from pending to completed.
				Update: &types.Update{
					TableName:           aws.String(s.TransactionsTableName),
					Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: tx.Id}},
					UpdateExpression:    aws.String("SET #status = :completed_status, updated_at = :now, completed_at = :now"),
					ConditionExpression: aws.String("#status = :pending_status"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":completed_status": &types.AttributeValueMemberS{Value: string(models.COMPLETED)},
						":pending_status":   &types.AttributeValueMemberS{Value: string(models.PENDING)},
						":now":              nowAV,
					},
				},
			},
			{
				// Operation 2: Credit the owner's account. ADD creates the counters if missing.
				Update: &types.Update{
					TableName: aws.String(s.AccountsTableName),
					Key:       map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: tx.UserId}},
					UpdateExpression: aws.String("SET updated_at = :now, created_at = if_not_exists(created_at, :now) " +
						"ADD token_balance :tokens, total_tokens_purchased :tokens"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":tokens": tokensAV,
						":now":    nowAV,
					},
				},
			},
		},
	}

	if _, err := s.Client.TransactWriteItems(ctx, input); err != nil {
		if isConditionFailure(err) {
			return storage.ErrConcurrencyLost
		}
		return fmt.Errorf("failed to execute completion transaction: %w", err)
	}

	return nil
}
