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

// GetAccount retrieves an account record from DynamoDB.
func (s *Store) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account user ID: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.AccountsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, storage.ErrAccountNotFound
	}

	var account models.Account
	if err := attributevalue.UnmarshalMap(result.Item, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return &account, nil
}

// LinkExternalCustomer sets external_customer_id on the account if it has never been set.
// The account item is created on the fly with zero balances when it does not exist yet.
func (s *Store) LinkExternalCustomer(ctx context.Context, userID, customerID string) (string, error) {
	nowAV, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to marshal timestamp for customer link: %w", err)
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.AccountsTableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		UpdateExpression: aws.String("SET external_customer_id = :cid, updated_at = :now, " +
			"created_at = if_not_exists(created_at, :now), " +
			"token_balance = if_not_exists(token_balance, :zero), " +
			"total_tokens_purchased = if_not_exists(total_tokens_purchased, :zero)"),
		ConditionExpression: aws.String("attribute_not_exists(external_customer_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid":  &types.AttributeValueMemberS{Value: customerID},
			":now":  nowAV,
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	}

	_, err = s.Client.UpdateItem(ctx, input)
	if err == nil {
		return customerID, nil
	}
	if !isConditionFailure(err) {
		return "", fmt.Errorf("failed to link external customer: %w", err)
	}

	// Someone else linked a customer first. Their value wins.
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to read linked customer: %w", err)
	}
	return account.ExternalCustomerId, nil
}
