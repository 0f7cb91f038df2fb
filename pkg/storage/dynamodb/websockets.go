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
)

// connectionTTL matches API Gateway's maximum websocket connection duration. Rows whose
// $disconnect never arrived are expired by the table's TTL on expires_at.
const connectionTTL = 2 * time.Hour

// userConnection is a row in the connections table, keyed by connection_id with a user_id index.
type userConnection struct {
	ConnectionID string `dynamodbav:"connection_id"`
	UserID       string `dynamodbav:"user_id"`
	ConnectedAt  string `dynamodbav:"connected_at"`
	ExpiresAt    int64  `dynamodbav:"expires_at"`
}

// AddConnection records that connectionID belongs to userID.
func (s *Store) AddConnection(ctx context.Context, connectionID, userID string) error {
	now := time.Now().UTC()
	item, err := attributevalue.MarshalMap(userConnection{
		ConnectionID: connectionID,
		UserID:       userID,
		ConnectedAt:  now.Format(time.RFC3339),
		ExpiresAt:    now.Add(connectionTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.WebsocketConnectionsTableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put connection %s: %w", connectionID, err)
	}
	return nil
}

// RemoveConnection forgets a connection. Removing an unknown connection is not an error.
func (s *Store) RemoveConnection(ctx context.Context, connectionID string) error {
	_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.WebsocketConnectionsTableName),
		Key: map[string]types.AttributeValue{
			"connection_id": &types.AttributeValueMemberS{Value: connectionID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete connection %s: %w", connectionID, err)
	}
	return nil
}

// GetConnectionsByUserID returns the user's unexpired connection ids, following every page of the index.
func (s *Store) GetConnectionsByUserID(ctx context.Context, userID string) ([]string, error) {
	var (
		ids       []string
		startKey  map[string]types.AttributeValue
		nowOnward = strconv.FormatInt(time.Now().Unix(), 10)
	)
	for {
		out, err := s.Client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.WebsocketConnectionsTableName),
			IndexName:              aws.String(userConnectionIndex),
			KeyConditionExpression: aws.String("user_id = :userID"),
			FilterExpression:       aws.String("attribute_not_exists(expires_at) OR expires_at > :now"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":userID": &types.AttributeValueMemberS{Value: userID},
				":now":    &types.AttributeValueMemberN{Value: nowOnward},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query connections for user %s: %w", userID, err)
		}

		var page []userConnection
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connections: %w", err)
		}
		for _, c := range page {
			ids = append(ids, c.ConnectionID)
		}

		if len(out.LastEvaluatedKey) == 0 {
			return ids, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
