package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chris/token-purchases/pkg/models"
)

// RecordOrphan stores an orphan event keyed by the gateway event id. Redelivery of the same event
// overwrites the record with identical content.
func (s *Store) RecordOrphan(ctx context.Context, ev *models.OrphanEvent) error {
	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal orphan event: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.OrphansTableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put orphan event: %w", err)
	}

	return nil
}

// ListOrphans returns up to limit recorded orphan events in table order.
func (s *Store) ListOrphans(ctx context.Context, limit int32) ([]models.OrphanEvent, error) {
	result, err := s.Client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.OrphansTableName),
		Limit:     &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan orphan events: %w", err)
	}

	var events []models.OrphanEvent
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal orphan events: %w", err)
	}

	return events, nil
}
