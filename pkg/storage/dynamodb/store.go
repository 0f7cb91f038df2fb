package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/token-purchases/pkg/storage"
)

const (
	chargeIntentIndex   = "charge_intent_id-index"
	stalePendingIndex   = "status-created_at-index"
	userTransactionsIdx = "user_id-created_at-index"
	userHistoryIndex    = "user_id-purchased_at-index"
	userConnectionIndex = "user_id-index"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the Store.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// TableNames holds the DynamoDB table names used by the Store.
type TableNames struct {
	Accounts     string
	Transactions string
	History      string
	Orphans      string
	Connections  string
}

// Store implements the Storage interface using AWS DynamoDB.
type Store struct {
	Client                        DynamoDBAPI
	AccountsTableName             string
	TransactionsTableName         string
	HistoryTableName              string
	OrphansTableName              string
	WebsocketConnectionsTableName string
}

// New creates a new Store.
func New(client DynamoDBAPI, tables TableNames) *Store {
	return &Store{
		Client:                        client,
		AccountsTableName:             tables.Accounts,
		TransactionsTableName:         tables.Transactions,
		HistoryTableName:              tables.History,
		OrphansTableName:              tables.Orphans,
		WebsocketConnectionsTableName: tables.Connections,
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

// isConditionFailure reports whether err is a rejected condition expression, either on a single
// item write or inside a TransactWriteItems call.
func isConditionFailure(err error) bool {
	var condCheckFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condCheckFailed) {
		return true
	}
	var txCanceled *types.TransactionCanceledException
	if errors.As(err, &txCanceled) {
		for _, reason := range txCanceled.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}
