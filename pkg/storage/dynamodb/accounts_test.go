package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/storage"
	"github.com/chris/token-purchases/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetAccount(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, AccountsTableName: "accounts"}

		accountAV, _ := attributevalue.MarshalMap(&models.Account{UserId: "u1", TokenBalance: 10, TotalTokensPurchased: 10, ExternalCustomerId: "cus_1"})
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: accountAV}, nil).Once()

		account, err := store.GetAccount(context.Background(), "u1")

		require.NoError(t, err)
		assert.Equal(t, int64(10), account.TokenBalance)
		assert.Equal(t, "cus_1", account.ExternalCustomerId)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, AccountsTableName: "accounts"}

		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil).Once()

		_, err := store.GetAccount(context.Background(), "u1")

		assert.ErrorIs(t, err, storage.ErrAccountNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestLinkExternalCustomer(t *testing.T) {
	t.Run("First Writer", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, AccountsTableName: "accounts"}

		mockClient.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
			return *in.ConditionExpression == "attribute_not_exists(external_customer_id)"
		})).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

		stored, err := store.LinkExternalCustomer(context.Background(), "u1", "cus_new")

		require.NoError(t, err)
		assert.Equal(t, "cus_new", stored)
		mockClient.AssertExpectations(t)
	})

	t.Run("Lost Race Adopts Stored Value", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, AccountsTableName: "accounts"}

		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{}).Once()
		accountAV, _ := attributevalue.MarshalMap(&models.Account{UserId: "u1", ExternalCustomerId: "cus_first"})
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: accountAV}, nil).Once()

		stored, err := store.LinkExternalCustomer(context.Background(), "u1", "cus_second")

		require.NoError(t, err)
		assert.Equal(t, "cus_first", stored)
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, AccountsTableName: "accounts"}

		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, errors.New("update failed")).Once()

		_, err := store.LinkExternalCustomer(context.Background(), "u1", "cus_new")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to link external customer")
		mockClient.AssertExpectations(t)
	})
}
