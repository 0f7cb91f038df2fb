package transactions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/token-purchases/pkg/api"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/storage"
	storage_mocks "github.com/chris/token-purchases/pkg/storage/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetTransactionById(t *testing.T) {
	txID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// 1. Setup
		mockStorage := new(storage_mocks.ApiStore)
		handler := NewTransactionsHandler(mockStorage)
		mockStorage.On("GetTransaction", mock.Anything, txID.String()).
			Return(&models.Transaction{Id: txID.String(), UserId: "u1", TokenCount: 5, Status: models.COMPLETED}, nil)

		// 2. Execute
		req := httptest.NewRequest(http.MethodGet, "/transactions/"+txID.String(), nil)
		rr := httptest.NewRecorder()
		handler.GetTransactionById(rr, req, txID)

		// 3. Assert
		require.Equal(t, http.StatusOK, rr.Code)
		var body api.Transaction
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, api.COMPLETED, body.Status)
		assert.Equal(t, int64(5), body.TokenCount)
		mockStorage.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockStorage := new(storage_mocks.ApiStore)
		handler := NewTransactionsHandler(mockStorage)
		mockStorage.On("GetTransaction", mock.Anything, txID.String()).
			Return(nil, fmt.Errorf("%w: %s", storage.ErrTransactionNotFound, txID))

		rr := httptest.NewRecorder()
		handler.GetTransactionById(rr, httptest.NewRequest(http.MethodGet, "/", nil), txID)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		var body api.Error
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, api.ErrorCodeNotFound, body.Code)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockStorage := new(storage_mocks.ApiStore)
		handler := NewTransactionsHandler(mockStorage)
		mockStorage.On("GetTransaction", mock.Anything, txID.String()).Return(nil, errors.New("throttled"))

		rr := httptest.NewRecorder()
		handler.GetTransactionById(rr, httptest.NewRequest(http.MethodGet, "/", nil), txID)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestListTransactionsByUserId(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockStorage := new(storage_mocks.ApiStore)
		handler := NewTransactionsHandler(mockStorage)
		mockStorage.On("ListTransactionsByUserID", mock.Anything, "u1").Return([]models.Transaction{
			{Id: "tx_2", UserId: "u1", Status: models.PENDING},
			{Id: "tx_1", UserId: "u1", Status: models.FAILED, FailureReason: "card_declined"},
		}, nil)

		rr := httptest.NewRecorder()
		handler.ListTransactionsByUserId(rr, httptest.NewRequest(http.MethodGet, "/accounts/u1/transactions", nil), "u1")

		require.Equal(t, http.StatusOK, rr.Code)
		var body []api.Transaction
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		require.Len(t, body, 2)
		assert.Equal(t, "tx_2", body[0].Id)
		assert.Equal(t, "card_declined", *body[1].FailureReason)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockStorage := new(storage_mocks.ApiStore)
		handler := NewTransactionsHandler(mockStorage)
		mockStorage.On("ListTransactionsByUserID", mock.Anything, "u1").Return(nil, errors.New("boom"))

		rr := httptest.NewRecorder()
		handler.ListTransactionsByUserId(rr, httptest.NewRequest(http.MethodGet, "/", nil), "u1")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
