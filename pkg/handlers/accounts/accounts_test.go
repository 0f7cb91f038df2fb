package accounts

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/token-purchases/pkg/api"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/storage"
	storage_mocks "github.com/chris/token-purchases/pkg/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetAccountByUserId(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockStorage := new(storage_mocks.ApiStore)
		handler := NewAccountsHandler(mockStorage)
		mockStorage.On("GetAccount", mock.Anything, "u1").
			Return(&models.Account{UserId: "u1", TokenBalance: 5, TotalTokensPurchased: 5, ExternalCustomerId: "cus_1"}, nil)

		rr := httptest.NewRecorder()
		handler.GetAccountByUserId(rr, httptest.NewRequest(http.MethodGet, "/accounts/u1", nil), "u1")

		require.Equal(t, http.StatusOK, rr.Code)
		var body api.Account
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, int64(5), body.TokenBalance)
		assert.True(t, body.HasPaymentCustomer)
		assert.NotContains(t, rr.Body.String(), "cus_1")
		mockStorage.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockStorage := new(storage_mocks.ApiStore)
		handler := NewAccountsHandler(mockStorage)
		mockStorage.On("GetAccount", mock.Anything, "ghost").Return(nil, storage.ErrAccountNotFound)

		rr := httptest.NewRecorder()
		handler.GetAccountByUserId(rr, httptest.NewRequest(http.MethodGet, "/accounts/ghost", nil), "ghost")

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestGetAccountHistory(t *testing.T) {
	t.Run("Default Limit", func(t *testing.T) {
		mockStorage := new(storage_mocks.ApiStore)
		handler := NewAccountsHandler(mockStorage)
		mockStorage.On("ListHistoryByUserID", mock.Anything, "u1", int32(20)).
			Return([]models.PurchaseHistoryRecord{{TransactionId: "tx_1", TokenCount: 5}}, nil)

		rr := httptest.NewRecorder()
		handler.GetAccountHistory(rr, httptest.NewRequest(http.MethodGet, "/accounts/u1/history", nil), "u1", api.GetAccountHistoryParams{})

		require.Equal(t, http.StatusOK, rr.Code)
		var body []api.PurchaseHistoryRecord
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "tx_1", body[0].TransactionId)
		mockStorage.AssertExpectations(t)
	})

	t.Run("Limit Out Of Range", func(t *testing.T) {
		mockStorage := new(storage_mocks.ApiStore)
		handler := NewAccountsHandler(mockStorage)
		limit := int32(500)

		rr := httptest.NewRecorder()
		handler.GetAccountHistory(rr, httptest.NewRequest(http.MethodGet, "/", nil), "u1", api.GetAccountHistoryParams{Limit: &limit})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockStorage.AssertNotCalled(t, "ListHistoryByUserID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockStorage := new(storage_mocks.ApiStore)
		handler := NewAccountsHandler(mockStorage)
		mockStorage.On("ListHistoryByUserID", mock.Anything, "u1", int32(20)).Return(nil, errors.New("boom"))

		rr := httptest.NewRecorder()
		handler.GetAccountHistory(rr, httptest.NewRequest(http.MethodGet, "/", nil), "u1", api.GetAccountHistoryParams{})

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
