package mapping

import (
	"testing"
	"time"

	"github.com/chris/token-purchases/pkg/api"
	"github.com/chris/token-purchases/pkg/models"
	"github.com/chris/token-purchases/pkg/purchase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToApiTransaction(t *testing.T) {
	failedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tx := &models.Transaction{
		Id:            "tx_1",
		Status:        models.FAILED,
		FailureReason: "card_declined",
		FailedAt:      &failedAt,
	}

	out := ToApiTransaction(tx)

	assert.Equal(t, api.FAILED, out.Status)
	require.NotNil(t, out.FailureReason)
	assert.Equal(t, "card_declined", *out.FailureReason)
	assert.Nil(t, out.CompletedAt)
	assert.Nil(t, ToApiTransaction(&models.Transaction{Status: models.PENDING}).FailureReason)
}

func TestToApiAccount(t *testing.T) {
	out := ToApiAccount(&models.Account{UserId: "u1", TokenBalance: 5, ExternalCustomerId: "cus_1"})

	assert.Equal(t, int64(5), out.TokenBalance)
	assert.True(t, out.HasPaymentCustomer)
}

func TestToApiPurchaseCreated(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		out, err := ToApiPurchaseCreated(&purchase.Result{ClientSecret: "s", TransactionId: "0b6f5b4a-3f8e-4a59-9d1e-3c0c2b9c7a10"})
		require.NoError(t, err)
		assert.Equal(t, "0b6f5b4a-3f8e-4a59-9d1e-3c0c2b9c7a10", out.TransactionId.String())
	})

	t.Run("Invalid Id", func(t *testing.T) {
		_, err := ToApiPurchaseCreated(&purchase.Result{TransactionId: "tx_1"})
		assert.Error(t, err)
	})
}
