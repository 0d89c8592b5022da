package paymentgateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL: srv.URL + "/",
		APIKey:  "sk_test",
		Timeout: 2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testDisbursement() payroll.Disbursement {
	return payroll.Disbursement{
		ExternalID:  "rec-1",
		Amount:      decimal.RequireFromString("1234.5"),
		Method:      payroll.PaymentMethodStaffpesaWallet,
		Destination: "W-100",
		Narration:   "Salary 03/2025",
	}
}

func TestDisburse_Success(t *testing.T) {
	var got disbursementRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/disbursements", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "rec-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"pay_9","external_id":"rec-1","status":"succeeded"}}`))
	})

	receipt, err := client.Disburse(context.Background(), testDisbursement())
	require.NoError(t, err)
	assert.Equal(t, "pay_9", receipt.Reference)
	assert.Equal(t, StatusSucceeded, receipt.Status)

	assert.Equal(t, "1234.50", got.Amount)
	assert.Equal(t, "KES", got.Currency)
	assert.Equal(t, "staffpesa_wallet", got.Method)
	assert.Equal(t, "W-100", got.Destination)
}

func TestDisburse_PendingCountsAsAccepted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"pay_1","status":"pending"}}`))
	})

	receipt, err := client.Disburse(context.Background(), testDisbursement())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, receipt.Status)
}

func TestDisburse_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"wallet is frozen"}`))
	})

	_, err := client.Disburse(context.Background(), testDisbursement())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDisbursementRejected)
	assert.Contains(t, err.Error(), "wallet is frozen")
}

func TestDisburse_FailedStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"pay_2","status":"failed"},"message":"insufficient float"}`))
	})

	_, err := client.Disburse(context.Background(), testDisbursement())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDisbursementRejected)
	assert.Contains(t, err.Error(), "insufficient float")
}

func TestDisburse_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := client.Disburse(context.Background(), testDisbursement())
	assert.Error(t, err)
}
