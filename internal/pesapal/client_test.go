package pesapal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pesapal-proxy/internal/apperrors"
	"pesapal-proxy/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(EndpointsFor(srv.URL), Credentials{ConsumerKey: "K", ConsumerSecret: "S"}, 5*time.Second, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_RequestToken(t *testing.T) {
	var got tokenRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/Auth/RequestToken", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"token": "T", "expiryDate": "2026-10-14T10:05:00Z", "status": "200"})
	})

	token, err := c.RequestToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T", token)
	assert.Equal(t, tokenRequest{ConsumerKey: "K", ConsumerSecret: "S"}, got)
}

func TestClient_RequestToken_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "denied"})
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "error object with 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{
					"error":  map[string]any{"error_type": "api_error", "code": "invalid_consumer_key_or_secret_provided"},
					"status": "500",
				})
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "no token field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"status": "200"})
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("<html>maintenance</html>"))
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)

			_, err := c.RequestToken(context.Background())
			require.Error(t, err)

			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.KindAuth, appErr.Kind)
			assert.Equal(t, tt.wantStatus, appErr.StatusCode)
			assert.NotEmpty(t, appErr.Raw)
			assert.False(t, appErr.Transient())
		})
	}
}

func TestClient_RequestToken_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(EndpointsFor(base), Credentials{}, time.Second, zap.NewNop())

	_, err := c.RequestToken(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuth))
	assert.ErrorIs(t, err, apperrors.ErrNetwork)
	assert.False(t, apperrors.IsTimeout(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetTransactionStatus(ctx, "T", "TRK-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindStatus))
	assert.True(t, apperrors.IsTimeout(err))

	appErr, _ := apperrors.As(err)
	assert.True(t, appErr.Transient())
}

func TestClient_SubmitOrder(t *testing.T) {
	var got models.OrderPayload
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Transactions/SubmitOrderRequest", r.URL.Path)
		require.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"order_tracking_id":  "TRK-1",
			"merchant_reference": got.ID,
			"redirect_url":       "https://gw.test/iframe?OrderTrackingId=TRK-1",
			"error":              nil,
			"status":             "200",
		})
	})

	payload := &models.OrderPayload{
		ID:             "ORDER-1",
		Currency:       "KES",
		Amount:         10,
		Description:    "Test",
		CallbackURL:    "https://app.test/cb",
		NotificationID: "ipn-1",
		BillingAddress: models.BillingAddress{EmailAddress: "a@b.com"},
	}

	resp, err := c.SubmitOrder(context.Background(), "T", payload)
	require.NoError(t, err)
	assert.Equal(t, "TRK-1", resp.OrderTrackingID)
	assert.Equal(t, "ORDER-1", resp.MerchantReference)
	assert.Equal(t, "https://gw.test/iframe?OrderTrackingId=TRK-1", resp.RedirectURL)
	assert.Equal(t, *payload, got)
	assert.NotEmpty(t, resp.Raw)
}

func TestClient_SubmitOrder_Rejections(t *testing.T) {
	tests := []struct {
		name             string
		status           int
		body             map[string]any
		wantStatus       int
		wantNotification bool
	}{
		{
			name:             "invalid notification id",
			status:           http.StatusOK,
			body:             map[string]any{"error": map[string]any{"error_type": "api_error", "code": "invalid_notification_id", "message": "Invalid notification id"}, "status": "500"},
			wantStatus:       http.StatusOK,
			wantNotification: true,
		},
		{
			name:       "missing tracking id",
			status:     http.StatusOK,
			body:       map[string]any{"status": "200"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "gateway 400",
			status:     http.StatusBadRequest,
			body:       map[string]any{"error": map[string]any{"code": "amount_exceeds_default_limit", "message": "Amount exceeds limit"}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			resp, err := c.SubmitOrder(context.Background(), "T", &models.OrderPayload{ID: "ORDER-1"})
			require.Error(t, err)
			assert.Nil(t, resp)

			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.KindOrder, appErr.Kind)
			assert.Equal(t, tt.wantStatus, appErr.StatusCode)
			assert.NotEmpty(t, appErr.Raw)
			assert.Equal(t, tt.wantNotification, errors.Is(err, apperrors.ErrInvalidNotificationID))
		})
	}
}

func TestClient_GetTransactionStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/Transactions/GetTransactionStatus", r.URL.Path)
		require.Equal(t, "TRK-1", r.URL.Query().Get("orderTrackingId"))
		require.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"payment_method":             "MpesaKE",
			"amount":                     10,
			"confirmation_code":          "QK12",
			"payment_status_description": "Completed",
			"status_code":                1,
			"merchant_reference":         "ORDER-1",
			"currency":                   "KES",
			"error":                      map[string]any{"error_type": nil, "code": nil, "message": nil},
			"status":                     "200",
		})
	})

	st, err := c.GetTransactionStatus(context.Background(), "T", "TRK-1")
	require.NoError(t, err)
	assert.Equal(t, "Completed", st.PaymentStatusDescription)
	assert.Equal(t, "MpesaKE", st.PaymentMethod)
	assert.Equal(t, 10.0, st.Amount)
	assert.Equal(t, 1, st.StatusCode)
	assert.Equal(t, "ORDER-1", st.MerchantReference)
}

func TestClient_GetTransactionStatus_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "boom"})
	})

	_, err := c.GetTransactionStatus(context.Background(), "T", "TRK-1")
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindStatus, appErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus())
}

func TestClient_RegisterIPN(t *testing.T) {
	var got registerIPNRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/URLSetup/RegisterIPN", r.URL.Path)
		require.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"ipn_id": "ipn-1", "url": got.URL})
	})

	id, err := c.RegisterIPN(context.Background(), "T", "https://proxy.test/api/pesapal/ipn")
	require.NoError(t, err)
	assert.Equal(t, "ipn-1", id)
	assert.Equal(t, registerIPNRequest{URL: "https://proxy.test/api/pesapal/ipn", IPNNotificationType: "POST"}, got)
}

func TestClient_RegisterIPN_MissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "200"})
	})

	_, err := c.RegisterIPN(context.Background(), "T", "https://proxy.test/api/pesapal/ipn")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindIPN))
}
