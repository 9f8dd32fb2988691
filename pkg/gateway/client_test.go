package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharido-labs/kharido-backend/pkg/config"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	client, err := NewClient(context.Background(), config.GatewayConfig{
		BaseURL:   baseURL,
		KeyID:     "rzp_test_key",
		KeySecret: "rzp_test_secret",
	}, logg)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	_, err := NewClient(context.Background(), config.GatewayConfig{KeySecret: "s"}, logg)
	assert.ErrorIs(t, err, errKeyIDRequired)

	_, err = NewClient(context.Background(), config.GatewayConfig{KeyID: "k"}, logg)
	assert.ErrorIs(t, err, errKeySecretRequired)
}

func TestSignAndVerifySignature(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")
	assert.True(t, VerifySignature("secret", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", sig+"00"))
	assert.False(t, VerifySignature("other", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_2", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", ""))
}

func TestCreateAndFetchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_test_secret", pass)

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/orders":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.EqualValues(t, 150000, payload["amount"])
			_ = json.NewEncoder(w).Encode(Order{ID: "order_abc", AmountPaise: 150000, Currency: "INR"})
		case r.Method == http.MethodGet && r.URL.Path == "/orders/order_abc":
			_ = json.NewEncoder(w).Encode(Order{ID: "order_abc", AmountPaise: 150000, Currency: "INR", Status: "created"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	id, err := client.CreateOrder(context.Background(), 150000, "INR", "rcpt-1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", id)

	order, err := client.FetchOrder(context.Background(), "order_abc")
	require.NoError(t, err)
	assert.EqualValues(t, 150000, order.AmountPaise)
}

func TestCaptureMapsGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"payment already captured"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.Capture(context.Background(), "pay_1", 1000, "INR")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGateway, typed.Code())
	assert.Contains(t, typed.Message(), "already captured")
}

func TestCaptureValidatesInput(t *testing.T) {
	client := newTestClient(t, "http://localhost:0")
	err := client.Capture(context.Background(), "", 1000, "INR")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	err = client.Capture(context.Background(), "pay_1", 0, "INR")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
