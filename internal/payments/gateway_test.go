package payments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway(requestURL string) *Gateway {
	return NewGateway(GatewayConfig{
		PublicKey:   "pub_test",
		PrivateKey:  "priv_test",
		CheckoutURL: "https://pay.example.com/checkout",
		RequestURL:  requestURL,
		ServerURL:   "https://studio.example.com/api/v1/payments/callback",
		ResultURL:   "https://studio.example.com/payment/success",
	})
}

// encode builds a signed (data, signature) pair the way the provider
// would, using the gateway's own private key.
func encode(t *testing.T, g *Gateway, payload map[string]any) (string, string) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data := base64.StdEncoding.EncodeToString(raw)
	return data, g.Sign(data)
}

func TestDecodeCallbackRoundTrip(t *testing.T) {
	g := testGateway("")
	data, sig := encode(t, g, map[string]any{
		"order_id":     "ord-1",
		"status":       "success",
		"amount":       500.00,
		"currency":     "UAH",
		"create_date":  1756720000000,
		"sender_email": "payer@example.com",
	})

	n, err := g.DecodeCallback(data, sig)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", n.OrderID)
	assert.Equal(t, "success", n.Status)
	assert.True(t, n.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, int64(1756720000000), n.CreateDate)
	assert.Equal(t, "payer@example.com", n.PayerEmail)
}

func TestDecodeCallbackRejectsBadSignature(t *testing.T) {
	g := testGateway("")
	data, sig := encode(t, g, map[string]any{"order_id": "ord-1", "status": "success"})

	_, err := g.DecodeCallback(data, sig+"x")
	assert.ErrorIs(t, err, ErrSignature)

	// Tampering with the payload invalidates the original signature.
	tampered := base64.StdEncoding.EncodeToString([]byte(`{"order_id":"ord-2","status":"success"}`))
	_, err = g.DecodeCallback(tampered, sig)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestDecodeCallbackRequiresOrderAndStatus(t *testing.T) {
	g := testGateway("")
	data, sig := encode(t, g, map[string]any{"amount": 100})
	_, err := g.DecodeCallback(data, sig)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSignature)
}

func TestCreateCheckoutProducesVerifiableForm(t *testing.T) {
	g := testGateway("")
	co, err := g.CreateCheckout("ord-9", decimal.RequireFromString("750.50"), "Studio rental deposit")
	require.NoError(t, err)

	assert.True(t, g.VerifySignature(co.Data, co.Signature))
	assert.Equal(t, "https://pay.example.com/checkout", co.CheckoutURL)

	raw, err := base64.StdEncoding.DecodeString(co.Data)
	require.NoError(t, err)
	var params map[string]string
	require.NoError(t, json.Unmarshal(raw, &params))
	assert.Equal(t, "pay", params["action"])
	assert.Equal(t, "750.50", params["amount"])
	assert.Equal(t, "UAH", params["currency"])
	assert.Equal(t, "ord-9", params["order_id"])
	assert.Equal(t, "3", params["version"])
	assert.Equal(t, "pub_test", params["public_key"])
	assert.NotEmpty(t, params["server_url"])
	assert.NotEmpty(t, params["result_url"])
}

func TestNotificationStale(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		created time.Time
		stale   bool
	}{
		{"fresh", now.Add(-10 * time.Minute), false},
		{"just inside max age", now.Add(-59 * time.Minute), false},
		{"older than an hour", now.Add(-61 * time.Minute), true},
		{"slight clock skew", now.Add(4 * time.Minute), false},
		{"too far in the future", now.Add(6 * time.Minute), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := Notification{CreateDate: tc.created.UnixMilli()}
			assert.Equal(t, tc.stale, n.Stale(now, notificationMaxAge, notificationMaxSkew))
		})
	}

	t.Run("missing timestamp is accepted", func(t *testing.T) {
		n := Notification{}
		assert.False(t, n.Stale(now, notificationMaxAge, notificationMaxSkew))
	})
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, SuccessOnPush("success"))
	assert.True(t, SuccessOnPush("sandbox"))
	assert.False(t, SuccessOnPush("wait_accept"))

	assert.True(t, SuccessOnPull("wait_accept"))
	assert.True(t, SuccessOnPull("success"))
	assert.False(t, SuccessOnPull("failure"))

	assert.True(t, Failed("failure"))
	assert.True(t, Failed("reversed"))
	assert.False(t, Failed("processing"))
}

func TestPullStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.Form.Get("data"))
		assert.NotEmpty(t, r.Form.Get("signature"))
		fmt.Fprint(w, `{"order_id":"ord-3","status":"wait_accept","amount":300.00}`)
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	n, err := g.PullStatus(context.Background(), "ord-3")
	require.NoError(t, err)
	assert.Equal(t, "ord-3", n.OrderID)
	assert.Equal(t, "wait_accept", n.Status)
	assert.True(t, n.Amount.Equal(decimal.NewFromInt(300)))
}

func TestPullStatusProviderDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	_, err := g.PullStatus(context.Background(), "ord-3")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRetryBackoffBounds(t *testing.T) {
	for attempt := 1; attempt <= MaxReceiptAttempts; attempt++ {
		d := RetryBackoff(attempt)
		assert.GreaterOrEqual(t, d, time.Minute<<uint(attempt-1), "attempt %d", attempt)
		assert.LessOrEqual(t, d, time.Hour, "attempt %d", attempt)
	}
	assert.LessOrEqual(t, RetryBackoff(50), time.Hour)
}
