package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Notification is the decoded payload of a provider callback or a pull
// status response. The provider sends amounts as JSON numbers and the
// creation timestamp as epoch milliseconds.
type Notification struct {
	OrderID     string          `json:"order_id"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	CreateDate  int64           `json:"create_date"`
	PayerEmail  string          `json:"sender_email"`
}

// Checkout carries the signed form fields the customer's browser posts
// to the provider's hosted payment page.
type Checkout struct {
	Data        string `json:"data"`
	Signature   string `json:"signature"`
	CheckoutURL string `json:"checkout_url"`
}

// SuccessOnPush reports whether a pushed callback status means the order
// is paid.
func SuccessOnPush(status string) bool {
	return status == "success" || status == "sandbox"
}

// SuccessOnPull reports whether a pulled status means the order is paid.
// The pull API additionally reports "wait_accept" for payments that have
// cleared the payer but not yet settled to the merchant.
func SuccessOnPull(status string) bool {
	return SuccessOnPush(status) || status == "wait_accept"
}

// Failed reports whether the status is a final failure or reversal.
func Failed(status string) bool {
	switch status {
	case "failure", "error", "reversed", "expired":
		return true
	}
	return false
}

// GatewayConfig holds the provider credentials and endpoints.
type GatewayConfig struct {
	PublicKey   string
	PrivateKey  string
	CheckoutURL string // hosted payment page
	RequestURL  string // server-to-server API
	ServerURL   string // our callback endpoint
	ResultURL   string // where the payer's browser returns
	Currency    string
	HTTPTimeout time.Duration
}

// Gateway signs, verifies and exchanges payloads with the payment
// provider. The wire format is an opaque base64 JSON blob plus a
// signature of base64(sha1(privateKey + data + privateKey)).
type Gateway struct {
	cfg    GatewayConfig
	client *http.Client
}

// NewGateway builds a Gateway with a bounded-timeout HTTP client.
func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.Currency == "" {
		cfg.Currency = "UAH"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// Sign computes the provider signature over an already-encoded data blob.
func (g *Gateway) Sign(data string) string {
	h := sha1.New()
	h.Write([]byte(g.cfg.PrivateKey + data + g.cfg.PrivateKey))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a callback signature in constant time.
func (g *Gateway) VerifySignature(data, signature string) bool {
	return hmac.Equal([]byte(g.Sign(data)), []byte(signature))
}

// CreateCheckout builds the signed form payload for a new order.
func (g *Gateway) CreateCheckout(orderID string, amount decimal.Decimal, description string) (*Checkout, error) {
	params := map[string]string{
		"action":      "pay",
		"amount":      amount.StringFixed(2),
		"currency":    g.cfg.Currency,
		"description": description,
		"order_id":    orderID,
		"version":     "3",
		"public_key":  g.cfg.PublicKey,
		"server_url":  g.cfg.ServerURL,
		"result_url":  g.cfg.ResultURL,
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode checkout params: %w", err)
	}
	data := base64.StdEncoding.EncodeToString(raw)
	return &Checkout{
		Data:        data,
		Signature:   g.Sign(data),
		CheckoutURL: g.cfg.CheckoutURL,
	}, nil
}

// DecodeCallback verifies and decodes a pushed notification. The
// signature is checked before the payload is even parsed.
func (g *Gateway) DecodeCallback(data, signature string) (*Notification, error) {
	if !g.VerifySignature(data, signature) {
		return nil, ErrSignature
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: data is not valid base64", ErrSignature)
	}
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if n.OrderID == "" || n.Status == "" {
		return nil, fmt.Errorf("decode notification: missing order_id or status")
	}
	return &n, nil
}

// Stale reports whether the notification's creation timestamp falls
// outside the accepted window around now: older than maxAge or more than
// maxSkew in the future. A missing timestamp is accepted.
func (n *Notification) Stale(now time.Time, maxAge, maxSkew time.Duration) bool {
	if n.CreateDate == 0 {
		return false
	}
	created := time.UnixMilli(n.CreateDate)
	return created.Before(now.Add(-maxAge)) || created.After(now.Add(maxSkew))
}

// PullStatus fetches the current order status from the provider's
// server-to-server API. Transport failures and provider 5xx responses
// surface as ErrProviderUnavailable so the caller reports "unknown, try
// later" instead of assuming a failed payment.
func (g *Gateway) PullStatus(ctx context.Context, orderID string) (*Notification, error) {
	params := map[string]string{
		"action":     "status",
		"version":    "3",
		"public_key": g.cfg.PublicKey,
		"order_id":   orderID,
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode status request: %w", err)
	}
	data := base64.StdEncoding.EncodeToString(raw)

	form := url.Values{}
	form.Set("data", data)
	form.Set("signature", g.Sign(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.RequestURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request rejected: %d", resp.StatusCode)
	}

	var n Notification
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return nil, fmt.Errorf("%w: decode status response: %v", ErrProviderUnavailable, err)
	}
	if n.OrderID == "" {
		n.OrderID = orderID
	}
	return &n, nil
}
