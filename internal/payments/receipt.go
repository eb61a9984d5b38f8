package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptRequest describes one fiscal receipt to issue for a paid order.
type ReceiptRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Description string
	Email       string
}

// Receipt is the fiscal registrar's record of an issued receipt.
type Receipt struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	FiscalCode string `json:"fiscal_code"`
}

// ReceiptIssuer creates fiscal receipts. Implementations must honor the
// context deadline.
type ReceiptIssuer interface {
	IssueReceipt(ctx context.Context, req ReceiptRequest) (*Receipt, error)
}

// ReceiptClient talks to a Checkbox-style fiscal registrar over HTTP.
type ReceiptClient struct {
	apiURL     string
	licenseKey string
	goodsCode  string
	client     *http.Client
}

// NewReceiptClient builds a client with a bounded request timeout.
func NewReceiptClient(apiURL, licenseKey string, timeout time.Duration) *ReceiptClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ReceiptClient{
		apiURL:     strings.TrimRight(apiURL, "/"),
		licenseKey: licenseKey,
		goodsCode:  "STUDIO-RENT-PREPAY",
		client:     &http.Client{Timeout: timeout},
	}
}

// IssueReceipt creates a sell receipt for a cashless payment. The
// registrar expects amounts in kopecks and quantity in thousandths.
func (c *ReceiptClient) IssueReceipt(ctx context.Context, req ReceiptRequest) (*Receipt, error) {
	kopecks := req.Amount.Mul(decimal.NewFromInt(100)).IntPart()

	payload := map[string]any{
		"id": uuid.NewString(),
		"goods": []map[string]any{
			{
				"code":     c.goodsCode,
				"name":     req.Description,
				"price":    kopecks,
				"quantity": 1000,
			},
		},
		"payments": []map[string]any{
			{
				"type":  "CASHLESS",
				"value": kopecks,
			},
		},
	}
	if req.Email != "" {
		payload["delivery"] = map[string]string{"email": req.Email}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode receipt payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v1/receipts/sell", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build receipt request: %w", err)
	}
	httpReq.Header.Set("X-License-Key", c.licenseKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: receipt API status %d: %s", ErrProviderUnavailable, resp.StatusCode, detail)
		}
		return nil, fmt.Errorf("receipt API rejected request: %d: %s", resp.StatusCode, detail)
	}

	var rec Receipt
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: decode receipt response: %v", ErrProviderUnavailable, err)
	}
	return &rec, nil
}
