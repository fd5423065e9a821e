package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPClient talks to a paymob-style REST gateway: authenticate with
// the API key, register the order, then mint a payment key against it.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a gateway client against baseURL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// RegisterOrder registers the amount and returns the gateway's order id.
func (c *HTTPClient) RegisterOrder(ctx context.Context, req RegisterOrderRequest) (string, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	err = c.post(ctx, "/api/ecommerce/orders", map[string]any{
		"auth_token":        token,
		"merchant_order_id": req.MerchantOrderID,
		"amount_cents":      strconv.FormatInt(req.AmountCents, 10),
		"currency":          req.Currency,
		"delivery_needed":   "false",
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("register order: %w", err)
	}
	return strconv.FormatInt(resp.ID, 10), nil
}

// GeneratePaymentKey mints a checkout token for a registered order.
func (c *HTTPClient) GeneratePaymentKey(ctx context.Context, req PaymentKeyRequest) (string, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	err = c.post(ctx, "/api/acceptance/payment_keys", map[string]any{
		"auth_token":   token,
		"order_id":     req.GatewayOrderID,
		"amount_cents": strconv.FormatInt(req.AmountCents, 10),
		"currency":     req.Currency,
		"expiration":   3600,
		"billing_data": map[string]any{
			"email":      orNA(req.BillingEmail),
			"first_name": orNA(req.BillingName),
			"last_name":  "NA",
			"city":       orNA(req.BillingCity),
			"country":    "NA",
			"street":     "NA",
			"building":   "NA",
			"floor":      "NA",
			"apartment":  "NA",
			"phone_number": "NA",
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("generate payment key: %w", err)
	}
	if resp.Token == "" {
		return "", ErrGatewayRejected
	}
	return resp.Token, nil
}

// VerifyTransaction re-reads a transaction from the gateway.
func (c *HTTPClient) VerifyTransaction(ctx context.Context, transactionID string) (Verification, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return Verification{}, err
	}

	url := fmt.Sprintf("%s/api/acceptance/transactions/%s?token=%s", c.baseURL, transactionID, token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Verification{}, err
	}
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return Verification{}, fmt.Errorf("verify transaction: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return Verification{}, fmt.Errorf("verify transaction: %w (status %d)", ErrGatewayRejected, httpResp.StatusCode)
	}

	var resp struct {
		ID      int64 `json:"id"`
		Success bool  `json:"success"`
		Amount  int64 `json:"amount_cents"`
		Order   struct {
			ID int64 `json:"id"`
		} `json:"order"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Verification{}, fmt.Errorf("decode transaction: %w", err)
	}
	return Verification{
		TransactionID:  strconv.FormatInt(resp.ID, 10),
		GatewayOrderID: strconv.FormatInt(resp.Order.ID, 10),
		Success:        resp.Success,
		AmountCents:    resp.Amount,
	}, nil
}

// IframeURL builds the hosted checkout URL for a payment token.
func (c *HTTPClient) IframeURL(paymentToken string) string {
	return fmt.Sprintf("%s/api/acceptance/iframes/checkout?payment_token=%s", c.baseURL, paymentToken)
}

func (c *HTTPClient) authenticate(ctx context.Context) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.post(ctx, "/api/auth/tokens", map[string]any{"api_key": c.apiKey}, &resp)
	if err != nil {
		return "", fmt.Errorf("gateway auth: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("gateway auth: %w", ErrGatewayRejected)
	}
	return resp.Token, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w (status %d): %s", ErrGatewayRejected, resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func orNA(s string) string {
	if s == "" {
		return "NA"
	}
	return s
}
