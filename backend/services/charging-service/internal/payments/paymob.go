package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const tokenLifetime = 50 * time.Minute

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// APIError is returned for non-success gateway responses.
type APIError struct {
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payments: %s returned %d: %s", e.Path, e.Status, e.Body)
}

// PaymobConfig configures the HTTP gateway client.
type PaymobConfig struct {
	BaseURL    string
	APIKey     string
	HMACSecret string
	Timeout    time.Duration
}

// PaymobClient talks to a Paymob-style accept API over JSON.
type PaymobClient struct {
	baseURL    string
	apiKey     string
	hmacSecret string
	client     HTTPDoer
	logger     *zap.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	now      func() time.Time
}

var _ Gateway = (*PaymobClient)(nil)

// NewPaymobClient returns HTTP client wrapper.
func NewPaymobClient(cfg PaymobConfig, client HTTPDoer, logger *zap.Logger) *PaymobClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &PaymobClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		hmacSecret: cfg.HMACSecret,
		client:     client,
		logger:     logger,
		now:        time.Now,
	}
}

// Authenticate exchanges the API key for an auth token, reusing it until shortly before expiry.
func (c *PaymobClient) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExp) {
		return c.token, nil
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/auth/tokens", map[string]string{"api_key": c.apiKey}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("payments: empty auth token")
	}
	c.token = resp.Token
	c.tokenExp = c.now().Add(tokenLifetime)
	return c.token, nil
}

// CreateOrder registers an order and returns its gateway id.
func (c *PaymobClient) CreateOrder(ctx context.Context, authToken string, amountCents int64, merchantOrderID, currency string) (string, error) {
	body := map[string]interface{}{
		"auth_token":        authToken,
		"delivery_needed":   false,
		"amount_cents":      amountCents,
		"currency":          currency,
		"merchant_order_id": merchantOrderID,
		"items":             []interface{}{},
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.post(ctx, "/ecommerce/orders", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == 0 {
		return "", errors.New("payments: order id missing in response")
	}
	return FormatID(resp.ID), nil
}

// CreatePaymentKey issues the payment token used by card iframes and wallet payments.
func (c *PaymobClient) CreatePaymentKey(ctx context.Context, req PaymentKeyRequest) (string, error) {
	billing := map[string]string{
		"first_name":      orNA(req.Billing.FirstName),
		"last_name":       orNA(req.Billing.LastName),
		"email":           orNA(req.Billing.Email),
		"phone_number":    orNA(req.Billing.PhoneNumber),
		"apartment":       "NA",
		"floor":           "NA",
		"street":          "NA",
		"building":        "NA",
		"shipping_method": "NA",
		"postal_code":     "NA",
		"city":            "NA",
		"country":         "NA",
		"state":           "NA",
	}
	body := map[string]interface{}{
		"auth_token":     req.AuthToken,
		"amount_cents":   req.AmountCents,
		"expiration":     req.Expiration,
		"order_id":       req.OrderID,
		"billing_data":   billing,
		"currency":       req.Currency,
		"integration_id": req.IntegrationID,
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/acceptance/payment_keys", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("payments: payment key missing in response")
	}
	return resp.Token, nil
}

// PayWithWallet starts a mobile wallet payment and returns the redirect for the payer.
func (c *PaymobClient) PayWithWallet(ctx context.Context, paymentToken, walletPhone string) (ActionResult, error) {
	body := map[string]interface{}{
		"source": map[string]string{
			"identifier": walletPhone,
			"subtype":    "WALLET",
		},
		"payment_token": paymentToken,
	}
	return c.action(ctx, "/acceptance/payments/pay", body)
}

// VerifyHmac checks the callback signature against the configured secret.
func (c *PaymobClient) VerifyHmac(payload TransactionCallback, signature string) bool {
	return verifyCallback(c.hmacSecret, payload, signature)
}

// Inquiry fetches the current state of a transaction.
func (c *PaymobClient) Inquiry(ctx context.Context, transactionID string) (ActionResult, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return ActionResult{}, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/acceptance/transactions/"+transactionID, nil)
	if err != nil {
		return ActionResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	raw, err := c.do(req, "/acceptance/transactions")
	if err != nil {
		return ActionResult{}, err
	}
	return decodeAction(raw)
}

// Refund returns captured funds.
func (c *PaymobClient) Refund(ctx context.Context, transactionID string, amountCents int64) (ActionResult, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return ActionResult{}, err
	}
	return c.action(ctx, "/acceptance/void_refund/refund", map[string]interface{}{
		"auth_token":     token,
		"transaction_id": transactionID,
		"amount_cents":   amountCents,
	})
}

// Void cancels a same-day transaction before settlement.
func (c *PaymobClient) Void(ctx context.Context, transactionID string) (ActionResult, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return ActionResult{}, err
	}
	return c.action(ctx, "/acceptance/void_refund/void?token="+token, map[string]interface{}{
		"transaction_id": transactionID,
	})
}

// Capture settles an authorized transaction.
func (c *PaymobClient) Capture(ctx context.Context, transactionID string, amountCents int64) (ActionResult, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return ActionResult{}, err
	}
	return c.action(ctx, "/acceptance/capture", map[string]interface{}{
		"auth_token":     token,
		"transaction_id": transactionID,
		"amount_cents":   amountCents,
	})
}

func (c *PaymobClient) action(ctx context.Context, path string, body interface{}) (ActionResult, error) {
	var raw json.RawMessage
	if err := c.post(ctx, path, body, &raw); err != nil {
		return ActionResult{}, err
	}
	return decodeAction(raw)
}

func decodeAction(raw json.RawMessage) (ActionResult, error) {
	var resp struct {
		ID          int64  `json:"id"`
		Success     bool   `json:"success"`
		Pending     bool   `json:"pending"`
		AmountCents int64  `json:"amount_cents"`
		RedirectURL string `json:"redirect_url"`
		IFrameURL   string `json:"iframe_redirection_url"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ActionResult{}, fmt.Errorf("payments: decode action: %w", err)
	}
	redirect := resp.RedirectURL
	if redirect == "" {
		redirect = resp.IFrameURL
	}
	return ActionResult{
		TransactionID: FormatID(resp.ID),
		Success:       resp.Success,
		Pending:       resp.Pending,
		AmountCents:   resp.AmountCents,
		RedirectURL:   redirect,
		Raw:           raw,
	}, nil
}

func (c *PaymobClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, data)
	if err != nil {
		return err
	}
	raw, err := c.do(req, path)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("payments: decode %s: %w", path, err)
	}
	return nil
}

func (c *PaymobClient) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *PaymobClient) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("payment gateway request failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		c.logger.Warn("payment gateway returned non-success", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return nil, &APIError{Path: path, Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "NA"
	}
	return v
}
