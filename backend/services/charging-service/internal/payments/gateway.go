// Package payments adapts the third-party payment gateway used to settle charging sessions.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ActionResult is the outcome of a transaction-level gateway call.
type ActionResult struct {
	TransactionID string          `json:"transaction_id"`
	Success       bool            `json:"success"`
	Pending       bool            `json:"pending"`
	AmountCents   int64           `json:"amount_cents"`
	RedirectURL   string          `json:"redirect_url,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// BillingData is the payer information the gateway requires on payment keys.
type BillingData struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// PaymentKeyRequest describes a payment key to issue for an order.
type PaymentKeyRequest struct {
	AuthToken     string
	AmountCents   int64
	OrderID       string
	Currency      string
	IntegrationID int
	Billing       BillingData
	Expiration    int
}

// Gateway is the payment provider contract. Calls are remote, fallible and never retried here.
type Gateway interface {
	Authenticate(ctx context.Context) (string, error)
	CreateOrder(ctx context.Context, authToken string, amountCents int64, merchantOrderID, currency string) (string, error)
	CreatePaymentKey(ctx context.Context, req PaymentKeyRequest) (string, error)
	PayWithWallet(ctx context.Context, paymentToken, walletPhone string) (ActionResult, error)
	VerifyHmac(payload TransactionCallback, signature string) bool
	Inquiry(ctx context.Context, transactionID string) (ActionResult, error)
	Refund(ctx context.Context, transactionID string, amountCents int64) (ActionResult, error)
	Void(ctx context.Context, transactionID string) (ActionResult, error)
	Capture(ctx context.Context, transactionID string, amountCents int64) (ActionResult, error)
}

// Integrations maps payment methods to gateway integration ids.
type Integrations struct {
	Card      int
	Wallet    int
	IFrameURL string
}

// CheckoutRequest is what the engine needs settled for one process.
type CheckoutRequest struct {
	AmountCents     int64
	MerchantOrderID string
	Currency        string
	Method          PaymentMethod
	Billing         BillingData
}

// CheckoutResult carries the references persisted on the process.
type CheckoutResult struct {
	OrderID     string
	PaymentKey  string
	RedirectURL string
	Method      string
}

// Checkout authenticates, creates the order and payment key, and for wallets starts the wallet payment.
func Checkout(ctx context.Context, gw Gateway, integrations Integrations, req CheckoutRequest) (CheckoutResult, error) {
	if gw == nil {
		return CheckoutResult{}, errors.New("payments: gateway not configured")
	}
	if req.AmountCents <= 0 {
		return CheckoutResult{}, errors.New("payments: amount must be positive")
	}
	if req.Method == nil {
		req.Method = Card{}
	}

	var integrationID int
	switch req.Method.(type) {
	case Card:
		integrationID = integrations.Card
	case Wallet:
		integrationID = integrations.Wallet
	default:
		return CheckoutResult{}, ErrUnknownMethod
	}

	token, err := gw.Authenticate(ctx)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("payments: authenticate: %w", err)
	}
	orderID, err := gw.CreateOrder(ctx, token, req.AmountCents, req.MerchantOrderID, req.Currency)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("payments: create order: %w", err)
	}
	key, err := gw.CreatePaymentKey(ctx, PaymentKeyRequest{
		AuthToken:     token,
		AmountCents:   req.AmountCents,
		OrderID:       orderID,
		Currency:      req.Currency,
		IntegrationID: integrationID,
		Billing:       req.Billing,
		Expiration:    3600,
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("payments: create payment key: %w", err)
	}

	result := CheckoutResult{OrderID: orderID, PaymentKey: key, Method: req.Method.Kind()}
	switch m := req.Method.(type) {
	case Card:
		if integrations.IFrameURL != "" {
			result.RedirectURL = integrations.IFrameURL + "?payment_token=" + key
		}
	case Wallet:
		action, err := gw.PayWithWallet(ctx, key, m.Phone)
		if err != nil {
			return CheckoutResult{}, fmt.Errorf("payments: wallet pay: %w", err)
		}
		result.RedirectURL = action.RedirectURL
	}
	return result, nil
}

// FormatID renders numeric gateway identifiers.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
