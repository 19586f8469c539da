package payments

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockGateway returns synthetic references without network calls. Enabled by PAYMENT_GATEWAY_MOCK.
type MockGateway struct {
	hmacSecret string
	logger     *zap.Logger
	seq        atomic.Int64
}

var _ Gateway = (*MockGateway)(nil)

// NewMockGateway builds a mock gateway that still verifies signatures with secret.
func NewMockGateway(hmacSecret string, logger *zap.Logger) *MockGateway {
	logger.Info("payment gateway mock mode enabled")
	g := &MockGateway{hmacSecret: hmacSecret, logger: logger}
	g.seq.Store(100000)
	return g
}

func (g *MockGateway) Authenticate(ctx context.Context) (string, error) {
	return "mock-token", nil
}

func (g *MockGateway) CreateOrder(ctx context.Context, authToken string, amountCents int64, merchantOrderID, currency string) (string, error) {
	id := FormatID(g.seq.Add(1))
	g.logger.Debug("mock order created", zap.String("order_id", id), zap.String("merchant_order_id", merchantOrderID), zap.Int64("amount_cents", amountCents))
	return id, nil
}

func (g *MockGateway) CreatePaymentKey(ctx context.Context, req PaymentKeyRequest) (string, error) {
	return "mock-key-" + strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

func (g *MockGateway) PayWithWallet(ctx context.Context, paymentToken, walletPhone string) (ActionResult, error) {
	id := FormatID(g.seq.Add(1))
	return ActionResult{TransactionID: id, Pending: true, RedirectURL: "https://mock.invalid/wallet/" + id}, nil
}

func (g *MockGateway) VerifyHmac(payload TransactionCallback, signature string) bool {
	return verifyCallback(g.hmacSecret, payload, signature)
}

func (g *MockGateway) Inquiry(ctx context.Context, transactionID string) (ActionResult, error) {
	return ActionResult{TransactionID: transactionID, Success: true}, nil
}

func (g *MockGateway) Refund(ctx context.Context, transactionID string, amountCents int64) (ActionResult, error) {
	return ActionResult{TransactionID: transactionID, Success: true, AmountCents: amountCents}, nil
}

func (g *MockGateway) Void(ctx context.Context, transactionID string) (ActionResult, error) {
	return ActionResult{TransactionID: transactionID, Success: true}, nil
}

func (g *MockGateway) Capture(ctx context.Context, transactionID string, amountCents int64) (ActionResult, error) {
	return ActionResult{TransactionID: transactionID, Success: true, AmountCents: amountCents}, nil
}
