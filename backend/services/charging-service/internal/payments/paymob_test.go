package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePaymob struct {
	mu        sync.Mutex
	calls     map[string]int
	bodies    map[string]map[string]interface{}
	failOrder bool
}

func newFakePaymob() *fakePaymob {
	return &fakePaymob{calls: map[string]int{}, bodies: map[string]map[string]interface{}{}}
}

func (f *fakePaymob) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakePaymob) body(path string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakePaymob) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.bodies[r.URL.Path] = body
	failOrder := f.failOrder
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/auth/tokens":
		_, _ = w.Write([]byte(`{"token":"auth-1"}`))
	case "/ecommerce/orders":
		if failOrder {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"detail":"upstream"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":5501}`))
	case "/acceptance/payment_keys":
		_, _ = w.Write([]byte(`{"token":"pk-1"}`))
	case "/acceptance/payments/pay":
		_, _ = w.Write([]byte(`{"id":777,"pending":true,"success":false,"redirect_url":"https://wallet.example/redirect"}`))
	case "/acceptance/void_refund/refund":
		_, _ = w.Write([]byte(`{"id":778,"success":true,"amount_cents":1500}`))
	case "/acceptance/void_refund/void":
		_, _ = w.Write([]byte(`{"id":779,"success":true}`))
	case "/acceptance/capture":
		_, _ = w.Write([]byte(`{"id":780,"success":true,"amount_cents":1500}`))
	case "/acceptance/transactions/777":
		if r.Header.Get("Authorization") != "Bearer auth-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":777,"success":true,"pending":false,"amount_cents":1500}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakePaymob) *PaymobClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewPaymobClient(PaymobConfig{BaseURL: srv.URL, APIKey: "key", HMACSecret: "secret"}, nil, zap.NewNop())
}

func TestCheckoutCard(t *testing.T) {
	fake := newFakePaymob()
	client := newTestClient(t, fake)

	res, err := Checkout(context.Background(), client, Integrations{Card: 11, Wallet: 22, IFrameURL: "https://pay.example/iframes/9"}, CheckoutRequest{
		AmountCents:     1500,
		MerchantOrderID: "m-1",
		Currency:        "EGP",
		Method:          Card{},
	})
	require.NoError(t, err)
	require.Equal(t, "5501", res.OrderID)
	require.Equal(t, "pk-1", res.PaymentKey)
	require.Equal(t, "https://pay.example/iframes/9?payment_token=pk-1", res.RedirectURL)
	require.Equal(t, KindCard, res.Method)
	require.Equal(t, float64(11), fake.body("/acceptance/payment_keys")["integration_id"])
	require.Zero(t, fake.count("/acceptance/payments/pay"))
}

func TestCheckoutWallet(t *testing.T) {
	fake := newFakePaymob()
	client := newTestClient(t, fake)

	res, err := Checkout(context.Background(), client, Integrations{Card: 11, Wallet: 22}, CheckoutRequest{
		AmountCents:     1500,
		MerchantOrderID: "m-2",
		Currency:        "EGP",
		Method:          Wallet{Phone: "01010101010"},
	})
	require.NoError(t, err)
	require.Equal(t, "https://wallet.example/redirect", res.RedirectURL)
	require.Equal(t, float64(22), fake.body("/acceptance/payment_keys")["integration_id"])
	source := fake.body("/acceptance/payments/pay")["source"].(map[string]interface{})
	require.Equal(t, "01010101010", source["identifier"])
}

func TestCheckoutReusesAuthToken(t *testing.T) {
	fake := newFakePaymob()
	client := newTestClient(t, fake)
	req := CheckoutRequest{AmountCents: 100, MerchantOrderID: "m", Currency: "EGP"}

	_, err := Checkout(context.Background(), client, Integrations{}, req)
	require.NoError(t, err)
	_, err = Checkout(context.Background(), client, Integrations{}, req)
	require.NoError(t, err)
	require.Equal(t, 1, fake.count("/auth/tokens"))
}

func TestCheckoutSurfacesGatewayErrors(t *testing.T) {
	fake := newFakePaymob()
	fake.failOrder = true
	client := newTestClient(t, fake)

	_, err := Checkout(context.Background(), client, Integrations{}, CheckoutRequest{AmountCents: 100, MerchantOrderID: "m", Currency: "EGP"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Zero(t, fake.count("/acceptance/payment_keys"))
}

func TestCheckoutRejectsNonPositiveAmount(t *testing.T) {
	_, err := Checkout(context.Background(), NewMockGateway("s", zap.NewNop()), Integrations{}, CheckoutRequest{})
	require.Error(t, err)
}

func TestTransactionActions(t *testing.T) {
	fake := newFakePaymob()
	client := newTestClient(t, fake)
	ctx := context.Background()

	res, err := client.Inquiry(ctx, "777")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "777", res.TransactionID)

	res, err = client.Refund(ctx, "777", 1500)
	require.NoError(t, err)
	require.Equal(t, "778", res.TransactionID)
	require.Equal(t, "777", fake.body("/acceptance/void_refund/refund")["transaction_id"])

	res, err = client.Void(ctx, "777")
	require.NoError(t, err)
	require.Equal(t, "779", res.TransactionID)

	res, err = client.Capture(ctx, "777", 1500)
	require.NoError(t, err)
	require.Equal(t, int64(1500), res.AmountCents)
}

func TestVerifyHmac(t *testing.T) {
	client := NewPaymobClient(PaymobConfig{HMACSecret: "secret"}, nil, zap.NewNop())

	cb := TransactionCallback{ID: 777, AmountCents: 1500, Success: true, Currency: "EGP", CreatedAt: "2026-03-01T12:00:00"}
	cb.Order.ID = 5501
	cb.SourceData.Type = "card"
	sig := SignCallback("secret", cb)

	require.True(t, client.VerifyHmac(cb, sig))
	require.False(t, client.VerifyHmac(cb, ""))
	require.False(t, client.VerifyHmac(cb, SignCallback("other", cb)))

	tampered := cb
	tampered.AmountCents = 1
	require.False(t, client.VerifyHmac(tampered, sig))
}

func TestDeliveryKeyTracksState(t *testing.T) {
	var pending TransactionCallback
	pending.ID = 42
	pending.Pending = true

	settled := pending
	settled.Pending = false
	settled.Success = true

	require.Equal(t, "42:p", pending.DeliveryKey())
	require.Equal(t, "42:s", settled.DeliveryKey())
	require.Equal(t, settled.DeliveryKey(), settled.DeliveryKey())

	refunded := settled
	refunded.IsRefunded = true
	require.Equal(t, "42:sr", refunded.DeliveryKey())
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("", "")
	require.NoError(t, err)
	require.Equal(t, Card{}, m)

	m, err = ParseMethod("Wallet", " 0100 ")
	require.NoError(t, err)
	require.Equal(t, Wallet{Phone: "0100"}, m)

	_, err = ParseMethod("wallet", "")
	require.Error(t, err)

	_, err = ParseMethod("crypto", "")
	require.ErrorIs(t, err, ErrUnknownMethod)
}
