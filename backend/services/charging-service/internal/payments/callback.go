package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
)

// CallbackEnvelope is the body of a transaction-processed webhook.
type CallbackEnvelope struct {
	Type string              `json:"type"`
	Obj  TransactionCallback `json:"obj"`
}

// TransactionCallback is the transaction object the gateway posts after processing a payment.
type TransactionCallback struct {
	ID                   int64  `json:"id"`
	Pending              bool   `json:"pending"`
	AmountCents          int64  `json:"amount_cents"`
	Success              bool   `json:"success"`
	IsAuth               bool   `json:"is_auth"`
	IsCapture            bool   `json:"is_capture"`
	IsStandalonePayment  bool   `json:"is_standalone_payment"`
	IsVoided             bool   `json:"is_voided"`
	IsRefunded           bool   `json:"is_refunded"`
	Is3DSecure           bool   `json:"is_3d_secure"`
	IntegrationID        int64  `json:"integration_id"`
	HasParentTransaction bool   `json:"has_parent_transaction"`
	ErrorOccured         bool   `json:"error_occured"`
	Currency             string `json:"currency"`
	CreatedAt            string `json:"created_at"`
	Owner                int64  `json:"owner"`
	Order                struct {
		ID              int64  `json:"id"`
		MerchantOrderID string `json:"merchant_order_id"`
	} `json:"order"`
	SourceData struct {
		Pan     string `json:"pan"`
		Type    string `json:"type"`
		SubType string `json:"sub_type"`
	} `json:"source_data"`
}

// Settled reports a successful, non-pending, non-reversed payment.
func (c TransactionCallback) Settled() bool {
	return c.Success && !c.Pending && !c.IsVoided && !c.IsRefunded && !c.ErrorOccured
}

// DeliveryKey identifies one state of a transaction. The gateway posts the same transaction id
// again as it moves from pending to settled or reversed, so the id alone is not unique.
func (c TransactionCallback) DeliveryKey() string {
	flags := []struct {
		tag string
		set bool
	}{
		{"s", c.Success},
		{"p", c.Pending},
		{"r", c.IsRefunded},
		{"v", c.IsVoided},
		{"e", c.ErrorOccured},
	}
	var b strings.Builder
	b.WriteString(strconv.FormatInt(c.ID, 10))
	b.WriteByte(':')
	for _, f := range flags {
		if f.set {
			b.WriteString(f.tag)
		}
	}
	return b.String()
}

// hmacMessage concatenates the signed fields in the order the gateway signs them.
func (c TransactionCallback) hmacMessage() string {
	fields := []string{
		strconv.FormatInt(c.AmountCents, 10),
		c.CreatedAt,
		c.Currency,
		strconv.FormatBool(c.ErrorOccured),
		strconv.FormatBool(c.HasParentTransaction),
		strconv.FormatInt(c.ID, 10),
		strconv.FormatInt(c.IntegrationID, 10),
		strconv.FormatBool(c.Is3DSecure),
		strconv.FormatBool(c.IsAuth),
		strconv.FormatBool(c.IsCapture),
		strconv.FormatBool(c.IsRefunded),
		strconv.FormatBool(c.IsStandalonePayment),
		strconv.FormatBool(c.IsVoided),
		strconv.FormatInt(c.Order.ID, 10),
		strconv.FormatInt(c.Owner, 10),
		strconv.FormatBool(c.Pending),
		c.SourceData.Pan,
		c.SourceData.SubType,
		c.SourceData.Type,
		strconv.FormatBool(c.Success),
	}
	return strings.Join(fields, "")
}

// SignCallback returns the hex HMAC-SHA512 the gateway attaches to a callback.
func SignCallback(secret string, c TransactionCallback) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(c.hmacMessage()))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyCallback(secret string, c TransactionCallback, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignCallback(secret, c)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
