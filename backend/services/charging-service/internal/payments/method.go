package payments

import (
	"errors"
	"fmt"
	"strings"
)

// PaymentMethod is either Card or Wallet.
type PaymentMethod interface {
	Kind() string
	isPaymentMethod()
}

// Card pays through the hosted card iframe.
type Card struct{}

// Wallet pays through a mobile wallet identified by phone number.
type Wallet struct {
	Phone string
}

const (
	KindCard   = "card"
	KindWallet = "wallet"
)

func (Card) Kind() string   { return KindCard }
func (Wallet) Kind() string { return KindWallet }

func (Card) isPaymentMethod()   {}
func (Wallet) isPaymentMethod() {}

// ErrUnknownMethod is returned for unsupported payment method kinds.
var ErrUnknownMethod = errors.New("payments: unknown payment method")

// ParseMethod builds a PaymentMethod from its wire form.
func ParseMethod(kind, walletPhone string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindCard:
		return Card{}, nil
	case KindWallet:
		phone := strings.TrimSpace(walletPhone)
		if phone == "" {
			return nil, errors.New("payments: wallet phone is required")
		}
		return Wallet{Phone: phone}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, kind)
	}
}
