package models

// PaymentMethodKind tags how a booking or top-up was paid
type PaymentMethodKind string

const (
	PaymentMethodWallet PaymentMethodKind = "wallet"
	PaymentMethodCard   PaymentMethodKind = "card"
	PaymentMethodCash   PaymentMethodKind = "cash"
)

// PaymentMethod is a tagged variant: Wallet, Card(reference) or Cash.
// Reference holds the external gateway reference for Card payments.
type PaymentMethod struct {
	Kind      PaymentMethodKind `json:"kind"`
	Reference string            `json:"reference,omitempty"`
}

// WalletPayment returns the wallet variant
func WalletPayment() PaymentMethod { return PaymentMethod{Kind: PaymentMethodWallet} }

// CardPayment returns the gateway variant carrying its reference
func CardPayment(reference string) PaymentMethod {
	return PaymentMethod{Kind: PaymentMethodCard, Reference: reference}
}

// CashPayment returns the cash variant
func CashPayment() PaymentMethod { return PaymentMethod{Kind: PaymentMethodCash} }

// ParsePaymentMethodKind validates a client-supplied method name
func ParsePaymentMethodKind(s string) (PaymentMethodKind, error) {
	switch PaymentMethodKind(s) {
	case PaymentMethodWallet, PaymentMethodCard, PaymentMethodCash:
		return PaymentMethodKind(s), nil
	default:
		return "", NewValidationError("payment_method", "must be one of wallet, card, cash")
	}
}
