package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/courtly/court-booking-backend/internal/config"
	"github.com/sirupsen/logrus"
)

// ErrManualRefund is returned by gateways that cannot refund through their API.
// The refund stays refund_pending for staff to settle.
var ErrManualRefund = errors.New("gateway does not support automatic refunds")

// CheckoutRequest describes one card charge
type CheckoutRequest struct {
	InvoiceID     string
	AmountCents   int64
	Currency      string
	Description   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ReturnURL     string
	CardToken     string
	Metadata      map[string]string
}

// CheckoutSession is the gateway's answer to a checkout. CheckoutURL is where
// the customer completes payment; Status is the gateway's own status word.
type CheckoutSession struct {
	Reference   string
	CheckoutURL string
	Status      string
}

// WebhookResult is a verified gateway callback
type WebhookResult struct {
	Reference string
	Success   bool
}

// PaymentGateway is the opaque card payment collaborator
type PaymentGateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	Refund(ctx context.Context, reference string, amountCents int64) error
	ParseWebhook(ctx context.Context, body []byte) (*WebhookResult, error)
}

// NewPaymentGateway builds the gateway selected by PAYMENT_PROVIDER. It
// returns nil for "none", in which case card payments are rejected.
func NewPaymentGateway(cfg config.PaymentConfig, logger *logrus.Logger) (PaymentGateway, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "payable":
		return NewPAYableGateway(cfg, logger), nil
	case "omise":
		return NewOmiseGateway(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// formatAmount renders cents as a decimal string, e.g. 4000 -> "40.00"
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
