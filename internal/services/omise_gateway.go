package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/courtly/court-booking-backend/internal/config"
	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/sirupsen/logrus"
)

// OmiseGateway charges cards through the Omise charges API
type OmiseGateway struct {
	client   *omise.Client
	currency string
	logger   *logrus.Logger
}

// NewOmiseGateway creates a new OmiseGateway
func NewOmiseGateway(cfg config.PaymentConfig, logger *logrus.Logger) (*OmiseGateway, error) {
	client, err := omise.NewClient(cfg.OmisePublicKey, cfg.OmiseSecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create omise client: %w", err)
	}
	return &OmiseGateway{
		client:   client,
		currency: strings.ToLower(cfg.Currency),
		logger:   logger,
	}, nil
}

// Name implements PaymentGateway
func (g *OmiseGateway) Name() string { return "omise" }

// CreateCheckout creates a charge for the card token. Charges that need 3-D
// Secure come back pending with an authorize URI.
func (g *OmiseGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.CardToken == "" {
		return nil, fmt.Errorf("card token is required")
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = g.currency
	}

	metadata := map[string]interface{}{"invoice_id": req.InvoiceID}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	charge := &omise.Charge{}
	err := g.client.Do(charge, &operations.CreateCharge{
		Amount:      req.AmountCents,
		Currency:    currency,
		Card:        req.CardToken,
		Description: req.Description,
		ReturnURI:   req.ReturnURL,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("omise create charge: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"charge_id":  charge.ID,
		"invoice_id": req.InvoiceID,
		"status":     charge.Status,
	}).Info("Omise charge created")

	if charge.Status == omise.ChargeFailed {
		reason := "charge failed"
		if charge.FailureMessage != nil {
			reason = *charge.FailureMessage
		}
		return nil, fmt.Errorf("omise charge %s: %s", charge.ID, reason)
	}

	return &CheckoutSession{
		Reference:   charge.ID,
		CheckoutURL: charge.AuthorizeURI,
		Status:      string(charge.Status),
	}, nil
}

// Refund refunds part or all of a charge
func (g *OmiseGateway) Refund(ctx context.Context, reference string, amountCents int64) error {
	refund := &omise.Refund{}
	if err := g.client.Do(refund, &operations.CreateRefund{
		ChargeID: reference,
		Amount:   amountCents,
	}); err != nil {
		return fmt.Errorf("omise refund %s: %w", reference, err)
	}
	g.logger.WithFields(logrus.Fields{
		"charge_id":    reference,
		"refund_id":    refund.ID,
		"amount_cents": amountCents,
	}).Info("Omise refund created")
	return nil
}

type omiseIncomingEvent struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// ParseWebhook re-fetches the event from Omise so a forged body cannot
// confirm a payment. Only charge.complete events carry a result.
func (g *OmiseGateway) ParseWebhook(ctx context.Context, body []byte) (*WebhookResult, error) {
	var incoming omiseIncomingEvent
	if err := json.Unmarshal(body, &incoming); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if incoming.ID == "" {
		return nil, fmt.Errorf("webhook missing event id")
	}

	event := &omise.Event{}
	if err := g.client.Do(event, &operations.RetrieveEvent{EventID: incoming.ID}); err != nil {
		return nil, fmt.Errorf("omise retrieve event: %w", err)
	}
	if event.Key != "charge.complete" {
		return nil, fmt.Errorf("unsupported omise event %q", event.Key)
	}

	raw, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode event data: %w", err)
	}
	var charge omise.Charge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil, fmt.Errorf("failed to decode charge: %w", err)
	}

	return &WebhookResult{
		Reference: charge.ID,
		Success:   charge.Status == omise.ChargeSuccessful,
	}, nil
}
