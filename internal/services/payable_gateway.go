package services

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/courtly/court-booking-backend/internal/config"
	"github.com/sirupsen/logrus"
)

// PAYableEnvironmentURLs maps environment names to their IPG endpoint URLs
var PAYableEnvironmentURLs = map[string]string{
	"dev":        "https://payable-ipg-dev.web.app/ipg/dev",
	"sandbox":    "https://sandboxipgpayment.payable.lk/ipg/sandbox",
	"production": "https://ipgpayment.payable.lk/ipg/pro",
}

// PAYableGateway is the hosted-checkout IPG client
type PAYableGateway struct {
	config   config.PaymentConfig
	endpoint string
	logger   *logrus.Logger
	client   *http.Client
}

// payableCheckoutRequest is the body posted to the IPG.
// NOTE: merchantToken is never sent; it only feeds the checkValue.
type payableCheckoutRequest struct {
	MerchantKey string `json:"merchantKey"`

	LogoURL    string `json:"logoUrl,omitempty"`
	ReturnURL  string `json:"returnUrl"`
	WebhookURL string `json:"webhookUrl,omitempty"`

	PaymentType      int    `json:"paymentType"` // 1 = one-time
	InvoiceID        string `json:"invoiceId"`
	Amount           string `json:"amount"`
	CurrencyCode     string `json:"currencyCode"`
	OrderDescription string `json:"orderDescription,omitempty"`

	CustomerFirstName   string `json:"customerFirstName"`
	CustomerLastName    string `json:"customerLastName"`
	CustomerEmail       string `json:"customerEmail"`
	CustomerMobilePhone string `json:"customerMobilePhone"`

	CheckValue         string `json:"checkValue"`
	IntegrationType    string `json:"integrationType"` // max 20 chars
	IntegrationVersion string `json:"integrationVersion"`
}

type payableCheckoutResponse struct {
	Status          string `json:"status"`
	UID             string `json:"uid"`
	StatusIndicator string `json:"statusIndicator"`
	PaymentPage     string `json:"paymentPage"`
	Message         string `json:"message,omitempty"`
}

// PAYableWebhookPayload is the IPG's payment notification
type PAYableWebhookPayload struct {
	UID           string `json:"uid"`
	InvoiceID     string `json:"invoiceId"`
	Amount        string `json:"amount"`
	CurrencyCode  string `json:"currencyCode"`
	PaymentStatus string `json:"paymentStatus"` // SUCCESS, FAILED, CANCELLED
	TransactionID string `json:"transactionId,omitempty"`
}

// NewPAYableGateway creates a new PAYableGateway
func NewPAYableGateway(cfg config.PaymentConfig, logger *logrus.Logger) *PAYableGateway {
	endpoint, ok := PAYableEnvironmentURLs[cfg.Environment]
	if !ok {
		endpoint = PAYableEnvironmentURLs["sandbox"]
	}
	return &PAYableGateway{
		config:   cfg,
		endpoint: endpoint,
		logger:   logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name implements PaymentGateway
func (g *PAYableGateway) Name() string { return "payable" }

// GenerateCheckValue creates the SHA-512 checkValue:
// hash1 = SHA512(merchantToken), then SHA512("merchantKey|invoiceId|amount|currencyCode|hash1"),
// both as uppercase hex.
func (g *PAYableGateway) GenerateCheckValue(invoiceID, amount, currencyCode string) string {
	hash1 := sha512.Sum512([]byte(g.config.MerchantToken))
	hash1Hex := strings.ToUpper(hex.EncodeToString(hash1[:]))

	data := fmt.Sprintf("%s|%s|%s|%s|%s", g.config.MerchantKey, invoiceID, amount, currencyCode, hash1Hex)
	hash2 := sha512.Sum512([]byte(data))
	return strings.ToUpper(hex.EncodeToString(hash2[:]))
}

// CreateCheckout posts a one-time payment and returns the hosted payment page
func (g *PAYableGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if !g.IsConfigured() {
		return nil, fmt.Errorf("payment gateway not configured: missing merchant credentials")
	}

	amount := formatAmount(req.AmountCents)
	currency := req.Currency
	if currency == "" {
		currency = g.config.Currency
	}
	firstName, lastName := splitName(req.CustomerName)
	if lastName == "" {
		lastName = "." // PAYable requires a last name
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = g.config.ReturnURL
	}

	body := &payableCheckoutRequest{
		MerchantKey:         g.config.MerchantKey,
		LogoURL:             g.config.LogoURL,
		ReturnURL:           returnURL,
		WebhookURL:          g.config.WebhookURL,
		PaymentType:         1,
		InvoiceID:           req.InvoiceID,
		Amount:              amount,
		CurrencyCode:        currency,
		OrderDescription:    req.Description,
		CustomerFirstName:   firstName,
		CustomerLastName:    lastName,
		CustomerEmail:       req.CustomerEmail,
		CustomerMobilePhone: req.CustomerPhone,
		CheckValue:          g.GenerateCheckValue(req.InvoiceID, amount, currency),
		IntegrationType:     "CourtBooking",
		IntegrationVersion:  "1.0.0",
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"invoice_id": req.InvoiceID,
		"amount":     amount,
		"currency":   currency,
	}).Info("Initiating PAYable payment")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.WithError(err).Error("Failed to call PAYable endpoint")
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed payableCheckoutResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// PAYable answers "PENDING" once the page is ready, "success" in some cases
	if parsed.Status != "success" && parsed.Status != "PENDING" {
		msg := parsed.Message
		if msg == "" {
			msg = "status=" + parsed.Status
		}
		return nil, fmt.Errorf("payment initiation failed: %s", msg)
	}
	if parsed.PaymentPage == "" || parsed.UID == "" {
		return nil, fmt.Errorf("payment initiation failed: no payment page returned")
	}

	g.logger.WithFields(logrus.Fields{
		"uid":        parsed.UID,
		"invoice_id": req.InvoiceID,
	}).Info("PAYable payment initiated")

	return &CheckoutSession{
		Reference:   parsed.UID,
		CheckoutURL: parsed.PaymentPage,
		Status:      strings.ToLower(parsed.Status),
	}, nil
}

// Refund is not offered by the IPG API; refunds are settled in the merchant portal
func (g *PAYableGateway) Refund(ctx context.Context, reference string, amountCents int64) error {
	return ErrManualRefund
}

// ParseWebhook validates the payment notification body
func (g *PAYableGateway) ParseWebhook(ctx context.Context, body []byte) (*WebhookResult, error) {
	var payload PAYableWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if payload.UID == "" || payload.InvoiceID == "" {
		return nil, fmt.Errorf("webhook missing required fields")
	}

	g.logger.WithFields(logrus.Fields{
		"uid":            payload.UID,
		"invoice_id":     payload.InvoiceID,
		"payment_status": payload.PaymentStatus,
	}).Info("PAYable webhook received")

	return &WebhookResult{
		Reference: payload.UID,
		Success:   strings.ToUpper(payload.PaymentStatus) == "SUCCESS",
	}, nil
}

// IsConfigured reports whether merchant credentials are present
func (g *PAYableGateway) IsConfigured() bool {
	return g.config.MerchantKey != "" && g.config.MerchantToken != ""
}

func splitName(fullName string) (firstName, lastName string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return "Customer", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
