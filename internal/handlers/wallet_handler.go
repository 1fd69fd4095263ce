package handlers

import (
	"context"
	"net/http"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WalletReader exposes a user's wallet and ledger
type WalletReader interface {
	GetOrCreateWallet(ctx context.Context, tenantID, userID int64) (*models.UserWallet, error)
	GetTransactionHistory(ctx context.Context, walletID int64, limit int) ([]models.WalletTransaction, error)
	FormattedBalance(wallet *models.UserWallet) string
}

// TopUpStarter opens a gateway checkout that credits a wallet
type TopUpStarter interface {
	CreateWalletTopUpCheckout(ctx context.Context, tenantID, userID int64, req *models.TopUpRequest) (*models.TopUpResponse, error)
}

// WalletHandler handles wallet HTTP requests. Callers only ever see their
// own wallet.
type WalletHandler struct {
	wallets WalletReader
	topUps  TopUpStarter
	logger  *logrus.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(wallets WalletReader, topUps TopUpStarter, logger *logrus.Logger) *WalletHandler {
	return &WalletHandler{
		wallets: wallets,
		topUps:  topUps,
		logger:  logger,
	}
}

// GetWallet handles GET /api/v1/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	tenantID, userCtx, ok := requestScope(c)
	if !ok {
		return
	}

	wallet, err := h.wallets.GetOrCreateWallet(c.Request.Context(), tenantID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet":            wallet,
		"balance_formatted": h.wallets.FormattedBalance(wallet),
	})
}

// GetTransactions handles GET /api/v1/wallet/transactions?limit=
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	tenantID, userCtx, ok := requestScope(c)
	if !ok {
		return
	}

	wallet, err := h.wallets.GetOrCreateWallet(c.Request.Context(), tenantID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	limit := queryInt(c, "limit", defaultPageSize)
	if limit == 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	txns, err := h.wallets.GetTransactionHistory(c.Request.Context(), wallet.ID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet_id":    wallet.ID,
		"transactions": txns,
		"total":        len(txns),
	})
}

// TopUp handles POST /api/v1/wallet/top-up
func (h *WalletHandler) TopUp(c *gin.Context) {
	tenantID, userCtx, ok := requestScope(c)
	if !ok {
		return
	}

	var req models.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.topUps.CreateWalletTopUpCheckout(c.Request.Context(), tenantID, userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	if resp.CheckoutURL != "" {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}
