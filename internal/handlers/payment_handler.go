package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
	"github.com/akylbek/payment-system/payment-gateway/internal/provider"
	"github.com/akylbek/payment-system/payment-gateway/internal/telemetry"
)

type PaymentHandler struct {
	registry *provider.Registry
}

func NewPaymentHandler(registry *provider.Registry) *PaymentHandler {
	return &PaymentHandler{registry: registry}
}

type initiateRequest struct {
	OrderReference string `json:"order_reference" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	Currency       string `json:"currency" binding:"required"`
	Method         string `json:"method"`
	Country        string `json:"country"`
	CustomerEmail  string `json:"customer_email"`
	PhoneNumber    string `json:"phone_number"`
	ReturnURL      string `json:"return_url"`
}

func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive decimal"})
		return
	}

	prov, err := h.registry.Best(provider.Criteria{
		Currency: models.Currency(req.Currency),
		Method:   req.Method,
		Country:  req.Country,
	})
	if err != nil {
		var noProv *provider.ErrNoProvider
		if errors.As(err, &noProv) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "provider selection failed"})
		return
	}

	result, err := prov.InitiatePayment(c.Request.Context(), provider.InitiateParams{
		OrderReference: req.OrderReference,
		Amount:         amount,
		Currency:       models.Currency(req.Currency),
		Method:         req.Method,
		CustomerEmail:  req.CustomerEmail,
		PhoneNumber:    req.PhoneNumber,
		ReturnURL:      req.ReturnURL,
	})
	if err != nil {
		h.respondProviderError(c, prov.ID(), "initiate", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider":     result.ProviderID,
		"session_id":   result.SessionID,
		"checkout_url": result.CheckoutURL,
		"status":       result.Status,
		"expires_at":   result.ExpiresAt,
	})
}

func (h *PaymentHandler) Verify(c *gin.Context) {
	providerID := c.Query("provider")
	sessionID := c.Query("session_id")
	if providerID == "" || sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider and session_id are required"})
		return
	}

	prov, err := h.registry.Get(providerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := prov.VerifyPayment(c.Request.Context(), provider.VerifyParams{SessionID: sessionID})
	if err != nil {
		h.respondProviderError(c, providerID, "verify", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   result.Status,
		"amount":   result.Amount,
		"currency": result.Currency,
	})
}

type refundRequest struct {
	Provider       string `json:"provider" binding:"required"`
	OrderReference string `json:"order_reference" binding:"required"`
	TransactionID  string `json:"transaction_id"`
	Amount         string `json:"amount" binding:"required"`
	Currency       string `json:"currency" binding:"required"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive decimal"})
		return
	}

	prov, err := h.registry.Get(req.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := prov.Refund(c.Request.Context(), provider.RefundParams{
		OrderReference: req.OrderReference,
		TransactionID:  req.TransactionID,
		Amount:         amount,
		Currency:       models.Currency(req.Currency),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.respondProviderError(c, req.Provider, "refund", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refunded":        result.Refunded,
		"manual_required": result.ManualRequired,
		"refund_id":       result.RefundID,
		"message":         result.Message,
	})
}

func (h *PaymentHandler) respondProviderError(c *gin.Context, providerID, op string, err error) {
	telemetry.Logger.Error("provider operation failed",
		zap.String("provider", providerID),
		zap.String("operation", op),
		zap.Error(err),
	)
	if provider.IsRemoteAPIError(err) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment network unavailable"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
