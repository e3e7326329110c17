package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-gateway/internal/provider"
	"github.com/akylbek/payment-system/payment-gateway/internal/service"
	"github.com/akylbek/payment-system/payment-gateway/internal/signature"
	"github.com/akylbek/payment-system/payment-gateway/internal/telemetry"
)

// SignatureHeader is the header carrying the timestamped scheme's
// signature. The direct scheme carries its signature inline in the body.
const SignatureHeader = "Gateway-Signature"

type WebhookHandler struct {
	svc *service.WebhookService

	// ingressVerifiers apply the strict ingress tolerance (120s, future
	// timestamps rejected) before the provider's own verification runs
	// with the wider secondary window.
	ingressVerifiers map[string]signature.Verifier
}

func NewWebhookHandler(svc *service.WebhookService, ingressVerifiers map[string]signature.Verifier) *WebhookHandler {
	return &WebhookHandler{svc: svc, ingressVerifiers: ingressVerifiers}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	providerID := c.Param("provider")

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	sigHeader := c.GetHeader(SignatureHeader)

	if verifier, ok := h.ingressVerifiers[providerID]; ok {
		verdict := verifier.Verify(rawBody, sigHeader, time.Now())
		if !verdict.Valid {
			status := http.StatusUnauthorized
			if verdict.Reason == "Invalid signature format" {
				status = http.StatusBadRequest
			}
			telemetry.Logger.Warn("webhook rejected at ingress",
				zap.String("provider", providerID),
				zap.String("reason", verdict.Reason),
			)
			c.JSON(status, gin.H{"error": verdict.Reason})
			return
		}
	}

	result, err := h.svc.Process(c.Request.Context(), providerID, provider.WebhookPayload{
		RawBody:         rawBody,
		SignatureHeader: sigHeader,
	})
	if err != nil {
		h.respondError(c, providerID, err)
		return
	}

	resp := gin.H{"received": true}
	if result.Duplicate {
		resp["duplicate"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (h *WebhookHandler) respondError(c *gin.Context, providerID string, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrUnknownProvider),
		errors.Is(err, service.ErrMalformedPayload),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrProviderMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrSignatureInvalid):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrOrderNotFound):
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		telemetry.Logger.Error("webhook processing failed",
			zap.String("provider", providerID),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "failed to process webhook"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
