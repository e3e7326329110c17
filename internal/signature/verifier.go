package signature

import (
	"time"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
)

// Verifier authenticates a raw webhook payload against its signature
// header. Implementations differ per provider protocol but all return the
// same result shape so the ingress can treat providers uniformly.
type Verifier interface {
	Verify(rawBody []byte, header string, now time.Time) models.SignatureVerification
}

func invalid(reason string) models.SignatureVerification {
	return models.SignatureVerification{Valid: false, Reason: reason}
}
