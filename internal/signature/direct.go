package signature

import (
	"time"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
	"github.com/akylbek/payment-system/payment-gateway/internal/secure"
)

// DirectVerifier implements the mobile-money network's scheme: an HMAC over
// the literal concatenation reference+amount+status with no separators and
// no timestamp. The protocol carries no freshness signal, so replay
// protection rests entirely on the idempotency ledger and the order side's
// finite processing window. Do not add a timestamp check here: the remote
// network cannot supply one and legitimate traffic would be rejected.
type DirectVerifier struct {
	Secret string
}

func NewDirectVerifier(secret string) *DirectVerifier {
	return &DirectVerifier{Secret: secret}
}

// SignedMessage builds the exact byte sequence the network signs.
func (v *DirectVerifier) SignedMessage(reference, amount, status string) string {
	return reference + amount + status
}

// VerifyFields checks the inline signature against the payload fields the
// scheme covers.
func (v *DirectVerifier) VerifyFields(reference, amount, status, sig string) models.SignatureVerification {
	if sig == "" {
		return invalid("Invalid signature format")
	}
	if secure.VerifyHMAC(v.SignedMessage(reference, amount, status), sig, v.Secret) {
		return models.SignatureVerification{Valid: true}
	}
	return invalid("signature mismatch")
}

// Verify satisfies the Verifier interface for callers that pre-assemble the
// signed message as the header value alongside the raw body fields. The
// direct scheme has no header; body-level verification goes through
// VerifyFields. This adapter exists so ingress code can hold both verifier
// kinds behind one type.
func (v *DirectVerifier) Verify(rawBody []byte, header string, _ time.Time) models.SignatureVerification {
	if header == "" {
		return invalid("Invalid signature format")
	}
	if secure.VerifyHMAC(string(rawBody), header, v.Secret) {
		return models.SignatureVerification{Valid: true}
	}
	return invalid("signature mismatch")
}
