package signature

import (
	"strconv"
	"strings"
	"time"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
	"github.com/akylbek/payment-system/payment-gateway/internal/secure"
)

// Tolerances observed in the card provider's protocol. The narrow window
// applies at the network ingress; the wide one is acceptable for secondary
// validation inside the provider.
const (
	ToleranceIngress   = 120 * time.Second
	ToleranceSecondary = 300 * time.Second
)

// TimestampedVerifier implements the card network's signature scheme: the
// header is a comma-separated list of key=value pairs carrying a unix
// timestamp (t=...) and one or more candidate signatures (v1=...). Multiple
// v1 entries may be present during key rotation; any single match passes.
// The signed message is "{timestamp}.{rawBody}".
type TimestampedVerifier struct {
	Secret    string
	Tolerance time.Duration

	// RejectFuture refuses timestamps ahead of the local clock. Enabled at
	// the ingress point: a future timestamp is never legitimate there.
	RejectFuture bool
}

func NewTimestampedVerifier(secret string, tolerance time.Duration, rejectFuture bool) *TimestampedVerifier {
	return &TimestampedVerifier{Secret: secret, Tolerance: tolerance, RejectFuture: rejectFuture}
}

func (v *TimestampedVerifier) Verify(rawBody []byte, header string, now time.Time) models.SignatureVerification {
	ts, candidates, ok := parseSignatureHeader(header)
	if !ok {
		return invalid("Invalid signature format")
	}

	at := time.Unix(ts, 0)
	if v.RejectFuture && at.After(now) {
		return invalid("timestamp in the future")
	}
	age := now.Sub(at)
	if age < 0 {
		age = -age
	}
	if age > v.Tolerance {
		return invalid("timestamp outside tolerance")
	}

	message := strconv.FormatInt(ts, 10) + "." + string(rawBody)
	for _, candidate := range candidates {
		if secure.VerifyHMAC(message, candidate, v.Secret) {
			return models.SignatureVerification{Valid: true, Timestamp: at}
		}
	}
	return invalid("signature mismatch")
}

// parseSignatureHeader splits "t=1700000000,v1=abc,v1=def" into the
// timestamp and the candidate signature list. A missing timestamp or an
// empty candidate list makes the header unusable.
func parseSignatureHeader(header string) (int64, []string, bool) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, false
	}

	var (
		ts         int64
		candidates []string
	)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return 0, nil, false
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil || parsed <= 0 {
				return 0, nil, false
			}
			ts = parsed
		case "v1":
			if value != "" {
				candidates = append(candidates, strings.ToLower(value))
			}
		}
	}
	if ts == 0 || len(candidates) == 0 {
		return 0, nil, false
	}
	return ts, candidates, true
}
