package signature

import (
	"testing"

	"github.com/akylbek/payment-system/payment-gateway/internal/secure"
)

func TestDirectVerifierFields(t *testing.T) {
	v := NewDirectVerifier("momo_secret")

	sig := secure.SignHMAC("ref_15000SUCCESSFUL", "momo_secret")
	if res := v.VerifyFields("ref_1", "5000", "SUCCESSFUL", sig); !res.Valid {
		t.Errorf("valid inline signature rejected: %s", res.Reason)
	}

	// Field order is reference+amount+status with no separators; any
	// reordering or mutation must fail.
	if res := v.VerifyFields("ref_1", "5001", "SUCCESSFUL", sig); res.Valid {
		t.Error("amount mutation accepted")
	}
	if res := v.VerifyFields("ref_1", "5000", "FAILED", sig); res.Valid {
		t.Error("status mutation accepted")
	}
	if res := v.VerifyFields("ref_2", "5000", "SUCCESSFUL", sig); res.Valid {
		t.Error("reference mutation accepted")
	}
	if res := v.VerifyFields("ref_1", "5000", "SUCCESSFUL", ""); res.Valid {
		t.Error("empty signature accepted")
	}
}

func TestDirectVerifierNoPartialTrust(t *testing.T) {
	v := NewDirectVerifier("momo_secret")
	res := v.VerifyFields("ref_1", "5000", "SUCCESSFUL", "deadbeef")
	if res.Valid {
		t.Fatal("bad signature accepted")
	}
	if !res.Timestamp.IsZero() {
		t.Error("failed verification must not carry a timestamp")
	}
}
