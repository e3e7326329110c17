package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountMatchesZeroDecimalCurrency(t *testing.T) {
	expected := decimal.NewFromInt(1000)

	if !AmountMatches(expected, decimal.NewFromInt(1000), CurrencyXAF) {
		t.Error("exact XAF amount should match")
	}
	if AmountMatches(expected, decimal.NewFromInt(999), CurrencyXAF) {
		t.Error("999 vs 1000 XAF must be rejected, zero tolerance")
	}
	if AmountMatches(expected, decimal.NewFromInt(1001), CurrencyXAF) {
		t.Error("1001 vs 1000 XAF must be rejected, zero tolerance")
	}
}

func TestAmountMatchesDecimalCurrency(t *testing.T) {
	expected := decimal.NewFromFloat(100.00)

	cases := []struct {
		name   string
		actual decimal.Decimal
		want   bool
	}{
		{"exact", decimal.NewFromFloat(100.00), true},
		{"within 1 percent", decimal.NewFromFloat(100.50), true},
		{"at 1 percent", decimal.NewFromFloat(101.00), true},
		{"over 1 percent", decimal.NewFromFloat(102.00), false},
		{"under by more than 1 percent", decimal.NewFromFloat(98.50), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AmountMatches(expected, tc.actual, CurrencyUSD); got != tc.want {
				t.Errorf("AmountMatches(100, %s, USD) = %v, want %v", tc.actual, got, tc.want)
			}
		})
	}
}

func TestWholeUnits(t *testing.T) {
	if got := WholeUnits(decimal.NewFromFloat(5000.49)); !got.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("WholeUnits(5000.49) = %s, want 5000", got)
	}
	if got := WholeUnits(decimal.NewFromFloat(5000.5)); !got.Equal(decimal.NewFromInt(5001)) {
		t.Errorf("WholeUnits(5000.5) = %s, want 5001", got)
	}
}

func TestWebhookEventValidate(t *testing.T) {
	ev := WebhookEvent{
		EventType: "payment.completed",
		Status:    StatusCompleted,
		Amount:    decimal.NewFromInt(5000),
		Currency:  CurrencyXAF,
	}
	if err := ev.Validate(); err == nil {
		t.Error("terminal event without order reference should fail validation")
	}

	ev.OrderID = "ord_123"
	if err := ev.Validate(); err != nil {
		t.Errorf("complete terminal event should validate: %v", err)
	}

	pending := WebhookEvent{EventType: "payment.pending", Status: StatusPending}
	if err := pending.Validate(); err != nil {
		t.Errorf("non-terminal event needs no order fields: %v", err)
	}
}

func TestWebhookEventValidateTerminalStatuses(t *testing.T) {
	for _, status := range []PaymentStatus{StatusCompleted, StatusFailed, StatusRefunded} {
		t.Run(string(status), func(t *testing.T) {
			ev := WebhookEvent{
				EventType: "charge.event",
				OrderID:   "ord_1",
				Status:    status,
				Currency:  CurrencyUSD,
			}
			if err := ev.Validate(); err == nil {
				t.Errorf("%s event with no amount should fail validation", status)
			}

			ev.Amount = decimal.NewFromFloat(10.00)
			ev.Currency = ""
			if err := ev.Validate(); err == nil {
				t.Errorf("%s event with no currency should fail validation", status)
			}

			ev.Currency = CurrencyUSD
			if err := ev.Validate(); err != nil {
				t.Errorf("fully populated %s event should validate: %v", status, err)
			}
		})
	}
}
