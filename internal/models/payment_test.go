package models

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	all := []PaymentStatus{StatusPending, StatusPaid, StatusFailed, StatusExpired}

	for _, from := range all {
		for _, to := range all {
			want := from == StatusPending && to != StatusPending
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: CanTransitionTo = %v, want %v", from, to, got, want)
			}
		}
	}

	if StatusPending.IsTerminal() {
		t.Error("pending must not be terminal")
	}
}

func TestEnums(t *testing.T) {
	if !CurrencyKHR.Valid() || Currency("EUR").Valid() {
		t.Error("currency validation mismatch")
	}
	if !OptionKHQR.Valid() || PaymentOption("card").Valid() {
		t.Error("payment option validation mismatch")
	}
}

func TestPaymentUpdateApply(t *testing.T) {
	qr := "000201010212"
	paid := StatusPaid
	now := time.Now()
	p := &Payment{TranID: "TXN1", Status: StatusPending}

	PaymentUpdate{QRString: &qr}.Apply(p)
	if p.QRString == nil || *p.QRString != qr || p.Status != StatusPending {
		t.Fatalf("partial update mismatch: %+v", p)
	}

	PaymentUpdate{Status: &paid, PaidAt: &now, CallbackData: []byte(`{"status":"0"}`)}.Apply(p)
	if p.Status != StatusPaid || p.PaidAt == nil || string(p.CallbackData) != `{"status":"0"}` {
		t.Fatalf("transition update mismatch: %+v", p)
	}
	if p.QRString == nil {
		t.Error("QRString cleared by unrelated update")
	}
}
