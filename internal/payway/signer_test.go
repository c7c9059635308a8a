package payway

import (
	"fmt"
	"testing"
)

func TestSignKnownVector(t *testing.T) {
	s := NewSigner("secret-key")

	got := s.Sign("20250101120000", "ec000001", "TXN123", "5.00")
	want := "ZXmRWZPKv+bN+IjF8I8E5omON3wR2thYawi3rzSiudSY5oHoo22CfbEw7fBbxZELf7KjFjsklZPAWhF55pHX8g=="
	if got != want {
		t.Errorf("Sign() = %s, want %s", got, want)
	}
}

func TestSignDeterministic(t *testing.T) {
	s := NewSigner("secret-key")
	fields := []string{"20250101120000", "ec000001", "TXN123", "5.00", "", "0.00"}

	if a, b := s.Sign(fields...), s.Sign(fields...); a != b {
		t.Fatalf("Sign() not deterministic: %s != %s", a, b)
	}
}

func TestSignDetectsChanges(t *testing.T) {
	s := NewSigner("secret-key")
	base := []string{"20250101120000", "ec000001", "TXN123", "5.00", "Customer", "User"}
	baseSig := s.Sign(base...)

	tests := []struct {
		name   string
		fields []string
	}{
		{"value changed", []string{"20250101120000", "ec000001", "TXN124", "5.00", "Customer", "User"}},
		{"amount formatting", []string{"20250101120000", "ec000001", "TXN123", "5", "Customer", "User"}},
		{"order swapped", []string{"20250101120000", "ec000001", "TXN123", "5.00", "User", "Customer"}},
		{"field appended", append(append([]string{}, base...), "x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s.Sign(tt.fields...) == baseSig {
				t.Error("signature unchanged after modifying fields")
			}
		})
	}

	if NewSigner("other-key").Sign(base...) == baseSig {
		t.Error("signature unchanged after changing key")
	}
}

func TestSignNoCollisions(t *testing.T) {
	s := NewSigner("secret-key")
	seen := make(map[string]string)

	for i := 0; i < 500; i++ {
		amount := fmt.Sprintf("%d.%02d", i/100, i%100)
		sig := s.Sign("20250101120000", "ec000001", "TXNSAMPLE", amount)
		if prev, ok := seen[sig]; ok {
			t.Fatalf("collision between amounts %s and %s", prev, amount)
		}
		seen[sig] = amount
	}
}

func TestVerify(t *testing.T) {
	s := NewSigner("secret-key")
	want := "82qTMzfSrq8ytq9+G85U2/FDs769FbgdMGAym3fAeDuXMiEgov93PcOuDCbi0WNjMsnb+Ut8ekuvACOiJTcolg=="

	if !s.Verify(want, "TXNABC", "20250101120000", "10.00", "0") {
		t.Error("Verify() = false for matching signature")
	}
	if s.Verify(want, "TXNABC", "20250101120000", "10.00", "1") {
		t.Error("Verify() = true for tampered status")
	}
	if s.Verify("", "TXNABC") {
		t.Error("Verify() = true for empty signature")
	}
}

func TestCanonical(t *testing.T) {
	if got := Canonical("a", "", "b", "0.00"); got != "ab0.00" {
		t.Errorf("Canonical() = %q", got)
	}
}
