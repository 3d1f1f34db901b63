package common

import (
	"encoding/hex"
	"errors"
	"testing"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestCSRFMismatch_IsForbidden(t *testing.T) {
	if !errors.Is(ErrCSRFMismatch, ErrForbidden) {
		t.Fatal("csrf mismatch must be reported as forbidden")
	}
	if errors.Is(ErrForbidden, ErrCSRFMismatch) {
		t.Fatal("plain forbidden must not look like a csrf mismatch")
	}
}

func TestValidationf(t *testing.T) {
	err := Validationf("bad url %q", "ftp://x")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got, want := err.Error(), `validation error: bad url "ftp://x"`; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
