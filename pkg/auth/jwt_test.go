package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "test-client",
		"exp": time.Now().Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	v := NewVerifier("dev-secret")
	tok := signToken(t, "dev-secret", time.Hour)

	if _, err := v.Verify("Bearer " + tok); err != nil {
		t.Fatalf("expected valid token to verify, got %v", err)
	}
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	v := NewVerifier("dev-secret")
	if _, err := v.Verify(""); err == nil {
		t.Fatal("expected error for missing header")
	}
}

func TestVerifyRejectsWrongScheme(t *testing.T) {
	v := NewVerifier("dev-secret")
	tok := signToken(t, "dev-secret", time.Hour)
	if _, err := v.Verify("Basic " + tok); err == nil {
		t.Fatal("expected error for non-bearer scheme")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("dev-secret")
	tok := signToken(t, "other-secret", time.Hour)
	if _, err := v.Verify("Bearer " + tok); err == nil {
		t.Fatal("expected error for signature mismatch")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewVerifier("dev-secret")
	tok := signToken(t, "dev-secret", -time.Minute)
	if _, err := v.Verify("Bearer " + tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestDeriveSecretIsReproducibleWithSameSalt(t *testing.T) {
	secret, salt, err := DeriveSecret("correct horse battery staple")
	if err != nil {
		t.Fatalf("DeriveSecret: %v", err)
	}
	again := DeriveSecretWithSalt("correct horse battery staple", salt)
	if secret != again {
		t.Fatalf("re-derivation with same salt should match: %q != %q", secret, again)
	}
}
