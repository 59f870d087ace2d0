package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters for JWT signing secrets: PBKDF2-HMAC-SHA256
// with SCRAM-SHA-256-style parameters, used here for deriving a signing key
// from an operator passphrase.
const (
	saltLength     = 16
	iterationCount = 100000
	keyLength      = 32
)

// DeriveSecret derives a base64-encoded HMAC-SHA256 signing secret from an
// operator-supplied passphrase and a random salt, for use as JWT_SECRET.
// The returned salt must be stored alongside the secret (or simply
// discarded, since the derived secret itself is what gets deployed) so a
// later re-derivation with the same passphrase is possible if desired.
func DeriveSecret(passphrase string) (secret string, salt []byte, err error) {
	salt = make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", nil, fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(passphrase), salt, iterationCount, keyLength, sha256.New)
	return base64.StdEncoding.EncodeToString(key), salt, nil
}

// DeriveSecretWithSalt re-derives the same secret DeriveSecret produced,
// given the original passphrase and salt.
func DeriveSecretWithSalt(passphrase string, salt []byte) string {
	key := pbkdf2.Key([]byte(passphrase), salt, iterationCount, keyLength, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}
