// Package auth verifies the bearer credential on the Coordinator's
// /transfer endpoint and derives signing secrets for operators to deploy.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ledgerflow/twopc/pkg/model"
)

type contextKey string

const contextKeyClaims contextKey = "auth_claims"

// Verifier validates HS256 bearer tokens against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier from the deployment's JWT_SECRET.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates the bearer token from the Authorization
// header, returning model.ErrAuth for anything short of a valid HS256
// token (missing header, wrong scheme, bad signature, expired).
func (v *Verifier) Verify(authHeader string) (jwt.MapClaims, error) {
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, model.ErrAuth
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, model.ErrAuth
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, model.ErrAuth
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.ErrAuth
	}
	return claims, nil
}

// Middleware rejects any request without a valid bearer credential before
// it reaches the wrapped handler, and stashes the parsed claims in the
// request context for handlers that want them.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := v.Verify(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"missing or invalid bearer credential"}`))
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext extracts claims stashed by Middleware, if present.
func ClaimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(contextKeyClaims).(jwt.MapClaims)
	return claims, ok
}
