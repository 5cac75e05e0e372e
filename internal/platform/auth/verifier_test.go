package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func signHS256(t *testing.T, claims jwt.Claims, key []byte) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return s
}

func validClaims(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
}

func TestVerifier_HS256(t *testing.T) {
	v := NewVerifier(VerifierConfig{SigningKey: testSigningKey})

	sub, err := v.Verify(signHS256(t, validClaims("user-1"), testSigningKey))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub != "user-1" {
		t.Errorf("expected subject user-1, got %s", sub)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier(VerifierConfig{SigningKey: testSigningKey, Issuer: "https://auth.clinic.test"})

	expired := validClaims("user-1")
	expired.Issuer = "https://auth.clinic.test"
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExp := jwt.RegisteredClaims{Subject: "user-1", Issuer: "https://auth.clinic.test"}

	wrongIssuer := validClaims("user-1")
	wrongIssuer.Issuer = "https://evil.test"

	noSubject := validClaims("")
	noSubject.Issuer = "https://auth.clinic.test"

	good := validClaims("user-1")
	good.Issuer = "https://auth.clinic.test"

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"wrong key", signHS256(t, good, []byte("another-key"))},
		{"expired", signHS256(t, expired, testSigningKey)},
		{"no expiry", signHS256(t, noExp, testSigningKey)},
		{"wrong issuer", signHS256(t, wrongIssuer, testSigningKey)},
		{"no subject", signHS256(t, noSubject, testSigningKey)},
		{"alg none", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodNone, good).SignedString(jwt.UnsafeAllowNoneSignatureType)
			return s
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(tt.token); err == nil {
				t.Fatal("expected verification to fail")
			}
		})
	}
}

func TestVerifier_EmptyTokenIsNoCredential(t *testing.T) {
	v := NewVerifier(VerifierConfig{SigningKey: testSigningKey})
	if _, err := v.Verify(""); !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
}

func TestVerifier_JWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jwksResponse{Keys: []JWKSKey{{
			Kty: "RSA",
			Kid: "k1",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	v := NewVerifier(VerifierConfig{JWKSURL: srv.URL})

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("user-rsa"))
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	sub, err := v.Verify(signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub != "user-rsa" {
		t.Errorf("expected subject user-rsa, got %s", sub)
	}

	unknown := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("user-rsa"))
	unknown.Header["kid"] = "k2"
	signed, _ = unknown.SignedString(key)
	if _, err := v.Verify(signed); err == nil {
		t.Error("expected unknown kid to fail")
	}

	// An HS256 token must not be accepted when keys come from JWKS.
	if _, err := v.Verify(signHS256(t, validClaims("user-rsa"), testSigningKey)); err == nil {
		t.Error("expected HS256 token to be rejected by a JWKS verifier")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer", "Bearer abc", "", "abc"},
		{"lowercase bearer", "bearer abc", "", "abc"},
		{"cookie fallback", "", "from-cookie", "from-cookie"},
		{"header wins", "Bearer abc", "from-cookie", "abc"},
		{"basic auth ignored", "Basic dXNlcjpwYXNz", "from-cookie", ""},
		{"nothing", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "fd_session", Value: tt.cookie})
			}
			if got := TokenFromRequest(req, "fd_session"); got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}
