package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func newTestProvider(t *testing.T) *StaticKeyProvider {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	provider := NewStaticKeyProvider(map[string]*rsa.PublicKey{
		"v1": &privateKey.PublicKey,
	})
	return provider.WithSigningKey("v1", privateKey)
}

func signToken(t *testing.T, provider *StaticKeyProvider, claims AccessTokenClaims) string {
	t.Helper()

	signingKey, err := provider.GetSigningKey()
	if err != nil {
		t.Fatalf("GetSigningKey: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = provider.SigningKID()

	signed, err := token.SignedString(signingKey)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func baseClaims(subject string, expiresAt time.Time) AccessTokenClaims {
	return AccessTokenClaims{
		PrincipalID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tantor-learning-api",
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
}

func TestVerifyValidToken(t *testing.T) {
	provider := newTestProvider(t)
	verifier := NewTokenVerifier(provider, "tantor-learning-api", "").
		WithClock(func() time.Time { return testNow })

	token := signToken(t, provider, baseClaims("principal-1", testNow.Add(time.Hour)))

	claims, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if got := claims.EffectiveSubject(); got != "principal-1" {
		t.Fatalf("EffectiveSubject() = %q, want %q", got, "principal-1")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	provider := newTestProvider(t)
	verifier := NewTokenVerifier(provider, "", "").
		WithClock(func() time.Time { return testNow })

	expiredAt := testNow.Add(-time.Minute)
	token := signToken(t, provider, baseClaims("principal-1", expiredAt))

	_, err := verifier.Verify(context.Background(), token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	var expired *TokenExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("expected *TokenExpiredError, got %T", err)
	}
	if !expired.ExpiredAt.Equal(expiredAt) {
		t.Fatalf("ExpiredAt = %v, want %v", expired.ExpiredAt, expiredAt)
	}
}

func TestVerifyExpiryBoundaryIsExpired(t *testing.T) {
	provider := newTestProvider(t)
	verifier := NewTokenVerifier(provider, "", "").
		WithClock(func() time.Time { return testNow })

	// A token expiring exactly now is already outside its validity window.
	token := signToken(t, provider, baseClaims("principal-1", testNow))

	_, err := verifier.Verify(context.Background(), token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at the boundary, got %v", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	provider := newTestProvider(t)
	verifier := NewTokenVerifier(provider, "", "").
		WithClock(func() time.Time { return testNow })

	for _, token := range []string{"", "   ", "not-a-jwt", "a.b"} {
		if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Verify(%q): expected ErrTokenMalformed, got %v", token, err)
		}
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	provider := newTestProvider(t)
	verifier := NewTokenVerifier(provider, "", "").
		WithClock(func() time.Time { return testNow })

	other := newTestProvider(t)
	token := signToken(t, other, baseClaims("principal-1", testNow.Add(time.Hour)))

	_, err := verifier.Verify(context.Background(), token)
	if !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for a foreign signature, got %v", err)
	}
}

func TestVerifyUnknownKey(t *testing.T) {
	signer := newTestProvider(t)
	verifier := NewTokenVerifier(NewStaticKeyProvider(nil), "", "").
		WithClock(func() time.Time { return testNow })

	token := signToken(t, signer, baseClaims("principal-1", testNow.Add(time.Hour)))

	_, err := verifier.Verify(context.Background(), token)
	if !errors.Is(err, ErrTokenUnverifiable) {
		t.Fatalf("expected ErrTokenUnverifiable for an unknown kid, got %v", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	provider := newTestProvider(t)
	verifier := NewTokenVerifier(provider, "expected-issuer", "").
		WithClock(func() time.Time { return testNow })

	token := signToken(t, provider, baseClaims("principal-1", testNow.Add(time.Hour)))

	_, err := verifier.Verify(context.Background(), token)
	if !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for a wrong issuer, got %v", err)
	}
}

func TestVerifyMissingSubject(t *testing.T) {
	provider := newTestProvider(t)
	verifier := NewTokenVerifier(provider, "", "").
		WithClock(func() time.Time { return testNow })

	claims := baseClaims("", testNow.Add(time.Hour))
	token := signToken(t, provider, claims)

	_, err := verifier.Verify(context.Background(), token)
	if !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func TestVerifySubjectFallback(t *testing.T) {
	provider := newTestProvider(t)
	verifier := NewTokenVerifier(provider, "", "").
		WithClock(func() time.Time { return testNow })

	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "legacy-subject",
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}
	token := signToken(t, provider, claims)

	got, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if subject := got.EffectiveSubject(); subject != "legacy-subject" {
		t.Fatalf("EffectiveSubject() = %q, want %q", subject, "legacy-subject")
	}
}
