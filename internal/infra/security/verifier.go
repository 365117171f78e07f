package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMalformed indicates the token failed structural or signature validation.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired indicates the token is structurally valid but past its validity window.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenUnverifiable indicates verification failed for a reason other
	// than structure or expiry, e.g. an unknown kid or a key lookup failure.
	ErrTokenUnverifiable = errors.New("token verification failed")
	// ErrMissingSubject indicates a well-formed token that carries no usable principal identifier.
	ErrMissingSubject = errors.New("token has no subject")
)

// TokenExpiredError carries the expiry instant for diagnostics. It matches
// ErrTokenExpired under errors.Is.
type TokenExpiredError struct {
	ExpiredAt time.Time
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("token expired at %s", e.ExpiredAt.UTC().Format(time.RFC3339))
}

// Is makes the typed error match the ErrTokenExpired sentinel.
func (e *TokenExpiredError) Is(target error) bool {
	return target == ErrTokenExpired
}

// AccessTokenClaims is the decoded payload of a verified credential. The
// upstream identity service writes the principal identifier into "uid";
// older tokens only set the registered "sub" claim.
type AccessTokenClaims struct {
	PrincipalID string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// EffectiveSubject returns the principal identifier, preferring the uid
// claim and falling back to the registered subject.
func (c *AccessTokenClaims) EffectiveSubject() string {
	if subject := strings.TrimSpace(c.PrincipalID); subject != "" {
		return subject
	}
	return strings.TrimSpace(c.RegisteredClaims.Subject)
}

// TokenVerifier validates RS256 access tokens issued by the upstream
// identity service and classifies every failure.
type TokenVerifier struct {
	keys     KeyProvider
	issuer   string
	audience string
	now      func() time.Time
}

// NewTokenVerifier constructs a verifier. Empty issuer or audience disables
// the corresponding claim check.
func NewTokenVerifier(keys KeyProvider, issuer, audience string) *TokenVerifier {
	return &TokenVerifier{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the verifier clock for deterministic tests.
func (v *TokenVerifier) WithClock(clock func() time.Time) *TokenVerifier {
	if clock != nil {
		v.now = clock
	}
	return v
}

// Verify decodes and validates the supplied opaque token. Wall-clock time is
// read once at the moment of verification, so a token whose expiry equals
// "now" classifies as expired, never as valid. Outcomes:
//
//   - ErrTokenExpired (a *TokenExpiredError carrying the expiry instant)
//   - ErrTokenMalformed for structural, signature, and claim-value failures
//   - ErrTokenUnverifiable for any other decode failure
//   - ErrMissingSubject for valid tokens without a principal identifier
//
// The context is accepted for interface symmetry with remote verifiers;
// local RSA verification has no suspension point.
func (v *TokenVerifier) Verify(_ context.Context, token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}

	claims := &AccessTokenClaims{}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, v.verificationKey, opts...)
	if err != nil {
		return nil, v.classify(err, claims)
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.EffectiveSubject() == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}

func (v *TokenVerifier) verificationKey(t *jwt.Token) (any, error) {
	kid, ok := t.Header["kid"].(string)
	if !ok || strings.TrimSpace(kid) == "" {
		return nil, errors.New("kid header not found")
	}
	return v.keys.GetVerificationKey(kid)
}

func (v *TokenVerifier) classify(err error, claims *AccessTokenClaims) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		expired := &TokenExpiredError{}
		if claims.RegisteredClaims.ExpiresAt != nil {
			expired.ExpiredAt = claims.RegisteredClaims.ExpiresAt.Time
		}
		return expired
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenUnverifiable, err)
	}
}
