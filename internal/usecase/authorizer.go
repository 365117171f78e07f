package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/port"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/infra/security"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/repository"
)

var (
	// ErrMissingCredential indicates the authorization header is absent or
	// lacks the expected scheme prefix.
	ErrMissingCredential = errors.New("missing credential")
	// ErrPrincipalNotFound indicates a valid token whose subject no longer
	// exists, e.g. a deleted account holding a still-valid token.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrInsufficientRoles is the sentinel matched by InsufficientRolesError.
	ErrInsufficientRoles = errors.New("insufficient roles")
)

// InsufficientRolesError reports a failed policy evaluation with enough
// structure for an audit log to show what was required versus held.
type InsufficientRolesError struct {
	Required   []string
	RequireAll bool
	Actual     []string
}

func (e *InsufficientRolesError) Error() string {
	combinator := "any of"
	if e.RequireAll {
		combinator = "all of"
	}
	return fmt.Sprintf("insufficient roles: required %s [%s], held [%s]",
		combinator, strings.Join(e.Required, ", "), strings.Join(e.Actual, ", "))
}

// Is makes the typed error match the ErrInsufficientRoles sentinel.
func (e *InsufficientRolesError) Is(target error) bool {
	return target == ErrInsufficientRoles
}

// TokenVerifier exposes the credential verification capability required by
// the authorizer.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*security.AccessTokenClaims, error)
}

// DecisionRecorder observes terminal authorization outcomes, e.g. for
// Prometheus counters. Reason is one of the DenyReason values, empty on
// allow.
type DecisionRecorder interface {
	RecordDecision(outcome string, reason string)
}

// Identity is the resolved caller attached to the request context after a
// successful authorization, for downstream consumption such as ownership
// checks.
type Identity struct {
	SubjectID string
	Roles     []string
}

// AuthorizerConfig carries the read-only settings of the engine, fixed at
// process start.
type AuthorizerConfig struct {
	// Scheme is the credential prefix expected in the header, default "Bearer".
	Scheme string
	// AdminRole is the sentinel honoured by policy admin overrides.
	AdminRole string
}

// AuthorizerService decides whether a caller may invoke an operation. It is
// stateless per request: the only fields are read-only configuration and
// collaborators, so concurrent requests share nothing mutable.
type AuthorizerService struct {
	scheme     string
	adminRole  string
	verifier   TokenVerifier
	principals port.PrincipalRepository
	policies   *PolicyRegistry
	recorder   DecisionRecorder
	logger     *zap.Logger
}

// NewAuthorizerService constructs the engine.
func NewAuthorizerService(
	cfg AuthorizerConfig,
	verifier TokenVerifier,
	principals port.PrincipalRepository,
	policies *PolicyRegistry,
	logger *zap.Logger,
) *AuthorizerService {
	scheme := strings.TrimSpace(cfg.Scheme)
	if scheme == "" {
		scheme = "Bearer"
	}
	adminRole := cfg.AdminRole
	if adminRole == "" {
		adminRole = domain.DefaultAdminRole
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policies == nil {
		policies = NewPolicyRegistry()
	}

	return &AuthorizerService{
		scheme:     scheme,
		adminRole:  adminRole,
		verifier:   verifier,
		principals: principals,
		policies:   policies,
		recorder:   nil,
		logger:     logger,
	}
}

// WithDecisionRecorder attaches an observer for terminal outcomes.
func (s *AuthorizerService) WithDecisionRecorder(recorder DecisionRecorder) *AuthorizerService {
	s.recorder = recorder
	return s
}

// Policies exposes the registry so route registration can bind policies to
// the operations it declares.
func (s *AuthorizerService) Policies() *PolicyRegistry {
	return s.policies
}

// AdminRole returns the configured sentinel role name.
func (s *AuthorizerService) AdminRole() string {
	return s.adminRole
}

// Authorize runs the per-request decision sequence: extract credential,
// verify token, resolve principal, resolve roles, look up the bound policy,
// evaluate. Every failure is terminal and fail-closed; nothing is retried.
// The roles used for the decision are a single snapshot read — an assignment
// revoked concurrently with an in-flight request may still count, which is
// an accepted read-committed staleness window, not something this engine
// papers over with locks.
func (s *AuthorizerService) Authorize(ctx context.Context, header string, op Operation) (*Identity, error) {
	identity, err := s.authorize(ctx, header, op)
	s.observe(op, identity, err)
	return identity, err
}

func (s *AuthorizerService) authorize(ctx context.Context, header string, op Operation) (*Identity, error) {
	token, err := s.extractCredential(header)
	if err != nil {
		return nil, err
	}

	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	principal, err := s.principals.GetByID(ctx, claims.EffectiveSubject())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("resolve principal: %w", err)
	}

	roles := principal.EffectiveRoles()

	policy, bound := s.policies.Lookup(op)
	if bound && !policy.Evaluate(roles, s.adminRole) {
		return nil, &InsufficientRolesError{
			Required:   policy.RequiredRoles(),
			RequireAll: policy.RequireAll(),
			Actual:     roles,
		}
	}

	return &Identity{SubjectID: principal.ID, Roles: roles}, nil
}

// extractCredential strips the scheme prefix from the raw header value. The
// token verifier is never invoked for a header that fails here.
func (s *AuthorizerService) extractCredential(header string) (string, error) {
	if header == "" {
		return "", ErrMissingCredential
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], s.scheme) {
		return "", ErrMissingCredential
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingCredential
	}

	return token, nil
}

func (s *AuthorizerService) observe(op Operation, identity *Identity, err error) {
	if err == nil {
		if s.recorder != nil {
			s.recorder.RecordDecision(DecisionAllow, "")
		}
		return
	}

	reason := DenyReason(err)
	if s.recorder != nil {
		s.recorder.RecordDecision(DecisionDeny, reason)
	}

	fields := []zap.Field{
		zap.String("operation", op.String()),
		zap.String("reason", reason),
	}
	var insufficient *InsufficientRolesError
	if errors.As(err, &insufficient) {
		fields = append(fields,
			zap.Strings("required_roles", insufficient.Required),
			zap.Bool("require_all", insufficient.RequireAll),
			zap.Strings("held_roles", insufficient.Actual),
		)
	}
	var expired *security.TokenExpiredError
	if errors.As(err, &expired) {
		fields = append(fields, zap.Time("expired_at", expired.ExpiredAt))
	}

	s.logger.Info("authorization denied", fields...)
}

// Terminal decision outcomes.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Deny reason labels, stable for logs and metrics.
const (
	ReasonMissingCredential   = "missing_credential"
	ReasonTokenExpired        = "token_expired"
	ReasonTokenMalformed      = "token_malformed"
	ReasonTokenUnverifiable   = "token_unverifiable"
	ReasonTokenMissingSubject = "token_missing_subject"
	ReasonPrincipalNotFound   = "principal_not_found"
	ReasonInsufficientRoles   = "insufficient_roles"
	ReasonInternal            = "internal"
)

// DenyReason maps a classified authorization failure to its stable label.
func DenyReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return ReasonMissingCredential
	case errors.Is(err, security.ErrTokenExpired):
		return ReasonTokenExpired
	case errors.Is(err, security.ErrTokenMalformed):
		return ReasonTokenMalformed
	case errors.Is(err, security.ErrMissingSubject):
		return ReasonTokenMissingSubject
	case errors.Is(err, security.ErrTokenUnverifiable):
		return ReasonTokenUnverifiable
	case errors.Is(err, ErrPrincipalNotFound):
		return ReasonPrincipalNotFound
	case errors.Is(err, ErrInsufficientRoles):
		return ReasonInsufficientRoles
	default:
		return ReasonInternal
	}
}
