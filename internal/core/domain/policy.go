package domain

import "errors"

// DefaultAdminRole is the sentinel role honoured by the admin override when
// no deployment-specific name is configured.
const DefaultAdminRole = "admin"

// ErrEmptyPolicyRoles indicates a policy was constructed without any required
// roles. Such a policy could never be satisfied, so construction rejects it
// instead of letting it become a silent permanent deny at request time.
var ErrEmptyPolicyRoles = errors.New("policy: required roles must not be empty")

// Policy is an immutable access rule bound to an operation: a non-empty set
// of required role names, an ALL/ANY combinator, and an admin-override flag
// (on unless explicitly disabled).
type Policy struct {
	requiredRoles      []string
	requireAll         bool
	allowAdminOverride bool
}

// PolicyOption customises policy construction.
type PolicyOption func(*Policy)

// RequireAllRoles switches the combinator from ANY (the default) to ALL.
func RequireAllRoles() PolicyOption {
	return func(p *Policy) {
		p.requireAll = true
	}
}

// WithoutAdminOverride disables the admin escape hatch for this policy.
func WithoutAdminOverride() PolicyOption {
	return func(p *Policy) {
		p.allowAdminOverride = false
	}
}

// NewPolicy validates and builds a Policy. Required role names are
// deduplicated preserving order; empty names are dropped. An empty resulting
// set returns ErrEmptyPolicyRoles.
func NewPolicy(requiredRoles []string, opts ...PolicyOption) (Policy, error) {
	seen := make(map[string]struct{}, len(requiredRoles))
	normalized := make([]string, 0, len(requiredRoles))
	for _, role := range requiredRoles {
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}

	if len(normalized) == 0 {
		return Policy{}, ErrEmptyPolicyRoles
	}

	policy := Policy{
		requiredRoles:      normalized,
		allowAdminOverride: true,
	}
	for _, opt := range opts {
		opt(&policy)
	}

	return policy, nil
}

// MustPolicy is a construction helper for policies declared at route
// registration, where an invalid declaration is a programming error.
func MustPolicy(requiredRoles []string, opts ...PolicyOption) Policy {
	policy, err := NewPolicy(requiredRoles, opts...)
	if err != nil {
		panic(err)
	}
	return policy
}

// RequiredRoles returns a copy of the policy's required role names.
func (p Policy) RequiredRoles() []string {
	return append([]string(nil), p.requiredRoles...)
}

// RequireAll reports whether every required role must be held.
func (p Policy) RequireAll() bool {
	return p.requireAll
}

// AllowAdminOverride reports whether the admin sentinel bypasses matching.
func (p Policy) AllowAdminOverride() bool {
	return p.allowAdminOverride
}

// Evaluate decides whether the supplied role set satisfies the policy. The
// admin override is checked first and short-circuits: a caller holding the
// sentinel role passes regardless of the combinator. Otherwise ALL demands
// containment of every required role and ANY a non-empty intersection.
// Pure and total; the zero adminRole disables the override check.
func (p Policy) Evaluate(roles []string, adminRole string) bool {
	held := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		held[role] = struct{}{}
	}

	if p.allowAdminOverride && adminRole != "" {
		if _, ok := held[adminRole]; ok {
			return true
		}
	}

	if p.requireAll {
		for _, required := range p.requiredRoles {
			if _, ok := held[required]; !ok {
				return false
			}
		}
		return true
	}

	for _, required := range p.requiredRoles {
		if _, ok := held[required]; ok {
			return true
		}
	}
	return false
}
