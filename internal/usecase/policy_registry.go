package usecase

import (
	"fmt"
	"strings"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
)

// Operation identifies a bound handler by HTTP method and route template,
// e.g. {Method: "GET", Route: "/api/v1/principals/:id"}.
type Operation struct {
	Method string
	Route  string
}

func (o Operation) String() string {
	return o.Method + " " + o.Route
}

// PolicyRegistry is the side table mapping operation identity to the Policy
// declared alongside it. Handler-level bindings take precedence over
// group-level defaults; group defaults are flattened into the table when the
// operation is registered, so dispatch lookup is a single map read.
//
// All binding happens while routes are registered, before the server accepts
// traffic. The registry is read-only afterwards, which is why Lookup takes
// no lock.
type PolicyRegistry struct {
	bound  map[string]domain.Policy
	groups map[string]domain.Policy
}

// NewPolicyRegistry constructs an empty registry.
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{
		bound:  make(map[string]domain.Policy),
		groups: make(map[string]domain.Policy),
	}
}

// Bind attaches a policy directly to an operation. A policy that could never
// be satisfied is rejected here, at definition time, instead of becoming a
// permanent deny discovered in production.
func (r *PolicyRegistry) Bind(op Operation, policy domain.Policy) error {
	if err := validateBinding(policy); err != nil {
		return fmt.Errorf("bind %s: %w", op, err)
	}
	r.bound[op.String()] = policy
	return nil
}

// BindGroup declares a default policy for every operation whose route starts
// with prefix. When several group prefixes match an operation, the longest
// wins.
func (r *PolicyRegistry) BindGroup(prefix string, policy domain.Policy) error {
	if err := validateBinding(policy); err != nil {
		return fmt.Errorf("bind group %s: %w", prefix, err)
	}
	r.groups[prefix] = policy
	return nil
}

// Register records that an operation exists. Without an explicit binding the
// longest matching group default, if any, is flattened into the dispatch
// table. Operations never registered simply resolve to no restriction.
func (r *PolicyRegistry) Register(op Operation) {
	if _, ok := r.bound[op.String()]; ok {
		return
	}

	var (
		bestPrefix string
		bestPolicy domain.Policy
		found      bool
	)
	for prefix, policy := range r.groups {
		if strings.HasPrefix(op.Route, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix = prefix
			bestPolicy = policy
			found = true
		}
	}

	if found {
		r.bound[op.String()] = bestPolicy
	}
}

// Lookup resolves the policy bound to an operation. The second return is
// false when the operation carries no restriction: the caller still needs a
// valid credential, but no role check applies.
func (r *PolicyRegistry) Lookup(op Operation) (domain.Policy, bool) {
	policy, ok := r.bound[op.String()]
	return policy, ok
}

func validateBinding(policy domain.Policy) error {
	if len(policy.RequiredRoles()) == 0 {
		return domain.ErrEmptyPolicyRoles
	}
	return nil
}
