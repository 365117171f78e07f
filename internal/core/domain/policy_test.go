package domain

import (
	"errors"
	"testing"
)

func TestNewPolicyRejectsEmptyRoles(t *testing.T) {
	cases := [][]string{
		nil,
		{},
		{""},
		{"", ""},
	}

	for _, roles := range cases {
		if _, err := NewPolicy(roles); !errors.Is(err, ErrEmptyPolicyRoles) {
			t.Fatalf("NewPolicy(%v): expected ErrEmptyPolicyRoles, got %v", roles, err)
		}
	}
}

func TestNewPolicyDeduplicatesPreservingOrder(t *testing.T) {
	policy, err := NewPolicy([]string{"secretary", "instructor", "secretary", "", "instructor"})
	if err != nil {
		t.Fatalf("NewPolicy returned error: %v", err)
	}

	got := policy.RequiredRoles()
	want := []string{"secretary", "instructor"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMustPolicyPanicsOnEmptyRoles(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustPolicy to panic")
		}
	}()
	MustPolicy(nil)
}

func TestPolicyEvaluateAny(t *testing.T) {
	policy := MustPolicy([]string{"secretary", "instructor"})

	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"holds one of the required roles", []string{"instructor"}, true},
		{"holds all required roles", []string{"secretary", "instructor"}, true},
		{"holds none", []string{"student"}, false},
		{"empty role set", nil, false},
		{"case sensitive", []string{"Secretary"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Evaluate(tt.roles, DefaultAdminRole); got != tt.want {
				t.Fatalf("Evaluate(%v) = %v, want %v", tt.roles, got, tt.want)
			}
		})
	}
}

func TestPolicyEvaluateAll(t *testing.T) {
	policy := MustPolicy([]string{"secretary", "instructor"}, RequireAllRoles())

	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"holds all required roles", []string{"instructor", "secretary", "student"}, true},
		{"holds only one", []string{"secretary"}, false},
		{"holds none", []string{"student"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Evaluate(tt.roles, DefaultAdminRole); got != tt.want {
				t.Fatalf("Evaluate(%v) = %v, want %v", tt.roles, got, tt.want)
			}
		})
	}
}

func TestPolicyAdminOverride(t *testing.T) {
	policy := MustPolicy([]string{"secretary", "instructor"}, RequireAllRoles())

	if !policy.Evaluate([]string{"admin"}, "admin") {
		t.Fatal("expected admin override to satisfy an unmet ALL policy")
	}

	// ALL policies that are satisfiable via ANY must stay satisfiable with
	// the override, never less permissive.
	anyPolicy := MustPolicy([]string{"secretary"})
	if !anyPolicy.Evaluate([]string{"secretary", "admin"}, "admin") {
		t.Fatal("expected satisfied policy to remain satisfied with admin role held")
	}
}

func TestPolicyWithoutAdminOverride(t *testing.T) {
	policy := MustPolicy([]string{"secretary"}, WithoutAdminOverride())

	if policy.Evaluate([]string{"admin"}, "admin") {
		t.Fatal("expected disabled override to ignore the admin role")
	}
	if !policy.Evaluate([]string{"secretary"}, "admin") {
		t.Fatal("expected required role to still satisfy the policy")
	}
}

func TestPolicyEvaluateCustomAdminRole(t *testing.T) {
	policy := MustPolicy([]string{"secretary"})

	if policy.Evaluate([]string{"admin"}, "superuser") {
		t.Fatal("expected default admin name to lose override when renamed")
	}
	if !policy.Evaluate([]string{"superuser"}, "superuser") {
		t.Fatal("expected configured admin role to override")
	}
	if policy.Evaluate([]string{"superuser"}, "") {
		t.Fatal("expected empty admin role to disable override entirely")
	}
}
