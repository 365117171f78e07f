package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/repository"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/usecase"
)

type memoryPrincipals struct {
	byID map[string]*domain.Principal
}

func (m *memoryPrincipals) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	principal, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return principal, nil
}

type memoryAssignments struct {
	byPrincipal map[string][]domain.RoleAssignment
	revokeErr   error
}

func (m *memoryAssignments) ListByPrincipal(ctx context.Context, principalID string) ([]domain.RoleAssignment, error) {
	return m.byPrincipal[principalID], nil
}

func (m *memoryAssignments) Grant(ctx context.Context, principalID, role string, at time.Time) (*domain.RoleAssignment, error) {
	return &domain.RoleAssignment{
		ID:          "a-1",
		PrincipalID: principalID,
		Role:        role,
		Active:      true,
		CreatedAt:   at,
		UpdatedAt:   at,
	}, nil
}

func (m *memoryAssignments) Revoke(ctx context.Context, principalID, role string, at time.Time) error {
	return m.revokeErr
}

func principalRouter(t *testing.T, principals *memoryPrincipals, assignments *memoryAssignments) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service := usecase.NewRoleAdminService(principals, assignments, zaptest.NewLogger(t))
	handler := NewPrincipalHandler(service, zaptest.NewLogger(t))

	router := gin.New()
	router.GET("/api/v1/principals/:id", handler.Get)
	router.GET("/api/v1/principals/:id/roles", handler.ListRoles)
	router.POST("/api/v1/principals/:id/roles", handler.GrantRole)
	router.DELETE("/api/v1/principals/:id/roles/:role", handler.RevokeRole)
	return router
}

func seedPrincipal() *memoryPrincipals {
	legacy := "student"
	return &memoryPrincipals{byID: map[string]*domain.Principal{
		"p-1": {
			ID:           "p-1",
			Username:     "jdoe",
			Email:        "jdoe@example.com",
			LegacyRole:   &legacy,
			Status:       domain.PrincipalStatusActive,
			RegisteredAt: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
			Assignments: []domain.RoleAssignment{
				{ID: "a-1", PrincipalID: "p-1", Role: "instructor", Active: true},
			},
		},
	}}
}

func TestPrincipalHandlerGet(t *testing.T) {
	router := principalRouter(t, seedPrincipal(), &memoryAssignments{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/principals/p-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var summary PrincipalSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if summary.Username != "jdoe" {
		t.Fatalf("username = %q", summary.Username)
	}
	if len(summary.Roles) != 2 || summary.Roles[0] != "student" || summary.Roles[1] != "instructor" {
		t.Fatalf("roles = %v", summary.Roles)
	}
}

func TestPrincipalHandlerGetNotFound(t *testing.T) {
	router := principalRouter(t, &memoryPrincipals{}, &memoryAssignments{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/principals/ghost", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPrincipalHandlerListRoles(t *testing.T) {
	assignments := &memoryAssignments{byPrincipal: map[string][]domain.RoleAssignment{
		"p-1": {
			{ID: "a-1", PrincipalID: "p-1", Role: "instructor", Active: true},
			{ID: "a-2", PrincipalID: "p-1", Role: "secretary", Active: false},
		},
	}}
	router := principalRouter(t, seedPrincipal(), assignments)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/principals/p-1/roles", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body struct {
		Assignments []AssignmentSummary `json:"assignments"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Assignments) != 2 {
		t.Fatalf("expected both ledger rows, got %d", len(body.Assignments))
	}
	if body.Assignments[1].Active {
		t.Fatal("expected inactive row to keep its flag")
	}
}

func TestPrincipalHandlerGrantRole(t *testing.T) {
	router := principalRouter(t, seedPrincipal(), &memoryAssignments{})

	payload := bytes.NewBufferString(`{"role":"secretary"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/principals/p-1/roles", payload)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var summary AssignmentSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if summary.Role != "secretary" || !summary.Active {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestPrincipalHandlerGrantRoleValidation(t *testing.T) {
	router := principalRouter(t, seedPrincipal(), &memoryAssignments{})

	for _, payload := range []string{`{}`, `{"role":"   "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/principals/p-1/roles", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: expected 400, got %d", payload, rr.Code)
		}
	}
}

func TestPrincipalHandlerGrantRoleUnknownPrincipal(t *testing.T) {
	router := principalRouter(t, &memoryPrincipals{}, &memoryAssignments{})

	payload := bytes.NewBufferString(`{"role":"secretary"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/principals/ghost/roles", payload)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPrincipalHandlerRevokeRole(t *testing.T) {
	router := principalRouter(t, seedPrincipal(), &memoryAssignments{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/principals/p-1/roles/instructor", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestPrincipalHandlerRevokeMissingAssignment(t *testing.T) {
	assignments := &memoryAssignments{revokeErr: repository.ErrNotFound}
	router := principalRouter(t, seedPrincipal(), assignments)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/principals/p-1/roles/instructor", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
