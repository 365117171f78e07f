package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// PrincipalSummary describes a minimal view of a principal returned by the API.
type PrincipalSummary struct {
	ID           string                 `json:"id"`
	Username     string                 `json:"username"`
	Email        string                 `json:"email,omitempty"`
	Status       domain.PrincipalStatus `json:"status"`
	RegisteredAt time.Time              `json:"registered_at"`
	Roles        []string               `json:"roles,omitempty"`
}

// AssignmentSummary provides a compact view of one role assignment.
type AssignmentSummary struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GrantRoleRequest defines the payload for granting a role assignment.
type GrantRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// IntrospectResponse echoes the verified identity for the presented credential.
type IntrospectResponse struct {
	SubjectID string   `json:"subject_id"`
	Roles     []string `json:"roles"`
}

func newPrincipalSummary(p *domain.Principal) PrincipalSummary {
	return PrincipalSummary{
		ID:           p.ID,
		Username:     p.Username,
		Email:        p.Email,
		Status:       p.Status,
		RegisteredAt: p.RegisteredAt,
		Roles:        p.EffectiveRoles(),
	}
}

func newAssignmentSummary(a domain.RoleAssignment) AssignmentSummary {
	return AssignmentSummary{
		ID:        a.ID,
		Role:      a.Role,
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
