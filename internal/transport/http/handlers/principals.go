package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/usecase"
)

// PrincipalHandler exposes principal lookups and role administration.
type PrincipalHandler struct {
	roleAdmin *usecase.RoleAdminService
	logger    *zap.Logger
}

// NewPrincipalHandler builds a principal handler instance.
func NewPrincipalHandler(roleAdmin *usecase.RoleAdminService, logger *zap.Logger) *PrincipalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrincipalHandler{roleAdmin: roleAdmin, logger: logger}
}

// Get returns the principal summary with its effective roles.
func (h *PrincipalHandler) Get(c *gin.Context) {
	principal, err := h.roleAdmin.GetPrincipal(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPrincipalNotFound, Status: http.StatusNotFound, Message: "principal not found"},
		}, http.StatusInternalServerError, "failed to load principal")
		return
	}

	c.JSON(http.StatusOK, newPrincipalSummary(principal))
}

// ListRoles returns the principal's full assignment ledger.
func (h *PrincipalHandler) ListRoles(c *gin.Context) {
	assignments, err := h.roleAdmin.ListAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPrincipalNotFound, Status: http.StatusNotFound, Message: "principal not found"},
		}, http.StatusInternalServerError, "failed to list assignments")
		return
	}

	summaries := make([]AssignmentSummary, 0, len(assignments))
	for _, assignment := range assignments {
		summaries = append(summaries, newAssignmentSummary(assignment))
	}

	c.JSON(http.StatusOK, gin.H{"assignments": summaries})
}

// GrantRole activates a role assignment for the principal.
func (h *PrincipalHandler) GrantRole(c *gin.Context) {
	var req GrantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	assignment, err := h.roleAdmin.Grant(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPrincipalNotFound, Status: http.StatusNotFound, Message: "principal not found"},
			{Err: usecase.ErrInvalidRole, Status: http.StatusBadRequest, Message: "invalid role name"},
		}, http.StatusInternalServerError, "failed to grant role")
		return
	}

	c.JSON(http.StatusCreated, newAssignmentSummary(*assignment))
}

// RevokeRole deactivates the principal's assignment for the named role.
func (h *PrincipalHandler) RevokeRole(c *gin.Context) {
	err := h.roleAdmin.Revoke(c.Request.Context(), c.Param("id"), c.Param("role"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidRole, Status: http.StatusBadRequest, Message: "invalid role name"},
			{Err: usecase.ErrAssignmentNotFound, Status: http.StatusNotFound, Message: "assignment not found"},
		}, http.StatusInternalServerError, "failed to revoke role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role revoked"})
}
