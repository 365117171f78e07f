package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/transport/http/middleware"
)

// IntrospectHandler echoes the identity established by the authorization
// middleware. The route carries no policy binding, so any principal with a
// valid credential can inspect its own effective roles.
type IntrospectHandler struct {
	logger *zap.Logger
}

// NewIntrospectHandler builds an introspection handler.
func NewIntrospectHandler(logger *zap.Logger) *IntrospectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntrospectHandler{logger: logger}
}

// Introspect returns the subject and roles resolved for the current request.
func (h *IntrospectHandler) Introspect(c *gin.Context) {
	subjectID, ok := middleware.GetAuthenticatedSubjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "unauthorized"))
		return
	}

	roles, _ := middleware.GetAuthenticatedRoles(c)
	if roles == nil {
		roles = []string{}
	}

	c.JSON(http.StatusOK, IntrospectResponse{
		SubjectID: subjectID,
		Roles:     roles,
	})
}
