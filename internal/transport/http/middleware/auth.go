package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// AuthOptions configures the authorization middleware.
type AuthOptions struct {
	// Header names the request header carrying the credential, default
	// "Authorization".
	Header string
}

// Authorize runs the authorization engine for the matched route and, on
// allow, attaches the resolved identity to the request context. On deny the
// response body is deliberately uninformative — one opaque "unauthorized"
// regardless of which step failed, so callers cannot probe which part of
// the check rejected them. The precise classification stays internal, in
// the engine's audit log and decision metrics.
func Authorize(engine *usecase.AuthorizerService, opts AuthOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = "Authorization"
	}

	return func(c *gin.Context) {
		op := usecase.Operation{Method: c.Request.Method, Route: c.FullPath()}

		identity, err := engine.Authorize(c.Request.Context(), c.GetHeader(header), op)
		if err != nil {
			if usecase.DenyReason(err) == usecase.ReasonInternal {
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authorization failed"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "unauthorized"))
			return
		}

		c.Set(SubjectIDKey, identity.SubjectID)
		c.Set(RolesKey, identity.Roles)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.SubjectID = identity.SubjectID
		}

		c.Next()
	}
}

// GetAuthenticatedSubjectID retrieves the subject ID from context (helper for handlers)
func GetAuthenticatedSubjectID(c *gin.Context) (string, bool) {
	subject, exists := c.Get(SubjectIDKey)
	if !exists {
		return "", false
	}

	if id, ok := subject.(string); ok {
		return id, true
	}

	return "", false
}

// GetAuthenticatedRoles retrieves the resolved effective roles from context.
func GetAuthenticatedRoles(c *gin.Context) ([]string, bool) {
	value, exists := c.Get(RolesKey)
	if !exists {
		return nil, false
	}

	roles, ok := value.([]string)
	return roles, ok
}
