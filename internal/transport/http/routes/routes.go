package routes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/infra/config"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/transport/http/handlers"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/transport/http/middleware"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Authorizer  *usecase.AuthorizerService
	RoleAdmin   *usecase.RoleAdminService
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes, policy bindings and
// middleware. Policies are declared here, next to the handlers they guard,
// so the protection of every route is visible at its registration site.
func Register(deps Dependencies) (*gin.Engine, error) {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))

	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	checks := make([]handlers.ReadinessCheck, 0, 2)
	if deps.Database != nil {
		checks = append(checks, handlers.ReadinessCheck{Name: "database", Check: deps.Database.Ping})
	}
	if deps.Cache != nil {
		checks = append(checks, handlers.ReadinessCheck{Name: "redis", Check: deps.Cache.HealthCheck})
	}

	healthHandler := handlers.NewHealthHandler(checks...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authorize := middleware.Authorize(deps.Authorizer, middleware.AuthOptions{
		Header: deps.Config.Auth.Header,
	})
	policies := deps.Authorizer.Policies()

	if err := bindPolicies(policies); err != nil {
		return nil, err
	}

	api := r.Group("/api/v1")
	{
		introspectHandler := handlers.NewIntrospectHandler(deps.Logger)

		authGroup := api.Group("/auth")
		introspectHandlers := appendRateLimit(nil, deps, introspectRule(deps))
		introspectHandlers = append(introspectHandlers, authorize, introspectHandler.Introspect)
		authGroup.GET("/introspect", introspectHandlers...)

		principalHandler := handlers.NewPrincipalHandler(deps.RoleAdmin, deps.Logger)

		principalsGroup := api.Group("/principals")
		principalsGroup.Use(appendRateLimit(nil, deps, adminRule(deps))...)
		principalsGroup.Use(authorize)
		principalsGroup.GET("/:id", principalHandler.Get)
		principalsGroup.GET("/:id/roles", principalHandler.ListRoles)
		principalsGroup.POST("/:id/roles", principalHandler.GrantRole)
		principalsGroup.DELETE("/:id/roles/:role", principalHandler.RevokeRole)
	}

	registerOperations(policies)

	return r, nil
}

// bindPolicies declares what each operation requires. The introspection
// endpoint carries no binding: a valid credential is the whole requirement.
func bindPolicies(policies *usecase.PolicyRegistry) error {
	// Read access on principals: either back-office role may look.
	if err := policies.BindGroup("/api/v1/principals",
		domain.MustPolicy([]string{"secretary", "instructor"})); err != nil {
		return fmt.Errorf("bind policies: %w", err)
	}

	direct := map[usecase.Operation]domain.Policy{
		{Method: http.MethodGet, Route: "/api/v1/principals/:id/roles"}: domain.MustPolicy(
			[]string{"secretary"},
		),
		{Method: http.MethodPost, Route: "/api/v1/principals/:id/roles"}: domain.MustPolicy(
			[]string{"admin"}, domain.RequireAllRoles(),
		),
		{Method: http.MethodDelete, Route: "/api/v1/principals/:id/roles/:role"}: domain.MustPolicy(
			[]string{"admin"}, domain.RequireAllRoles(),
		),
	}

	for op, policy := range direct {
		if err := policies.Bind(op, policy); err != nil {
			return fmt.Errorf("bind policies: %w", err)
		}
	}

	return nil
}

// registerOperations flattens group defaults into the dispatch table for
// every guarded route. Runs after all Bind and BindGroup calls.
func registerOperations(policies *usecase.PolicyRegistry) {
	for _, op := range []usecase.Operation{
		{Method: http.MethodGet, Route: "/api/v1/auth/introspect"},
		{Method: http.MethodGet, Route: "/api/v1/principals/:id"},
		{Method: http.MethodGet, Route: "/api/v1/principals/:id/roles"},
		{Method: http.MethodPost, Route: "/api/v1/principals/:id/roles"},
		{Method: http.MethodDelete, Route: "/api/v1/principals/:id/roles/:role"},
	} {
		policies.Register(op)
	}
}

func introspectRule(deps Dependencies) middleware.RateLimitRule {
	return middleware.RateLimitRule{
		Name:   "introspect_ip",
		Limit:  deps.Config.RateLimit.IntrospectMaxAttempts,
		Window: windowOrDefault(deps.Config.RateLimit.WindowDuration),
	}
}

func adminRule(deps Dependencies) middleware.RateLimitRule {
	return middleware.RateLimitRule{
		Name:   "principal_admin_ip",
		Limit:  deps.Config.RateLimit.AdminMaxAttempts,
		Window: windowOrDefault(deps.Config.RateLimit.WindowDuration),
	}
}

func windowOrDefault(window time.Duration) time.Duration {
	if window <= 0 {
		return time.Minute
	}
	return window
}

func appendRateLimit(chain []gin.HandlerFunc, deps Dependencies, rule middleware.RateLimitRule) []gin.HandlerFunc {
	if deps.RateLimiter == nil || rule.Limit <= 0 {
		return chain
	}
	return append(chain, deps.RateLimiter.RateLimit(rule))
}
