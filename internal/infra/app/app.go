package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/infra/config"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/infra/database"
	kafkainfra "github.com/Tantor-Hub/tantor-learning-authz/internal/infra/kafka"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/infra/logger"
	redisinfra "github.com/Tantor-Hub/tantor-learning-authz/internal/infra/redis"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/infra/security"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/infra/telemetry"
	postgresrepo "github.com/Tantor-Hub/tantor-learning-authz/internal/repository/postgres"
	redisrepo "github.com/Tantor-Hub/tantor-learning-authz/internal/repository/redis"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/transport/http/middleware"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/transport/http/routes"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/usecase"
)

// Application wires configuration, infrastructure and transport together and
// owns their lifecycles.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	tracing  *telemetry.TracerProvider
	consumer *kafkainfra.ConsumerGroup
}

// New builds the application graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracing, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	keyProvider, err := security.NewDirKeyProvider(cfg.JWT.KeyDirectory)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init key provider: %w", err)
	}

	verifier := security.NewTokenVerifier(keyProvider, cfg.JWT.Issuer, cfg.JWT.Audience)

	repos := postgresrepo.NewRepositories(pool)

	rateLimitTTL := cfg.Redis.RateLimitTTL
	if rateLimitTTL <= 0 {
		rateLimitTTL = 2 * cfg.RateLimit.WindowDuration
	}
	if rateLimitTTL <= 0 {
		rateLimitTTL = 5 * time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), cfg.Redis.RateLimitPrefix, rateLimitTTL)
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	decisionMetrics, err := telemetry.NewDecisionMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init decision metrics: %w", err)
	}

	authorizer := usecase.NewAuthorizerService(
		usecase.AuthorizerConfig{
			Scheme:    cfg.Auth.Scheme,
			AdminRole: cfg.Auth.AdminRole,
		},
		verifier,
		repos.Principals,
		usecase.NewPolicyRegistry(),
		log,
	).WithDecisionRecorder(decisionMetrics)

	roleAdmin := usecase.NewRoleAdminService(repos.Principals, repos.RoleAssignments, log)

	var consumer *kafkainfra.ConsumerGroup
	if len(cfg.Kafka.Brokers) > 0 {
		eventHandler := kafkainfra.NewRoleEventConsumer(repos.RoleAssignments, log)
		consumer, err = kafkainfra.NewConsumerGroup(cfg.Kafka, eventHandler, log)
		if err != nil {
			log.Warn("failed to init kafka consumer, role event feed disabled", zap.Error(err))
			consumer = nil
		} else {
			log.Info("kafka role event consumer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, role event feed disabled")
	}

	engine, err := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Authorizer:  authorizer,
		RoleAdmin:   roleAdmin,
		RateLimiter: rateLimiter,
		Metrics:     middleware.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Database:    pool,
		Cache:       redisClient,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("register routes: %w", err)
	}

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		tracing:  tracing,
		consumer: consumer,
	}, nil
}

// Run serves HTTP traffic and the role event feed until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.tracing != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.tracing.Shutdown(shutdownCtx)
		}
	}()

	consumerErrCh := make(chan error, 1)
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil {
				consumerErrCh <- fmt.Errorf("run role event consumer: %w", err)
			}
		}()
		defer func() {
			_ = a.consumer.Close()
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting authorization API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-consumerErrCh:
		return err
	}
}
