package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Vipul0052/Lifeline-v2/internal/core/port"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/config"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/database"
	kafkainfra "github.com/Vipul0052/Lifeline-v2/internal/infra/kafka"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/logger"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/provider"
	redisinfra "github.com/Vipul0052/Lifeline-v2/internal/infra/redis"
	memoryrepo "github.com/Vipul0052/Lifeline-v2/internal/repository/memory"
	postgresrepo "github.com/Vipul0052/Lifeline-v2/internal/repository/postgres"
	redisrepo "github.com/Vipul0052/Lifeline-v2/internal/repository/redis"
	"github.com/Vipul0052/Lifeline-v2/internal/transport/http/middleware"
	"github.com/Vipul0052/Lifeline-v2/internal/transport/http/routes"
	"github.com/Vipul0052/Lifeline-v2/internal/usecase"
)

// Application wires the auth boundary together and owns its lifecycle.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	memory   *memoryrepo.RateLimitStore
	identity *provider.Client
	sessions *usecase.SessionStore
	producer *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	identity, err := provider.New(cfg.Provider, log)
	if err != nil {
		return nil, fmt.Errorf("init identity provider: %w", err)
	}

	app := &Application{cfg: cfg, logger: log, identity: identity}

	rateLimitStore, err := app.initRateLimitStore()
	if err != nil {
		return nil, err
	}

	login := usecase.NewAttemptLimiter("login", rateLimitStore,
		cfg.RateLimit.LoginMaxAttempts, cfg.RateLimit.LoginWindow, log)
	signup := usecase.NewAttemptLimiter("signup", rateLimitStore,
		cfg.RateLimit.SignupMaxAttempts, cfg.RateLimit.SignupWindow, log)
	reset := usecase.NewAttemptLimiter("password-reset", rateLimitStore,
		cfg.RateLimit.PasswordResetMaxAttempts, cfg.RateLimit.PasswordResetWindow, log)

	eventPublisher := app.initEventPublisher()

	credentials := usecase.NewCredentialService(identity, login, signup, reset, log).
		WithEventPublisher(eventPublisher)

	if cfg.Audit.Enabled {
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			app.closeInfra()
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		app.pool = pool
		credentials.WithAttemptLog(postgresrepo.NewLoginAttemptRepository(pool))
	}

	app.sessions = usecase.NewSessionStore(identity, log).WithEventPublisher(eventPublisher)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		app.closeInfra()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	deps := routes.Dependencies{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics,
		Services: routes.ServiceSet{
			Credentials: credentials,
			Sessions:    app.sessions,
		},
	}
	if app.pool != nil {
		deps.Database = app.pool
	}
	if app.redis != nil {
		deps.Cache = app.redis
	}

	app.engine = routes.Register(deps)

	return app, nil
}

// initRateLimitStore selects the attempt store backend. A single instance
// runs on the in-process store; multi-instance deployments share counters
// through Redis.
func (a *Application) initRateLimitStore() (port.RateLimitStore, error) {
	maxWindow := a.cfg.RateLimit.LoginWindow
	if a.cfg.RateLimit.SignupWindow > maxWindow {
		maxWindow = a.cfg.RateLimit.SignupWindow
	}
	if a.cfg.RateLimit.PasswordResetWindow > maxWindow {
		maxWindow = a.cfg.RateLimit.PasswordResetWindow
	}

	if a.cfg.RateLimit.Store == "redis" {
		redisClient, err := redisinfra.NewClient(a.cfg.Redis, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = redisClient

		return redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: "lifeline:rate-limit",
			TTL:       maxWindow * 2,
		}), nil
	}

	store := memoryrepo.NewRateLimitStore(maxWindow * 2)
	sweep := a.cfg.RateLimit.SweepInterval
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}
	store.StartSweeper(sweep)
	a.memory = store

	a.logger.Info("using in-process rate limit store", zap.Duration("sweep_interval", sweep))
	return store, nil
}

func (a *Application) initEventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}

	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) closeInfra() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.memory != nil {
		a.memory.Stop()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.identity != nil {
		a.identity.Close()
	}
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.closeInfra()

	a.sessions.Start(ctx)
	defer a.sessions.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
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
	}
}
