package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/events"
	"github.com/aryan0dhankhar/paymentsportal/internal/featureflags"
	"github.com/aryan0dhankhar/paymentsportal/internal/handler"
	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/rabbitmq"
	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/paymentsportal/internal/observability/tracing"
	"github.com/aryan0dhankhar/paymentsportal/internal/reliability/retry"
	"github.com/aryan0dhankhar/paymentsportal/internal/repository"
	"github.com/aryan0dhankhar/paymentsportal/internal/security"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/audit"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/auth"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/csrf"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/password"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/ratelimit"
	"github.com/aryan0dhankhar/paymentsportal/internal/service"
	"github.com/aryan0dhankhar/paymentsportal/internal/worker"
	"github.com/aryan0dhankhar/paymentsportal/pkg/config"
	"github.com/aryan0dhankhar/paymentsportal/pkg/database"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// A missing .env is normal outside local development.
	envErr := godotenv.Load()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Debug("no .env file loaded", slog.String("reason", envErr.Error()))
	}
	log.Info("starting payments portal",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "paymentsportal", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Stores
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.close()
	checks := map[string]handler.Check{"store": st.ping}

	// 4. Redis backs rate limiting and the refresh denylist when configured
	var (
		authLimiter, apiLimiter ratelimit.Limiter
		revoked                 repository.RevocationStore
		pruners                 []worker.Pruner
	)
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		authLimiter = ratelimit.NewRedisLimiter(redisClient, "ratelimit:auth", cfg.AuthRateLimit, cfg.AuthRateWindow)
		apiLimiter = ratelimit.NewRedisLimiter(redisClient, "ratelimit:api", cfg.APIRateLimit, cfg.APIRateWindow)
		revoked = repository.NewRedisRevocationStore(redisClient)
		checks["redis"] = redisClient.Ping
	} else {
		log.Warn("REDIS_URL not set; rate limits and the refresh denylist are per-process")
		memAuth := ratelimit.NewMemoryLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)
		memAPI := ratelimit.NewMemoryLimiter(cfg.APIRateLimit, cfg.APIRateWindow)
		defer memAuth.Stop()
		defer memAPI.Stop()
		memRevoked := repository.NewMemoryRevocationStore()
		authLimiter, apiLimiter, revoked = memAuth, memAPI, memRevoked
		pruners = append(pruners, memRevoked)
	}

	// 5. Transaction events: broker fan-out plus the in-process stream hub
	var publisher rabbitmq.Publisher = rabbitmq.NewNoopPublisher(log)
	if cfg.RabbitMQURL != "" {
		producer, err := retry.Do(ctx, retry.DefaultConfig(), log, "connect rabbitmq", func(context.Context) (*rabbitmq.EventProducer, error) {
			return rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange, log)
		})
		if err != nil {
			log.Error("failed to connect to RabbitMQ", slog.String("error", err.Error()))
			os.Exit(1)
		}
		publisher = producer
	}
	defer publisher.Close()

	var hub *events.Hub
	if cfg.Flags.Enabled(featureflags.QueueStream) {
		hub = events.NewHub(events.DefaultBuffer, log)
	}
	dispatcher := events.NewDispatcher(publisher, hub, log)

	// 6. Security components
	hasher, err := password.NewHasher(cfg.PasswordPepper, cfg.BcryptCost, cfg.HashWorkers)
	if err != nil {
		log.Error("failed to initialize password hasher", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		log.Error("failed to initialize token manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	authz := security.NewAuthorizationService(log)
	auditLog := audit.NewLogger(log)

	// 7. Services
	authService := service.NewAuthService(st.users, hasher, tokens, revoked, auditLog, log)
	beneficiaryService := service.NewBeneficiaryService(st.beneficiaries, authz, log)
	transactionService := service.NewTransactionService(st.transactions, authz, auditLog, dispatcher, log)
	adminService := service.NewAdminService(st.users, hasher, authz, auditLog, log)

	// 8. Background jobs
	queueWorker, err := worker.NewQueueMetricsWorker(st.transactions, cfg.QueueMetricsJob, log, pruners...)
	if err != nil {
		log.Error("failed to schedule queue metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}
	go queueWorker.Start(ctx)

	// 9. HTTP routes
	router := handler.NewRouter(handler.RouterDependencies{
		Logger:         log,
		Tokens:         tokens,
		Users:          st.users,
		CSRF:           csrf.NewGuard(cfg.CSRFCookieName, cfg.CookieSecure),
		Authz:          authz,
		AuthLimiter:    authLimiter,
		APILimiter:     apiLimiter,
		Auth:           authService,
		Beneficiaries:  beneficiaryService,
		Transactions:   transactionService,
		Admin:          adminService,
		Health:         handler.NewHealthHandler(checks, log),
		Hub:            hub,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		CookieSecure:   cfg.CookieSecure,
		ExposeErrors:   !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("queue_stream", hub != nil),
		slog.Int("auth_rate_limit", cfg.AuthRateLimit),
		slog.Duration("auth_rate_window", cfg.AuthRateWindow),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		log.Info("shutdown signal received")
	case err := <-serverErr:
		log.Error("server error", slog.String("error", err.Error()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Websocket connections are hijacked and not tracked by Shutdown.
	if hub != nil {
		hub.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown failed", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// stores holds the repositories selected by STORE_DRIVER.
type stores struct {
	users         domain.UserRepository
	beneficiaries domain.BeneficiaryRepository
	transactions  domain.TransactionRepository
	ping          handler.Check
	close         func()
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using the in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{
			users:         mem.Users(),
			beneficiaries: mem.Beneficiaries(),
			transactions:  mem.Transactions(),
			ping:          mem.Ping,
			close:         func() {},
		}, nil
	}

	pool, err := retry.Do(ctx, retry.DefaultConfig(), log, "connect postgres", func(ctx context.Context) (*database.ConnectionPool, error) {
		return database.NewConnectionPool(ctx, cfg.Database(), log)
	})
	if err != nil {
		return nil, err
	}
	if err := pool.EnsureSchema(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	db := pool.GetDB()
	return &stores{
		users:         repository.NewPostgresUserRepository(db, log),
		beneficiaries: repository.NewPostgresBeneficiaryRepository(db, log),
		transactions:  repository.NewPostgresTransactionRepository(db, log),
		ping:          pool.Health,
		close: func() {
			if err := pool.Close(); err != nil {
				log.Warn("failed to close database", slog.String("error", err.Error()))
			}
		},
	}, nil
}
