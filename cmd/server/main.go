package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/kevin07696/payment-router/internal/adapters/epx"
	"github.com/kevin07696/payment-router/internal/adapters/north"
	"github.com/kevin07696/payment-router/internal/adapters/postgres"
	"github.com/kevin07696/payment-router/internal/adapters/secrets"
	"github.com/kevin07696/payment-router/internal/config"
	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	webhookHandler "github.com/kevin07696/payment-router/internal/handlers/webhook"
	"github.com/kevin07696/payment-router/internal/lock"
	"github.com/kevin07696/payment-router/internal/services/payment"
	"github.com/kevin07696/payment-router/internal/webhook"
	httpclient "github.com/kevin07696/payment-router/pkg/http"
	"github.com/kevin07696/payment-router/pkg/middleware"
	"github.com/kevin07696/payment-router/pkg/observability"
	"github.com/kevin07696/payment-router/pkg/resilience"
	"github.com/kevin07696/payment-router/pkg/security"
	"github.com/kevin07696/payment-router/pkg/shutdown"
)

const version = "0.1.0"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := security.NewLogger(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Payment router stopped with error", ports.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *security.ZapLoggerAdapter) error {
	logger.Info("Starting payment router", ports.String("version", version))

	ctx := context.Background()
	timeouts := &cfg.Timeouts
	stopper := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)

	// Storage
	pool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	stopper.RegisterNoErr("postgres", pool.Close)
	store := postgres.NewStore(pool)

	monitor := shutdown.NewBackgroundWorker("pool-monitor", logger)
	monitor.Start(func(ctx context.Context) {
		postgres.MonitorPool(ctx, pool, 30*time.Second, logger)
	})
	stopper.Register("pool-monitor", monitor.Shutdown)

	// Per-payment lock
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	stopper.RegisterCloser("redis", redisClient)
	if err := connectWithRetry(ctx, logger, "redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	locker := lock.NewRedisLocker(redisClient, cfg.Lock, logger)

	// Connector credentials and webhook secrets
	manager, err := secrets.New(ctx, cfg.Secrets.ManagerConfig(), logger)
	if err != nil {
		return fmt.Errorf("init secret manager: %w", err)
	}
	credentials := secrets.NewCredentialStore(manager, cfg.Secrets.CacheConfig(), logger)

	// Connectors
	registry := connector.NewRegistry(
		north.New(cfg.Connectors.NorthBaseURL),
		epx.New(cfg.Connectors.EPX),
	)
	breakers := resilience.NewCircuitBreakerGroup(resilience.DefaultCircuitBreakerConfig(),
		func(host string, from, to resilience.CircuitState) {
			observability.RecordCircuitState(host, int(to))
			logger.Warn("Connector circuit changed state",
				ports.String("host", host),
				ports.String("from", from.String()),
				ports.String("to", to.String()),
			)
		})
	client := httpclient.NewClient(httpclient.ConnectorClientConfig(), timeouts.ExternalAPI)
	executor := connector.NewExecutor(connector.NewHTTPSender(client, breakers), timeouts, logger)

	// Flows and webhook reconciliation
	paymentSvc := payment.NewService(store, registry, executor, locker, credentials, timeouts, logger)
	verifier := webhook.NewVerifier(
		credentials,
		webhook.NewRemoteVerifier(registry, executor, credentials),
		webhook.NewVerificationPolicy(cfg.Webhook.MandatoryVerification...),
		logger,
	)
	reconciler := webhook.NewReconciler(registry, verifier, paymentSvc, cfg.Webhook.ReconcilerConfig(), timeouts, logger)

	// Webhook endpoint
	limiter := middleware.NewRateLimiter(cfg.Webhook.RateLimit, cfg.Webhook.RateBurst, logger)
	stopper.RegisterNoErr("rate-limiter", limiter.Shutdown)

	inflight := shutdown.NewInFlightTracker("webhooks", logger)
	mux := http.NewServeMux()
	webhookHandler.NewHandler(reconciler, timeouts, logger).Register(mux, limiter)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.HTTPPort)),
		Handler:           inflight.Middleware(middleware.SecurityHeaders(cfg.Logger.Development)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      timeouts.HTTPHandler + 5*time.Second,
	}
	observability.Serve("webhooks", httpServer, logger)
	stopper.Register("webhook-inflight", inflight.Shutdown)
	stopper.RegisterHTTPServer("webhooks-http", httpServer)

	// Metrics and health
	checker := observability.NewHealthChecker().
		Register("postgres", store).
		Register("redis", redisPinger{redisClient})
	metricsServer := observability.NewMetricsServer(
		net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.MetricsPort)), checker)
	observability.Serve("metrics", metricsServer, logger)
	stopper.RegisterHTTPServer("metrics-http", metricsServer)

	// gRPC health and reflection for orchestration probes
	grpcServer, healthServer, err := startGRPC(cfg, logger)
	if err != nil {
		return err
	}
	stopper.RegisterNoErr("grpc", func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
	})

	logger.Info("Payment router ready",
		ports.Int("http_port", cfg.Server.HTTPPort),
		ports.Int("grpc_port", cfg.Server.GRPCPort),
		ports.Int("metrics_port", cfg.Server.MetricsPort),
	)

	return stopper.Wait(ctx)
}

func initDatabase(ctx context.Context, cfg *config.Config, logger ports.Logger) (*pgxpool.Pool, error) {
	dbCfg := postgres.DefaultConfig(cfg.Database.ConnectionString())
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns

	var pool *pgxpool.Pool
	err := connectWithRetry(ctx, logger, "postgres", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var err error
		pool, err = postgres.Open(ctx, dbCfg, logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return pool, nil
}

// startupAttempts covers roughly six seconds of exponential backoff
const startupAttempts = 7

// connectWithRetry waits for a dependency that may still be starting
func connectWithRetry(ctx context.Context, logger ports.Logger, name string, connect func(ctx context.Context) error) error {
	attempt := 0
	return resilience.Retry(ctx, startupAttempts, resilience.DefaultExponentialBackoff(), nil, func(ctx context.Context) error {
		attempt++
		err := connect(ctx)
		if err != nil {
			logger.Warn("Dependency not ready",
				ports.String("dependency", name),
				ports.Int("attempt", attempt),
				ports.Err(err))
		}
		return err
	})
}

func startGRPC(cfg *config.Config, logger ports.Logger) (*grpc.Server, *health.Server, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.GRPCPort)))
	if err != nil {
		return nil, nil, fmt.Errorf("listen grpc: %w", err)
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		observability.UnaryServerInterceptor(),
		observability.RecoveryInterceptor(logger),
	))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("payment-router", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(server)

	go func() {
		logger.Info("gRPC server listening", ports.String("address", listener.Addr().String()))
		if err := server.Serve(listener); err != nil {
			logger.Error("gRPC server error", ports.Err(err))
		}
	}()
	return server, healthServer, nil
}

// redisPinger reports the lock store's liveness to the health checker
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
