package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/db"
	"github.com/nkiryanov/ledger/internal/events"
	"github.com/nkiryanov/ledger/internal/handlers"
	"github.com/nkiryanov/ledger/internal/handlers/middleware"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/repository/postgres"
	"github.com/nkiryanov/ledger/internal/service/auth"
	"github.com/nkiryanov/ledger/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/ledger/internal/service/customer"
	"github.com/nkiryanov/ledger/internal/service/fee"
	"github.com/nkiryanov/ledger/internal/service/fee/settlement"
	"github.com/nkiryanov/ledger/internal/service/idempotency"
	"github.com/nkiryanov/ledger/internal/service/ledger"
	"github.com/nkiryanov/ledger/internal/service/movement"
	"github.com/nkiryanov/ledger/internal/service/transfer"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger      logger.Logger
	pool        *pgxpool.Pool
	redis       *redis.Client
	settlement  *settlement.Processor
	rateLimiter *middleware.RateLimiter
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	transferFee, err := decimal.NewFromString(c.TransferFee)
	if err != nil {
		return nil, fmt.Errorf("invalid transfer fee. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	app := &ServerApp{
		ListenAddr: c.ListenAddr,
		logger:     logger,
		pool:       pool,
	}

	var publisher events.Publisher = events.NopPublisher{}
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		publisher = events.NewRedisPublisher(app.redis, events.DefaultStream)
	}

	// Initialize services
	storage := postgres.NewStorage(pool)
	store := ledger.NewStore(storage)
	guard := idempotency.NewGuard(storage, idempotency.Config{})

	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey, AccessTTL: c.AccessTokenTTL})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	customerService := customer.NewService(auth.BcryptHasher{}, storage, customer.WithPublisher(publisher, logger))
	authService, err := auth.NewService(auth.Config{}, tokenManager, customerService)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	fees, err := fee.NewLedger(fee.Config{TransferFee: transferFee, RetryBackoff: c.FeeInterval}, storage, store, publisher, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating fee ledger. Err: %w", err)
	}
	movements := movement.NewProcessor(guard, store, publisher, logger)
	transfers := transfer.NewCoordinator(guard, store, fees, publisher, logger)

	app.settlement = settlement.New(settlement.Config{Workers: c.FeeWorkers, Interval: c.FeeInterval}, fees, logger)

	if c.RateLimit > 0 {
		app.rateLimiter = middleware.NewRateLimiter(c.RateLimit, 0)
	}

	app.Handler = handlers.NewRouter(
		handlers.Services{
			Auth:     authService,
			Customer: customerService,
			Account:  store,
			Movement: movements,
			Transfer: transfers,
			Fee:      fees,
		},
		handlers.Options{
			RequestTimeout: c.RequestTimeout,
			RateLimiter:    app.rateLimiter,
			HealthCheck:    pool.Ping,
		},
		logger,
	)

	return app, nil
}

// Run starts http server and background workers and stops them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.Close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	settlementStopped := s.settlement.Process(srvCtx)
	if s.rateLimiter != nil {
		go s.rateLimiter.RunCleanup(srvCtx, time.Minute)
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-settlementStopped

	return err
}

func (s *ServerApp) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("Redis client close failed", "error", err)
		}
	}
	s.pool.Close()
}
