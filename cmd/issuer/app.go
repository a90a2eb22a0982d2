package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nkiryanov/cardissuer/internal/alert"
	"github.com/nkiryanov/cardissuer/internal/db"
	"github.com/nkiryanov/cardissuer/internal/handlers"
	"github.com/nkiryanov/cardissuer/internal/logger"
	"github.com/nkiryanov/cardissuer/internal/repository/postgres"
	"github.com/nkiryanov/cardissuer/internal/service/account"
	"github.com/nkiryanov/cardissuer/internal/service/balance"
	"github.com/nkiryanov/cardissuer/internal/service/currency"
	"github.com/nkiryanov/cardissuer/internal/service/ledger"
	"github.com/nkiryanov/cardissuer/internal/service/processing"
	"github.com/nkiryanov/cardissuer/internal/service/schema"
	"github.com/nkiryanov/cardissuer/internal/service/settlement"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	settlementJob *settlement.Job
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	accountService := account.NewService(account.Config{SystemOwnerID: c.SystemOwnerID}, storage)
	ledgerService := ledger.NewService(ledger.Config{OverheadPercent: c.OverheadPercent}, storage)
	balanceService := balance.NewService(storage)

	rates, err := currency.ParseFixedRates(c.CurrencyRates)
	if err != nil {
		return nil, fmt.Errorf("error while parsing currency rates. Err: %w", err)
	}

	var rateSource currency.RateSource = rates
	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		rateSource = currency.NewCachedRateSource(rates, client, logger)
	}
	converter := currency.NewConverter(c.DefaultCurrency, rateSource)

	processor := processing.NewProcessor(accountService, ledgerService, converter, logger)

	// Role accounts must exist before any webhook arrives
	if err := accountService.EnsureRoleAccounts(ctx); err != nil {
		return nil, fmt.Errorf("error while ensuring role accounts. Err: %w", err)
	}

	alerter := alert.NewLogAlerter(logger)
	schemaClient := schema.NewClient(c.SchemaAddr, logger)
	settlementJob := settlement.NewJob(
		settlement.Config{Interval: c.SettleInterval, TTLDays: c.AuthTTLDays},
		storage,
		ledgerService,
		accountService,
		schemaClient,
		alerter,
		logger,
	)

	mux := handlers.NewRouter(processor, accountService, balanceService, logger)

	return &ServerApp{
		ListenAddr:    c.ListenAddr,
		Handler:       mux,
		settlementJob: settlementJob,
	}, nil
}

// Run starts the http server and the settlement scheduler and closes both
// gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	settlementStopped := s.settlementJob.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server")
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-settlementStopped

	return err
}
