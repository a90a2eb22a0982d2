package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/cardissuer/internal/handlers/middleware"
	"github.com/nkiryanov/cardissuer/internal/logger"
	"github.com/nkiryanov/cardissuer/internal/metrics"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/service/balance"
	"github.com/nkiryanov/cardissuer/internal/service/processing"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	processor processorService,
	accounts accountService,
	balances balanceService,
	logger logger.Logger,
) http.Handler {
	root := http.NewServeMux()

	root.Handle("POST /api/webhook", handleWebhook(processor, logger))
	root.Handle("GET /api/user/{card_id}/balance", handleUserBalance(accounts, balances, logger))
	root.Handle("GET /api/user/{card_id}/transactions", handleListTransactions(accounts, balances, logger))
	root.Handle("GET /metrics", metrics.Handler())

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type processorService interface {
	// Process a schema payment event and return the resulting transaction
	// Errors are apperrors symbols, each maps to a distinct response code
	Process(ctx context.Context, req processing.SchemaRequest) (models.Transaction, error)
}

type accountService interface {
	// Resolve account by the external card id
	// Has to return apperrors.ErrAccountNotFound for unknown cards
	GetByCardID(ctx context.Context, cardID string) (models.UserAccount, error)
}

type balanceService interface {
	Amounts(ctx context.Context, userAccountID int64) (balance.Amounts, error)
	AmountsAt(ctx context.Context, userAccountID int64, at time.Time) (balance.Amounts, error)
	ListTransactions(ctx context.Context, userAccountID int64, begin *time.Time, end *time.Time) ([]models.Transaction, error)
}
