package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/models"
)

// Account repository interface
type AccountRepo interface {
	// Create user account with linked balance accounts of given kinds
	// If account with the card id exists must return apperrors.ErrAccountAlreadyExists
	CreateUserAccount(ctx context.Context, ownerID int64, cardID string, role string, kinds []string) (models.UserAccount, error)

	// Get account by card id or by id with linked accounts loaded
	// If account not found must return apperrors.ErrAccountNotFound
	GetByCardID(ctx context.Context, cardID string) (models.UserAccount, error)
	GetByID(ctx context.Context, id int64) (models.UserAccount, error)

	// Get the singleton account for a role
	// If no account exists must return apperrors.ErrAccountNotFound
	// If more than one exists must return apperrors.ErrInvalidConfiguration:
	// never silently pick one
	GetRoleAccount(ctx context.Context, role string) (models.UserAccount, error)

	// Lock the user account's balance accounts for update until the
	// enclosing transaction commits. Rows are locked in canonical id order
	// so concurrent operations can't deadlock on each other
	LockUserAccount(ctx context.Context, id int64) (models.UserAccount, error)

	// Apply signed delta to account amount as an atomic increment and
	// return the new amount. Never read-then-write balances elsewhere
	AddAmount(ctx context.Context, accountID int64, delta decimal.Decimal) (decimal.Decimal, error)
}

// Option to tune created transaction
type CreateTransactionOption func(*models.Transaction)

// WithCreatedAt overrides the creation time. Used by tests to shape history
func WithCreatedAt(t time.Time) CreateTransactionOption {
	return func(tr *models.Transaction) {
		tr.CreatedAt = t
	}
}

// Transaction repository interface
type TransactionRepo interface {
	// Try to insert transaction for (code, status)
	// On uniqueness conflict must return apperrors.ErrAlreadyDone: the
	// conflict is the idempotency mechanism, not an incidental failure
	Create(ctx context.Context, code string, status string, opts ...CreateTransactionOption) (models.Transaction, error)

	// Get transaction by its idempotency key
	// If not found must return apperrors.ErrTransactionNotFound
	Get(ctx context.Context, code string, status string) (models.Transaction, error)

	// Store descriptions for the transaction
	UpdateDescriptions(ctx context.Context, id int64, description string, rawDetails string) error

	// Record a single transfer leg. Does not touch account amounts
	AddTransfer(ctx context.Context, transactionID int64, accountID int64, amount decimal.Decimal) (models.Transfer, error)

	ListTransfers(ctx context.Context, transactionID int64) ([]models.Transfer, error)

	// Authorization codes created in [from, to) that have no matching
	// presentment
	ListUnpresentedCodes(ctx context.Context, from time.Time, to time.Time) ([]string, error)

	// Sum of transfer amounts per account kind for the user account,
	// over transactions created in the closed range [from, to]
	SumTransfersByKind(ctx context.Context, userAccountID int64, from time.Time, to time.Time) (map[string]decimal.Decimal, error)

	// Same but for transactions created strictly before the instant
	SumTransfersByKindBefore(ctx context.Context, userAccountID int64, before time.Time) (map[string]decimal.Decimal, error)

	// User visible history: transactions that touched the account, with
	// the account's transfer legs attached, authorization holds excluded.
	// Both range bounds are optional
	ListAccountTransactions(ctx context.Context, accountID int64, begin *time.Time, end *time.Time) ([]models.Transaction, error)
}

// Day log repository interface
type DayLogRepo interface {
	// Get the pinned balance for the calendar day of the given date
	// Absence is a normal state and is reported with found == false
	Get(ctx context.Context, accountID int64, day time.Time) (log models.AccountDayLog, found bool, err error)

	// Pin the balance for a day. Idempotent: when a row for (account, day)
	// already exists it is returned as is and the new amount is discarded
	Create(ctx context.Context, accountID int64, day time.Time, amount decimal.Decimal) (models.AccountDayLog, error)
}

type Storage interface {
	Account() AccountRepo
	Transaction() TransactionRepo
	DayLog() DayLogRepo

	// Run fn within a database transaction. Nested calls create savepoints
	InTx(ctx context.Context, fn func(Storage) error) error
}
