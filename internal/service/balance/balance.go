package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/repository"
)

// Amounts is the pair every balance query answers with.
type Amounts struct {
	// Total is available plus reserved money
	Total decimal.Decimal

	// Available is what the user may spend right now
	Available decimal.Decimal
}

// Service reconstructs account balances for any instant: the current one
// directly from account amounts, past ones from day-start snapshots plus
// replay of the day's transfers.
type Service struct {
	storage repository.Storage

	// now is swappable for tests
	now func() time.Time
}

func NewService(storage repository.Storage) *Service {
	return &Service{
		storage: storage,
		now:     time.Now,
	}
}

// Amounts returns the live balances.
func (s *Service) Amounts(ctx context.Context, userAccountID int64) (Amounts, error) {
	account, err := s.storage.Account().GetByID(ctx, userAccountID)
	if err != nil {
		return Amounts{}, err
	}

	return Amounts{
		Total:     account.TotalAmount(),
		Available: account.AvailableAmount(),
	}, nil
}

// AmountsAt returns the balances as they were at the given instant.
//
// Instants not before now short-circuit to the live balances and instants
// before the account existed are zero. Otherwise the result is the pinned
// day-start snapshot plus the sum of the day's transfers up to the instant.
func (s *Service) AmountsAt(ctx context.Context, userAccountID int64, at time.Time) (Amounts, error) {
	account, err := s.storage.Account().GetByID(ctx, userAccountID)
	if err != nil {
		return Amounts{}, err
	}

	if !at.Before(s.now()) {
		return Amounts{
			Total:     account.TotalAmount(),
			Available: account.AvailableAmount(),
		}, nil
	}

	if account.CreatedAt.After(at) {
		return Amounts{Total: decimal.Zero, Available: decimal.Zero}, nil
	}

	startOfDay := StartOfDay(at)

	baseline := map[string]decimal.Decimal{
		models.AccountKindAvailable: decimal.Zero,
		models.AccountKindReserved:  decimal.Zero,
	}

	// An account created mid-day has no snapshot to anchor on, its day
	// simply starts from zero
	if !account.CreatedAt.After(startOfDay) {
		baseline, err = s.dayStartAmounts(ctx, account, startOfDay)
		if err != nil {
			return Amounts{}, err
		}
	}

	deltas, err := s.storage.Transaction().SumTransfersByKind(ctx, account.ID, startOfDay, at)
	if err != nil {
		return Amounts{}, fmt.Errorf("can't roll transfers forward. Err: %w", err)
	}

	available := baseline[models.AccountKindAvailable].Add(deltas[models.AccountKindAvailable])
	total := available.
		Add(baseline[models.AccountKindReserved]).
		Add(deltas[models.AccountKindReserved])

	return Amounts{Total: total, Available: available}, nil
}

// ListTransactions returns the user visible history: everything that touched
// the available account except authorization holds. Range bounds optional.
func (s *Service) ListTransactions(ctx context.Context, userAccountID int64, begin *time.Time, end *time.Time) ([]models.Transaction, error) {
	account, err := s.storage.Account().GetByID(ctx, userAccountID)
	if err != nil {
		return nil, err
	}

	return s.storage.Transaction().ListAccountTransactions(ctx, account.Available.ID, begin, end)
}

// dayStartAmounts returns the pinned balances for the start of the day,
// pinning them first when no snapshot exists yet.
//
// The retroactive snapshot is exact: accounts start at zero and change only
// through transfers, so the balance at the start of a day is the sum of all
// transfers before it. Once pinned the row never changes, later transfers
// are timestamped that day or later by construction.
func (s *Service) dayStartAmounts(ctx context.Context, account models.UserAccount, startOfDay time.Time) (map[string]decimal.Decimal, error) {
	amounts := map[string]decimal.Decimal{
		models.AccountKindAvailable: decimal.Zero,
		models.AccountKindReserved:  decimal.Zero,
	}

	var computed map[string]decimal.Decimal

	subAccounts := []models.Account{account.Available}
	if account.Reserved != nil {
		subAccounts = append(subAccounts, *account.Reserved)
	}

	for _, sub := range subAccounts {
		log, found, err := s.storage.DayLog().Get(ctx, sub.ID, startOfDay)
		if err != nil {
			return nil, err
		}
		if found {
			amounts[sub.Kind] = log.Amount
			continue
		}

		if computed == nil {
			computed, err = s.storage.Transaction().SumTransfersByKindBefore(ctx, account.ID, startOfDay)
			if err != nil {
				return nil, fmt.Errorf("can't compute day start balance. Err: %w", err)
			}
		}

		log, err = s.storage.DayLog().Create(ctx, sub.ID, startOfDay, computed[sub.Kind])
		if err != nil {
			return nil, fmt.Errorf("can't pin day log. Err: %w", err)
		}
		amounts[sub.Kind] = log.Amount
	}

	return amounts, nil
}

// StartOfDay truncates the instant to the beginning of its UTC calendar day.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
