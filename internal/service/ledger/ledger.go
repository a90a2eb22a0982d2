package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/apperrors"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/repository"
)

const defaultOverheadPercent = 20

type Config struct {
	// Percent added to every authorization hold to absorb later currency
	// and fee slippage. Zero means "use default", that is the only sane
	// production value anyway
	OverheadPercent int
}

// Service is the transaction state machine. It is the only writer of
// transfers: every balance change goes through it as a balanced transfer set
// created atomically with the owning transaction.
type Service struct {
	storage  repository.Storage
	overhead decimal.Decimal
}

func NewService(cfg Config, storage repository.Storage) *Service {
	overhead := cfg.OverheadPercent
	if overhead == 0 {
		overhead = defaultOverheadPercent
	}

	return &Service{
		storage:  storage,
		overhead: decimal.NewFromInt(int64(overhead)),
	}
}

// ReserveAmount is the amount actually held for an authorization:
// requested * (1 + overhead/100)
func (s *Service) ReserveAmount(amount decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return amount.Mul(hundred.Add(s.overhead)).Div(hundred)
}

// Authorize places a hold on the user's available money: the reserve amount
// moves from the available account to the reserved one.
//
// On shortage a money-shortage transaction for the code is recorded and
// apperrors.ErrNotEnoughMoney is returned. A repeated authorization for the
// same code fails with apperrors.ErrAlreadyDone and changes nothing.
func (s *Service) Authorize(ctx context.Context, code string, amount decimal.Decimal, userAccountID int64) (models.Transaction, error) {
	var authorization models.Transaction

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		account, err := st.Account().LockUserAccount(ctx, userAccountID)
		if err != nil {
			return fmt.Errorf("can't lock account. Err: %w", err)
		}
		if account.Reserved == nil {
			return fmt.Errorf("%w: account '%s' has no reserved account", apperrors.ErrInvalidConfiguration, account.CardID)
		}

		reserve := s.ReserveAmount(amount)
		if account.Available.Amount.LessThan(reserve) {
			return apperrors.ErrNotEnoughMoney
		}

		authorization, err = st.Transaction().Create(ctx, code, models.StatusAuthorization)
		if err != nil {
			return err
		}

		return s.addTransferPair(ctx, st, authorization.ID, account.Available.ID, account.Reserved.ID, reserve)
	})

	if errors.Is(err, apperrors.ErrNotEnoughMoney) {
		// The declined attempt must stay on record even though the
		// authorization itself rolled back, so write it outside the
		// aborted transaction. A conflict means the shortage for this
		// code is already recorded
		_, logErr := s.storage.Transaction().Create(ctx, code, models.StatusMoneyShortage)
		if logErr != nil && !errors.Is(logErr, apperrors.ErrAlreadyDone) {
			return authorization, fmt.Errorf("can't log money shortage. Err: %w", logErr)
		}
	}

	return authorization, err
}

// Present settles a previously authorized code: the authorization hold is
// rolled back first, then the settled amount moves from the user's available
// account to toAccountID. When billed and settled amounts differ the
// difference goes to extraAccountID on the same transaction (the revenue
// skim), and the extra account is mandatory.
//
// Returns the presentment transaction, not the rollback one.
func (s *Service) Present(ctx context.Context, code string, billedAmount decimal.Decimal, settledAmount decimal.Decimal, userAccountID int64, toAccountID int64, extraAccountID *int64) (models.Transaction, error) {
	var presentment models.Transaction

	diff := billedAmount.Sub(settledAmount)
	if !diff.IsZero() && extraAccountID == nil {
		return presentment, apperrors.ErrExtraAccountRequired
	}

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		account, err := st.Account().LockUserAccount(ctx, userAccountID)
		if err != nil {
			return fmt.Errorf("can't lock account. Err: %w", err)
		}

		if _, err := s.rollback(ctx, st, code, models.StatusRollback); err != nil {
			return err
		}

		presentment, err = st.Transaction().Create(ctx, code, models.StatusPresentment)
		if err != nil {
			return err
		}

		err = s.addTransferPair(ctx, st, presentment.ID, account.Available.ID, toAccountID, settledAmount)
		if err != nil {
			return err
		}

		if diff.IsZero() {
			return nil
		}
		return s.addTransferPair(ctx, st, presentment.ID, account.Available.ID, *extraAccountID, diff)
	})

	return presentment, err
}

// RollbackLatePresentment reverses an authorization that was never presented
// within the TTL. Already rolled back codes are fine: the conflict is
// swallowed, repeated batch runs must not fail on each other's work.
func (s *Service) RollbackLatePresentment(ctx context.Context, code string) error {
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		_, err := s.rollback(ctx, st, code, models.StatusPresentmentLate)
		return err
	})

	if errors.Is(err, apperrors.ErrAlreadyDone) {
		return nil
	}
	return err
}

// SettleDayTransactions logs the day settlement as an inner transfer. The
// code is derived from the status and today's date, so repeated runs on the
// same day collide on the uniqueness constraint and the existing settlement
// transaction is returned instead.
func (s *Service) SettleDayTransactions(ctx context.Context, amount decimal.Decimal, fromAccountID int64, toAccountID int64) (models.Transaction, error) {
	var settlement models.Transaction

	code := CodeForToday(models.StatusSettlement)

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		settlement, err = st.Transaction().Create(ctx, code, models.StatusSettlement)
		if err != nil {
			return err
		}

		return s.addTransferPair(ctx, st, settlement.ID, fromAccountID, toAccountID, amount)
	})

	if errors.Is(err, apperrors.ErrAlreadyDone) {
		return s.storage.Transaction().Get(ctx, code, models.StatusSettlement)
	}

	return settlement, err
}

// LoadMoney transfers money from an external account to the user account
// with a freshly generated code. Always succeeds given valid accounts.
func (s *Service) LoadMoney(ctx context.Context, amount decimal.Decimal, fromAccountID int64, toAccountID int64) (models.Transaction, error) {
	var loaded models.Transaction

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		loaded, err = st.Transaction().Create(ctx, NewCode(), models.StatusLoadMoney)
		if err != nil {
			return err
		}

		return s.addTransferPair(ctx, st, loaded.ID, fromAccountID, toAccountID, amount)
	})

	return loaded, err
}

// UpdateDescriptions stores the human readable summary and the raw schema
// payload for a processed transaction.
func (s *Service) UpdateDescriptions(ctx context.Context, transaction models.Transaction, rawDetails string) error {
	description := models.StatusName(transaction.Status)
	return s.storage.Transaction().UpdateDescriptions(ctx, transaction.ID, description, rawDetails)
}

// rollback is the shared reversal primitive: it finds the authorization for
// the code, inserts a new transaction with the wanted status and writes an
// equal-and-opposite transfer for every authorization leg.
//
// No extra locking here: authorize already proved the money existed, a
// compensating credit can't be rejected.
func (s *Service) rollback(ctx context.Context, st repository.Storage, code string, status string) (models.Transaction, error) {
	authorization, err := st.Transaction().Get(ctx, code, models.StatusAuthorization)
	if err != nil {
		return authorization, err
	}

	reversal, err := st.Transaction().Create(ctx, code, status)
	if err != nil {
		return reversal, err
	}

	transfers, err := st.Transaction().ListTransfers(ctx, authorization.ID)
	if err != nil {
		return reversal, err
	}

	for _, transfer := range transfers {
		err := s.applyTransfer(ctx, st, reversal.ID, transfer.AccountID, transfer.Amount.Neg())
		if err != nil {
			return reversal, err
		}
	}

	return reversal, nil
}

// applyTransfer records a single leg and applies it to the account amount.
// Both writes happen inside the caller's transaction
func (s *Service) applyTransfer(ctx context.Context, st repository.Storage, transactionID int64, accountID int64, amount decimal.Decimal) error {
	if _, err := st.Account().AddAmount(ctx, accountID, amount); err != nil {
		return fmt.Errorf("can't apply transfer amount. Err: %w", err)
	}
	if _, err := st.Transaction().AddTransfer(ctx, transactionID, accountID, amount); err != nil {
		return fmt.Errorf("can't record transfer. Err: %w", err)
	}
	return nil
}

// addTransferPair moves amount from one account to another as two balanced
// legs of the same transaction
func (s *Service) addTransferPair(ctx context.Context, st repository.Storage, transactionID int64, fromAccountID int64, toAccountID int64, amount decimal.Decimal) error {
	if err := s.applyTransfer(ctx, st, transactionID, fromAccountID, amount.Neg()); err != nil {
		return err
	}
	return s.applyTransfer(ctx, st, transactionID, toAccountID, amount)
}
