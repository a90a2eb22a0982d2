package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/cardissuer/internal/apperrors"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/repository"
)

type Config struct {
	// Owner id the singleton role accounts are bound to. An explicit
	// configuration value, not a runtime lookup
	SystemOwnerID int64
}

// Service is the account registry: it creates and looks up cardholder
// accounts and the singleton system role accounts.
type Service struct {
	storage       repository.Storage
	systemOwnerID int64
}

func NewService(cfg Config, storage repository.Storage) *Service {
	return &Service{
		storage:       storage,
		systemOwnerID: cfg.SystemOwnerID,
	}
}

// CreateUserAccount creates a cardholder account with zero available and
// reserved balances.
func (s *Service) CreateUserAccount(ctx context.Context, ownerID int64, cardID string) (models.UserAccount, error) {
	var ua models.UserAccount

	if len(cardID) != models.CardIDLength {
		return ua, fmt.Errorf("%w: card id must be %d chars", apperrors.ErrInvalidFormat, models.CardIDLength)
	}

	kinds := []string{models.AccountKindAvailable, models.AccountKindReserved}

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		ua, err = st.Account().CreateUserAccount(ctx, ownerID, cardID, models.RoleRealUser, kinds)
		return err
	})
	if err != nil {
		return ua, fmt.Errorf("can't create user account. Err: %w", err)
	}

	return ua, nil
}

// GetByCardID returns the account for the external card id.
func (s *Service) GetByCardID(ctx context.Context, cardID string) (models.UserAccount, error) {
	return s.storage.Account().GetByCardID(ctx, cardID)
}

// GetOrCreateRoleAccount returns the singleton account for the role,
// creating it bound to the configured system owner when absent. A duplicated
// role account is a fatal configuration error and is never masked.
//
// Role accounts own only the available sub-account: their total amount is
// not managed by us, there is nothing to reserve.
func (s *Service) GetOrCreateRoleAccount(ctx context.Context, role string) (models.UserAccount, error) {
	ua, err := s.storage.Account().GetRoleAccount(ctx, role)

	if !errors.Is(err, apperrors.ErrAccountNotFound) {
		return ua, err
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		ua, err = st.Account().CreateUserAccount(ctx, s.systemOwnerID, role, role, []string{models.AccountKindAvailable})
		return err
	})

	// lost the creation race: somebody else made it, take theirs
	if errors.Is(err, apperrors.ErrAccountAlreadyExists) {
		return s.storage.Account().GetRoleAccount(ctx, role)
	}
	if err != nil {
		return ua, fmt.Errorf("can't create '%s' role account. Err: %w", role, err)
	}

	return ua, nil
}

// EnsureRoleAccounts idempotently creates every system role account. Run at
// bootstrap before any traffic.
func (s *Service) EnsureRoleAccounts(ctx context.Context) error {
	for _, role := range models.SystemRoles {
		if _, err := s.GetOrCreateRoleAccount(ctx, role); err != nil {
			return err
		}
	}
	return nil
}
