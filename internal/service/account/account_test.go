package account

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cardissuer/internal/apperrors"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/repository/postgres"
	"github.com/nkiryanov/cardissuer/internal/testutil"
)

func TestAccountService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, fn func(s *Service)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(NewService(Config{SystemOwnerID: 1}, postgres.NewStorage(tx)))
		})
	}

	t.Run("CreateUserAccount", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			withTx(t, func(s *Service) {
				ua, err := s.CreateUserAccount(t.Context(), 42, "11112222")

				require.NoError(t, err)
				require.Equal(t, "11112222", ua.CardID)
				require.Equal(t, int64(42), ua.OwnerID)
				require.Equal(t, models.RoleRealUser, ua.Role)
				require.NotNil(t, ua.Reserved, "real users hold money, reserved account required")
			})
		})

		t.Run("error if card id has wrong length", func(t *testing.T) {
			withTx(t, func(s *Service) {
				_, err := s.CreateUserAccount(t.Context(), 42, "123")

				require.ErrorIs(t, err, apperrors.ErrInvalidFormat)
			})
		})

		t.Run("error if card id taken", func(t *testing.T) {
			withTx(t, func(s *Service) {
				_, err := s.CreateUserAccount(t.Context(), 42, "11112222")
				require.NoError(t, err)

				_, err = s.CreateUserAccount(t.Context(), 43, "11112222")

				require.ErrorIs(t, err, apperrors.ErrAccountAlreadyExists)
			})
		})
	})

	t.Run("GetOrCreateRoleAccount", func(t *testing.T) {
		t.Run("creates on first call, reuses after", func(t *testing.T) {
			withTx(t, func(s *Service) {
				first, err := s.GetOrCreateRoleAccount(t.Context(), models.RoleInnerSettlement)
				require.NoError(t, err)
				require.Equal(t, models.RoleInnerSettlement, first.Role)
				require.Equal(t, models.RoleInnerSettlement, first.CardID, "role tag doubles as card id")
				require.Nil(t, first.Reserved, "role accounts own only the available account")

				second, err := s.GetOrCreateRoleAccount(t.Context(), models.RoleInnerSettlement)
				require.NoError(t, err)
				require.Equal(t, first.ID, second.ID, "role accounts are singletons")
			})
		})
	})

	t.Run("EnsureRoleAccounts", func(t *testing.T) {
		withTx(t, func(s *Service) {
			require.NoError(t, s.EnsureRoleAccounts(t.Context()))
			require.NoError(t, s.EnsureRoleAccounts(t.Context()), "bootstrap must be repeatable")

			for _, role := range models.SystemRoles {
				ua, err := s.GetOrCreateRoleAccount(t.Context(), role)
				require.NoError(t, err, "role %s should exist", role)
				require.Equal(t, role, ua.Role)
			}
		})
	})
}
