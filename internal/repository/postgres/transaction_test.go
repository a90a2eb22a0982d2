package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cardissuer/internal/apperrors"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/repository"
	"github.com/nkiryanov/cardissuer/internal/testutil"
)

func TestTransactionRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, fn func(s *Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(NewStorage(tx))
		})
	}

	createUser := func(t *testing.T, s *Storage, cardID string) models.UserAccount {
		t.Helper()
		ua, err := s.Account().CreateUserAccount(t.Context(), 1, cardID, models.RoleRealUser,
			[]string{models.AccountKindAvailable, models.AccountKindReserved})
		require.NoError(t, err, "creating account should not fail")
		return ua
	}

	t.Run("Create", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			withTx(t, func(s *Storage) {
				tr, err := s.Transaction().Create(t.Context(), "CODE00001", models.StatusAuthorization)

				require.NoError(t, err)
				require.NotEmpty(t, tr.ID)
				require.Equal(t, "CODE00001", tr.Code)
				require.Equal(t, models.StatusAuthorization, tr.Status)
				require.NotZero(t, tr.CreatedAt)
			})
		})

		t.Run("error if code and status pair exists", func(t *testing.T) {
			withTx(t, func(s *Storage) {
				_, err := s.Transaction().Create(t.Context(), "CODE00001", models.StatusAuthorization)
				require.NoError(t, err)

				_, err = s.Transaction().Create(t.Context(), "CODE00001", models.StatusAuthorization)

				require.ErrorIs(t, err, apperrors.ErrAlreadyDone)
			})
		})

		t.Run("same code with other status ok", func(t *testing.T) {
			withTx(t, func(s *Storage) {
				_, err := s.Transaction().Create(t.Context(), "CODE00001", models.StatusAuthorization)
				require.NoError(t, err)

				_, err = s.Transaction().Create(t.Context(), "CODE00001", models.StatusPresentment)

				require.NoError(t, err, "same code with different status is a new event")
			})
		})

		t.Run("created at may be shaped", func(t *testing.T) {
			withTx(t, func(s *Storage) {
				past := time.Now().UTC().Add(-72 * time.Hour).Truncate(time.Second)

				tr, err := s.Transaction().Create(t.Context(), "CODE00001", models.StatusAuthorization,
					repository.WithCreatedAt(past))

				require.NoError(t, err)
				require.WithinDuration(t, past, tr.CreatedAt, time.Second)
			})
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("get ok", func(t *testing.T) {
			withTx(t, func(s *Storage) {
				created, err := s.Transaction().Create(t.Context(), "CODE00001", models.StatusAuthorization)
				require.NoError(t, err)

				got, err := s.Transaction().Get(t.Context(), "CODE00001", models.StatusAuthorization)

				require.NoError(t, err)
				require.Equal(t, created.ID, got.ID)
			})
		})

		t.Run("error if absent", func(t *testing.T) {
			withTx(t, func(s *Storage) {
				_, err := s.Transaction().Get(t.Context(), "CODE00001", models.StatusPresentment)

				require.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
			})
		})
	})

	t.Run("UpdateDescriptions", func(t *testing.T) {
		withTx(t, func(s *Storage) {
			tr, err := s.Transaction().Create(t.Context(), "CODE00001", models.StatusLoadMoney)
			require.NoError(t, err)

			err = s.Transaction().UpdateDescriptions(t.Context(), tr.ID, "Loaded money", "cmF3")
			require.NoError(t, err)

			got, err := s.Transaction().Get(t.Context(), "CODE00001", models.StatusLoadMoney)
			require.NoError(t, err)
			require.Equal(t, "Loaded money", got.Description)
			require.Equal(t, "cmF3", got.RawDetails)
		})
	})

	t.Run("ListUnpresentedCodes", func(t *testing.T) {
		withTx(t, func(s *Storage) {
			now := time.Now().UTC()
			auth := func(code string, age time.Duration) {
				_, err := s.Transaction().Create(t.Context(), code, models.StatusAuthorization,
					repository.WithCreatedAt(now.Add(-age)))
				require.NoError(t, err)
			}

			auth("OLD000001", 10*24*time.Hour) // older than the window
			auth("WINDOW001", 6*24*time.Hour)  // in window, never presented
			auth("WINDOW002", 6*24*time.Hour)  // in window but presented
			auth("FRESH0001", time.Hour)       // too fresh

			_, err := s.Transaction().Create(t.Context(), "WINDOW002", models.StatusPresentment)
			require.NoError(t, err)

			from := now.Add(-7 * 24 * time.Hour)
			to := now.Add(-5 * 24 * time.Hour)

			codes, err := s.Transaction().ListUnpresentedCodes(t.Context(), from, to)

			require.NoError(t, err)
			require.Equal(t, []string{"WINDOW001"}, codes)
		})
	})

	t.Run("SumTransfersByKind", func(t *testing.T) {
		withTx(t, func(s *Storage) {
			ua := createUser(t, s, "11112222")
			now := time.Now().UTC()

			addTransfer := func(code string, age time.Duration, accountID int64, amount string) {
				tr, err := s.Transaction().Create(t.Context(), code, models.StatusLoadMoney,
					repository.WithCreatedAt(now.Add(-age)))
				require.NoError(t, err)
				_, err = s.Transaction().AddTransfer(t.Context(), tr.ID, accountID, decimal.RequireFromString(amount))
				require.NoError(t, err)
			}

			addTransfer("CODE00001", 48*time.Hour, ua.Available.ID, "100")
			addTransfer("CODE00002", 12*time.Hour, ua.Available.ID, "-30")
			addTransfer("CODE00003", 12*time.Hour, ua.Reserved.ID, "30")
			addTransfer("CODE00004", time.Minute, ua.Available.ID, "7")

			t.Run("closed range", func(t *testing.T) {
				sums, err := s.Transaction().SumTransfersByKind(t.Context(), ua.ID, now.Add(-24*time.Hour), now.Add(-time.Hour))

				require.NoError(t, err)
				require.True(t, sums[models.AccountKindAvailable].Equal(decimal.NewFromInt(-30)), "got %s", sums[models.AccountKindAvailable])
				require.True(t, sums[models.AccountKindReserved].Equal(decimal.NewFromInt(30)), "got %s", sums[models.AccountKindReserved])
			})

			t.Run("strictly before", func(t *testing.T) {
				sums, err := s.Transaction().SumTransfersByKindBefore(t.Context(), ua.ID, now.Add(-24*time.Hour))

				require.NoError(t, err)
				require.True(t, sums[models.AccountKindAvailable].Equal(decimal.NewFromInt(100)), "got %s", sums[models.AccountKindAvailable])
				require.True(t, sums[models.AccountKindReserved].IsZero())
			})

			t.Run("no transfers sums to zero", func(t *testing.T) {
				other := createUser(t, s, "99990000")

				sums, err := s.Transaction().SumTransfersByKind(t.Context(), other.ID, now.Add(-24*time.Hour), now)

				require.NoError(t, err)
				require.True(t, sums[models.AccountKindAvailable].IsZero())
				require.True(t, sums[models.AccountKindReserved].IsZero())
			})
		})
	})

	t.Run("ListAccountTransactions", func(t *testing.T) {
		withTx(t, func(s *Storage) {
			ua := createUser(t, s, "11112222")
			now := time.Now().UTC()

			add := func(code string, status string, age time.Duration, amount string) {
				tr, err := s.Transaction().Create(t.Context(), code, status,
					repository.WithCreatedAt(now.Add(-age)))
				require.NoError(t, err)
				_, err = s.Transaction().AddTransfer(t.Context(), tr.ID, ua.Available.ID, decimal.RequireFromString(amount))
				require.NoError(t, err)
			}

			add("CODE00001", models.StatusLoadMoney, 48*time.Hour, "100")
			add("CODE00002", models.StatusAuthorization, 12*time.Hour, "-12")
			add("CODE00003", models.StatusPresentment, 6*time.Hour, "-10")

			list, err := s.Transaction().ListAccountTransactions(t.Context(), ua.Available.ID, nil, nil)

			require.NoError(t, err)
			require.Len(t, list, 2, "authorization holds are not user visible")
			for _, tr := range list {
				require.NotEqual(t, models.StatusAuthorization, tr.Status)
				require.Len(t, tr.Transfers, 1)
			}

			begin := now.Add(-24 * time.Hour)
			list, err = s.Transaction().ListAccountTransactions(t.Context(), ua.Available.ID, &begin, nil)

			require.NoError(t, err)
			require.Len(t, list, 1)
			require.Equal(t, "CODE00003", list[0].Code)
		})
	})
}
