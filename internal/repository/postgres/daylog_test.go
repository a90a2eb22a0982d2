package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/testutil"
)

func TestDayLogRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	withTx := func(t *testing.T, fn func(s *Storage, accountID int64)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			s := NewStorage(tx)
			ua, err := s.Account().CreateUserAccount(t.Context(), 1, "11112222", models.RoleRealUser,
				[]string{models.AccountKindAvailable})
			require.NoError(t, err)

			fn(s, ua.Available.ID)
		})
	}

	t.Run("get reports absence without error", func(t *testing.T) {
		withTx(t, func(s *Storage, accountID int64) {
			_, found, err := s.DayLog().Get(t.Context(), accountID, day)

			require.NoError(t, err)
			require.False(t, found)
		})
	})

	t.Run("create then get", func(t *testing.T) {
		withTx(t, func(s *Storage, accountID int64) {
			created, err := s.DayLog().Create(t.Context(), accountID, day, decimal.RequireFromString("15"))
			require.NoError(t, err)
			require.True(t, created.Amount.Equal(decimal.NewFromInt(15)))

			got, found, err := s.DayLog().Get(t.Context(), accountID, day)
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, created.ID, got.ID)
		})
	})

	t.Run("pinned amount never changes", func(t *testing.T) {
		withTx(t, func(s *Storage, accountID int64) {
			first, err := s.DayLog().Create(t.Context(), accountID, day, decimal.NewFromInt(15))
			require.NoError(t, err)

			second, err := s.DayLog().Create(t.Context(), accountID, day, decimal.NewFromInt(999))

			require.NoError(t, err, "repeated pin is not an error")
			require.Equal(t, first.ID, second.ID, "existing row wins")
			require.True(t, second.Amount.Equal(decimal.NewFromInt(15)), "later amount is discarded, got %s", second.Amount)
		})
	})

	t.Run("days are independent", func(t *testing.T) {
		withTx(t, func(s *Storage, accountID int64) {
			_, err := s.DayLog().Create(t.Context(), accountID, day, decimal.NewFromInt(15))
			require.NoError(t, err)

			next, err := s.DayLog().Create(t.Context(), accountID, day.Add(24*time.Hour), decimal.NewFromInt(20))
			require.NoError(t, err)
			require.True(t, next.Amount.Equal(decimal.NewFromInt(20)))
		})
	})
}
