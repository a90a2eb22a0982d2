package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/models"
)

type DayLogRepo struct {
	DB DBTX
}

func (r *DayLogRepo) Get(ctx context.Context, accountID int64, day time.Time) (models.AccountDayLog, bool, error) {
	const getDayLog = `-- name: GetDayLog
	SELECT id, account_id, date, amount FROM account_day_logs
	WHERE account_id = $1 AND date = $2::date
	`

	rows, _ := r.DB.Query(ctx, getDayLog, accountID, day)
	log, err := pgx.CollectOneRow(rows, rowToDayLog)

	switch {
	case err == nil:
		return log, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return log, false, nil
	default:
		return log, false, fmt.Errorf("db error: %w", err)
	}
}

// Create pins the balance for a day. The unique constraint makes concurrent
// pinning safe: the loser reads the winner's row and both see one snapshot
const createDayLog = `-- name: CreateDayLog
WITH inserted AS (
	INSERT INTO account_day_logs (account_id, date, amount)
	VALUES ($1, $2::date, $3)
	ON CONFLICT (account_id, date) DO NOTHING
	RETURNING id, account_id, date, amount
)
SELECT * FROM inserted
UNION
SELECT id, account_id, date, amount FROM account_day_logs
WHERE account_id = $1 AND date = $2::date
`

func (r *DayLogRepo) Create(ctx context.Context, accountID int64, day time.Time, amount decimal.Decimal) (models.AccountDayLog, error) {
	rows, _ := r.DB.Query(ctx, createDayLog, accountID, day, amount)
	log, err := pgx.CollectOneRow(rows, rowToDayLog)
	if err != nil {
		return log, fmt.Errorf("db error: %w", err)
	}

	return log, nil
}

func rowToDayLog(row pgx.CollectableRow) (models.AccountDayLog, error) {
	var l models.AccountDayLog
	err := row.Scan(&l.ID, &l.AccountID, &l.Date, &l.Amount)
	return l, err
}
