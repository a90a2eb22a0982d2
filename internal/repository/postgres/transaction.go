package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/apperrors"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/repository"
)

type TransactionRepo struct {
	DB DBTX
}

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (code, status, created_at)
VALUES ($1, $2, $3)
RETURNING id, code, status, created_at, description, raw_details
`

func (r *TransactionRepo) Create(ctx context.Context, code string, status string, opts ...repository.CreateTransactionOption) (models.Transaction, error) {
	t := models.Transaction{
		Code:      code,
		Status:    status,
		CreatedAt: time.Now(),
	}

	for _, option := range opts {
		option(&t)
	}

	rows, _ := r.DB.Query(ctx, createTransaction, t.Code, t.Status, t.CreatedAt)
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// the idempotency key (code, status) already exists
			return t, apperrors.ErrAlreadyDone
		}
		return t, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

func (r *TransactionRepo) Get(ctx context.Context, code string, status string) (models.Transaction, error) {
	const getTransaction = `-- name: GetTransaction
	SELECT id, code, status, created_at, description, raw_details FROM transactions
	WHERE code = $1 AND status = $2
	`

	rows, _ := r.DB.Query(ctx, getTransaction, code, status)
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrTransactionNotFound
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}

func (r *TransactionRepo) UpdateDescriptions(ctx context.Context, id int64, description string, rawDetails string) error {
	const updateDescriptions = `-- name: UpdateTransactionDescriptions
	UPDATE transactions SET description = $2, raw_details = $3
	WHERE id = $1
	`

	tag, err := r.DB.Exec(ctx, updateDescriptions, id, description, rawDetails)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTransactionNotFound
	}

	return nil
}

func (r *TransactionRepo) AddTransfer(ctx context.Context, transactionID int64, accountID int64, amount decimal.Decimal) (models.Transfer, error) {
	const addTransfer = `-- name: AddTransfer
	INSERT INTO transfers (transaction_id, account_id, amount)
	VALUES ($1, $2, $3)
	RETURNING id, transaction_id, account_id, amount
	`

	rows, _ := r.DB.Query(ctx, addTransfer, transactionID, accountID, amount)
	transfer, err := pgx.CollectOneRow(rows, rowToTransfer)
	if err != nil {
		return transfer, fmt.Errorf("db error: %w", err)
	}

	return transfer, nil
}

func (r *TransactionRepo) ListTransfers(ctx context.Context, transactionID int64) ([]models.Transfer, error) {
	const listTransfers = `-- name: ListTransfers
	SELECT id, transaction_id, account_id, amount FROM transfers
	WHERE transaction_id = $1
	ORDER BY id
	`

	rows, _ := r.DB.Query(ctx, listTransfers, transactionID)
	transfers, err := pgx.CollectRows(rows, rowToTransfer)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transfers, nil
}

func (r *TransactionRepo) ListUnpresentedCodes(ctx context.Context, from time.Time, to time.Time) ([]string, error) {
	const listUnpresented = `-- name: ListUnpresentedCodes
	SELECT t.code FROM transactions t
	WHERE t.status = $1
	  AND t.created_at >= $2 AND t.created_at < $3
	  AND NOT EXISTS (
	    SELECT 1 FROM transactions p
	    WHERE p.code = t.code AND p.status = $4
	  )
	ORDER BY t.created_at
	`

	rows, _ := r.DB.Query(ctx, listUnpresented, models.StatusAuthorization, from, to, models.StatusPresentment)
	codes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var code string
		err := row.Scan(&code)
		return code, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return codes, nil
}

const sumTransfersByKind = `-- name: SumTransfersByKind
SELECT a.kind, COALESCE(SUM(tr.amount), 0)
FROM transfers tr
JOIN accounts a ON a.id = tr.account_id
JOIN transactions t ON t.id = tr.transaction_id
WHERE a.user_account_id = $1
  AND t.created_at >= $2 AND t.created_at <= $3
GROUP BY a.kind
`

func (r *TransactionRepo) SumTransfersByKind(ctx context.Context, userAccountID int64, from time.Time, to time.Time) (map[string]decimal.Decimal, error) {
	rows, _ := r.DB.Query(ctx, sumTransfersByKind, userAccountID, from, to)
	return collectKindSums(rows)
}

func (r *TransactionRepo) SumTransfersByKindBefore(ctx context.Context, userAccountID int64, before time.Time) (map[string]decimal.Decimal, error) {
	const sumTransfersBefore = `-- name: SumTransfersByKindBefore
	SELECT a.kind, COALESCE(SUM(tr.amount), 0)
	FROM transfers tr
	JOIN accounts a ON a.id = tr.account_id
	JOIN transactions t ON t.id = tr.transaction_id
	WHERE a.user_account_id = $1
	  AND t.created_at < $2
	GROUP BY a.kind
	`

	rows, _ := r.DB.Query(ctx, sumTransfersBefore, userAccountID, before)
	return collectKindSums(rows)
}

func (r *TransactionRepo) ListAccountTransactions(ctx context.Context, accountID int64, begin *time.Time, end *time.Time) ([]models.Transaction, error) {
	query := `-- name: ListAccountTransactions
	SELECT t.id, t.code, t.status, t.created_at, t.description, t.raw_details,
	       tr.id, tr.account_id, tr.amount
	FROM transactions t
	JOIN transfers tr ON tr.transaction_id = t.id
	WHERE tr.account_id = $1 AND t.status <> $2
	`
	args := []any{accountID, models.StatusAuthorization}

	if begin != nil {
		args = append(args, *begin)
		query += fmt.Sprintf(" AND t.created_at >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		query += fmt.Sprintf(" AND t.created_at < $%d", len(args))
	}
	query += " ORDER BY t.created_at, tr.id"

	rows, _ := r.DB.Query(ctx, query, args...)
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var transfer models.Transfer

		err := rows.Scan(
			&t.ID, &t.Code, &t.Status, &t.CreatedAt, &t.Description, &t.RawDetails,
			&transfer.ID, &transfer.AccountID, &transfer.Amount,
		)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		transfer.TransactionID = t.ID

		// rows come ordered by transaction, fold the legs into it
		if n := len(transactions); n > 0 && transactions[n-1].ID == t.ID {
			transactions[n-1].Transfers = append(transactions[n-1].Transfers, transfer)
			continue
		}

		t.Transfers = []models.Transfer{transfer}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transactions, nil
}

func collectKindSums(rows pgx.Rows) (map[string]decimal.Decimal, error) {
	defer rows.Close()

	sums := map[string]decimal.Decimal{
		models.AccountKindAvailable: decimal.Zero,
		models.AccountKindReserved:  decimal.Zero,
	}

	for rows.Next() {
		var kind string
		var sum decimal.Decimal
		if err := rows.Scan(&kind, &sum); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		sums[kind] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return sums, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.Code, &t.Status, &t.CreatedAt, &t.Description, &t.RawDetails)
	return t, err
}

func rowToTransfer(row pgx.CollectableRow) (models.Transfer, error) {
	var t models.Transfer
	err := row.Scan(&t.ID, &t.TransactionID, &t.AccountID, &t.Amount)
	return t, err
}
