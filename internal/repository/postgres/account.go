package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/apperrors"
	"github.com/nkiryanov/cardissuer/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

const createUserAccount = `-- name: CreateUserAccount
INSERT INTO user_accounts (card_id, owner_id, role)
VALUES ($1, $2, $3)
RETURNING id, card_id, owner_id, role, created_at
`

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (user_account_id, kind, amount)
VALUES ($1, $2, 0)
RETURNING id, user_account_id, kind, amount
`

func (r *AccountRepo) CreateUserAccount(ctx context.Context, ownerID int64, cardID string, role string, kinds []string) (models.UserAccount, error) {
	var ua models.UserAccount

	rows, _ := r.DB.Query(ctx, createUserAccount, cardID, ownerID, role)
	ua, err := pgx.CollectOneRow(rows, rowToUserAccount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ua, apperrors.ErrAccountAlreadyExists
		}
		return ua, fmt.Errorf("db error: %w", err)
	}

	for _, kind := range kinds {
		rows, _ := r.DB.Query(ctx, createAccount, ua.ID, kind)
		account, err := pgx.CollectOneRow(rows, rowToAccount)
		if err != nil {
			return ua, fmt.Errorf("db error: %w", err)
		}

		setLinkedAccount(&ua, account)
	}

	return ua, nil
}

func (r *AccountRepo) GetByCardID(ctx context.Context, cardID string) (models.UserAccount, error) {
	const getByCardID = `-- name: GetUserAccountByCardID
	SELECT id, card_id, owner_id, role, created_at FROM user_accounts
	WHERE card_id = $1
	`

	rows, _ := r.DB.Query(ctx, getByCardID, cardID)
	return r.collectWithAccounts(ctx, rows)
}

func (r *AccountRepo) GetByID(ctx context.Context, id int64) (models.UserAccount, error) {
	const getByID = `-- name: GetUserAccountByID
	SELECT id, card_id, owner_id, role, created_at FROM user_accounts
	WHERE id = $1
	`

	rows, _ := r.DB.Query(ctx, getByID, id)
	return r.collectWithAccounts(ctx, rows)
}

func (r *AccountRepo) GetRoleAccount(ctx context.Context, role string) (models.UserAccount, error) {
	const getByRole = `-- name: GetUserAccountsByRole
	SELECT id, card_id, owner_id, role, created_at FROM user_accounts
	WHERE role = $1
	`

	var ua models.UserAccount

	rows, _ := r.DB.Query(ctx, getByRole, role)
	accounts, err := pgx.CollectRows(rows, rowToUserAccount)

	switch {
	case err != nil:
		return ua, fmt.Errorf("db error: %w", err)
	case len(accounts) == 0:
		return ua, apperrors.ErrAccountNotFound
	case len(accounts) > 1:
		// broken bootstrap, the registry must never pick one silently
		return ua, fmt.Errorf("%w: more than one '%s' account", apperrors.ErrInvalidConfiguration, role)
	}

	ua = accounts[0]
	if err := r.loadLinkedAccounts(ctx, &ua, false); err != nil {
		return ua, err
	}

	return ua, nil
}

func (r *AccountRepo) LockUserAccount(ctx context.Context, id int64) (models.UserAccount, error) {
	ua, err := r.GetByID(ctx, id)
	if err != nil {
		return ua, err
	}

	if err := r.loadLinkedAccounts(ctx, &ua, true); err != nil {
		return ua, err
	}

	return ua, nil
}

func (r *AccountRepo) AddAmount(ctx context.Context, accountID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	// atomic increment, never read-then-write
	const addAmount = `-- name: AddAmount
	UPDATE accounts SET amount = amount + $2
	WHERE id = $1
	RETURNING amount
	`

	var amount decimal.Decimal
	err := r.DB.QueryRow(ctx, addAmount, accountID, delta).Scan(&amount)

	switch {
	case err == nil:
		return amount, nil
	case errors.Is(err, pgx.ErrNoRows):
		return amount, apperrors.ErrAccountNotFound
	default:
		return amount, fmt.Errorf("db error: %w", err)
	}
}

// collectWithAccounts finishes user account queries: collects a single row
// and loads linked balance accounts
func (r *AccountRepo) collectWithAccounts(ctx context.Context, rows pgx.Rows) (models.UserAccount, error) {
	ua, err := pgx.CollectOneRow(rows, rowToUserAccount)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ua, apperrors.ErrAccountNotFound
	case err != nil:
		return ua, fmt.Errorf("db error: %w", err)
	}

	if err := r.loadLinkedAccounts(ctx, &ua, false); err != nil {
		return ua, err
	}

	return ua, nil
}

const listAccounts = `-- name: ListAccounts
SELECT id, user_account_id, kind, amount FROM accounts
WHERE user_account_id = $1
ORDER BY id
`

// Locked variant keeps the same canonical id order, so two operations that
// touch the same accounts always acquire row locks in one order
const listAccountsForUpdate = listAccounts + `
FOR UPDATE
`

func (r *AccountRepo) loadLinkedAccounts(ctx context.Context, ua *models.UserAccount, forUpdate bool) error {
	query := listAccounts
	if forUpdate {
		query = listAccountsForUpdate
	}

	rows, _ := r.DB.Query(ctx, query, ua.ID)
	accounts, err := pgx.CollectRows(rows, rowToAccount)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, account := range accounts {
		setLinkedAccount(ua, account)
	}

	return nil
}

func setLinkedAccount(ua *models.UserAccount, account models.Account) {
	switch account.Kind {
	case models.AccountKindAvailable:
		ua.Available = account
	case models.AccountKindReserved:
		reserved := account
		ua.Reserved = &reserved
	}
}

func rowToUserAccount(row pgx.CollectableRow) (models.UserAccount, error) {
	var ua models.UserAccount
	err := row.Scan(&ua.ID, &ua.CardID, &ua.OwnerID, &ua.Role, &ua.CreatedAt)
	return ua, err
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.UserAccountID, &a.Kind, &a.Amount)
	return a, err
}
