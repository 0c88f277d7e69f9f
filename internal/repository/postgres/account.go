package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

const accountColumns = `number, customer_id, balance, active, created_at, updated_at`

// Number taken from sequence when not provided
const createAccount = `-- name: CreateAccount
INSERT INTO accounts (number, customer_id)
VALUES (COALESCE(NULLIF($1::text, ''), nextval('account_number_seq')::text), $2)
RETURNING ` + accountColumns

func (r *AccountRepo) CreateAccount(ctx context.Context, customerID uuid.UUID, number string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, createAccount, number, customerID)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case isUniqueViolation(err):
		return account, fmt.Errorf("account already exists: %w", err)
	case pgErrorCode(err) == pgerrcode.ForeignKeyViolation:
		return account, apperrors.ErrCustomerNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const getAccount = `-- name: GetAccount
SELECT ` + accountColumns + ` FROM accounts
WHERE number = $1
`

func (r *AccountRepo) GetAccount(ctx context.Context, number string, forUpdate bool) (models.Account, error) {
	query := getAccount
	if forUpdate {
		query += "FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, number)
	return collectAccount(rows)
}

const getBalance = `-- name: GetBalance
SELECT a.number, a.balance, c.name
FROM accounts a
JOIN customers c ON c.id = a.customer_id
WHERE a.number = $1
`

func (r *AccountRepo) GetBalance(ctx context.Context, number string) (models.Balance, error) {
	rows, _ := r.DB.Query(ctx, getBalance, number)
	balance, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Balance, error) {
		var b models.Balance
		err := row.Scan(&b.AccountNumber, &b.Balance, &b.Name)
		return b, err
	})

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return balance, apperrors.ErrAccountNotFound
	default:
		return balance, fmt.Errorf("db error: %w", err)
	}
}

// Balance never goes below zero: the table check constraint is the last line of defence
const addBalance = `-- name: AddBalance
UPDATE accounts
SET balance = balance + $2, updated_at = now()
WHERE number = $1
RETURNING ` + accountColumns

func (r *AccountRepo) AddBalance(ctx context.Context, number string, delta decimal.Decimal) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, addBalance, number, delta)
	account, err := collectAccount(rows)

	switch pgErrorCode(err) {
	case pgerrcode.CheckViolation:
		return account, apperrors.ErrInsufficientFunds
	case pgerrcode.NumericValueOutOfRange:
		return account, apperrors.ErrBalanceLimitExceeded
	}

	return account, err
}

const setActive = `-- name: SetActive
UPDATE accounts
SET active = $2, updated_at = now()
WHERE number = $1
RETURNING ` + accountColumns

func (r *AccountRepo) SetActive(ctx context.Context, number string, active bool) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, setActive, number, active)
	return collectAccount(rows)
}

func collectAccount(rows pgx.Rows) (models.Account, error) {
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.Number, &a.CustomerID, &a.Balance, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
