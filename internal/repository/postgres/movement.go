package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
)

type MovementRepo struct {
	DB DBTX
}

const createMovement = `-- name: CreateMovement
INSERT INTO movements (id, account_number, amount, type, request_id, transfer_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, account_number, amount, type, request_id, transfer_id, created_at
`

func (r *MovementRepo) CreateMovement(ctx context.Context, m models.Movement) (models.Movement, error) {
	rows, _ := r.DB.Query(ctx, createMovement, m.ID, m.AccountNumber, m.Amount, m.Type, m.RequestID, m.TransferID)
	movement, err := pgx.CollectOneRow(rows, rowToMovement)

	switch {
	case err == nil:
		return movement, nil
	case isUniqueViolation(err):
		return movement, apperrors.ErrDuplicateRequest
	case pgErrorCode(err) == pgerrcode.ForeignKeyViolation:
		return movement, apperrors.ErrAccountNotFound
	default:
		return movement, fmt.Errorf("db error: %w", err)
	}
}

const listMovements = `-- name: ListMovements
SELECT id, account_number, amount, type, request_id, transfer_id, created_at
FROM movements
WHERE account_number = $1
ORDER BY created_at, id
`

func (r *MovementRepo) ListMovements(ctx context.Context, accountNumber string) ([]models.Movement, error) {
	rows, _ := r.DB.Query(ctx, listMovements, accountNumber)
	movements, err := pgx.CollectRows(rows, rowToMovement)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return movements, nil
}

const sumMovements = `-- name: SumMovements
SELECT COALESCE(SUM(amount), 0)
FROM movements
WHERE account_number = $1
`

func (r *MovementRepo) SumMovements(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	var sum decimal.Decimal

	err := r.DB.QueryRow(ctx, sumMovements, accountNumber).Scan(&sum)
	if err != nil {
		return sum, fmt.Errorf("db error: %w", err)
	}

	return sum, nil
}

func rowToMovement(row pgx.CollectableRow) (models.Movement, error) {
	var m models.Movement
	err := row.Scan(&m.ID, &m.AccountNumber, &m.Amount, &m.Type, &m.RequestID, &m.TransferID, &m.CreatedAt)
	return m, err
}
