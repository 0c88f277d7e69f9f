package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
)

type TransferRepo struct {
	DB DBTX
}

const createTransfer = `-- name: CreateTransfer
INSERT INTO transfers (source_account, destination_account, amount, request_id)
VALUES ($1, $2, $3, $4)
RETURNING id, source_account, destination_account, amount, request_id, created_at
`

func (r *TransferRepo) CreateTransfer(ctx context.Context, t models.Transfer) (models.Transfer, error) {
	rows, _ := r.DB.Query(ctx, createTransfer, t.SourceAccountNumber, t.DestinationAccountNumber, t.Amount, t.RequestID)
	transfer, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Transfer, error) {
		var t models.Transfer
		err := row.Scan(&t.ID, &t.SourceAccountNumber, &t.DestinationAccountNumber, &t.Amount, &t.RequestID, &t.CreatedAt)
		return t, err
	})

	switch {
	case err == nil:
		return transfer, nil
	case isUniqueViolation(err):
		return transfer, apperrors.ErrDuplicateRequest
	case pgErrorCode(err) == pgerrcode.ForeignKeyViolation:
		return transfer, apperrors.ErrAccountNotFound
	default:
		return transfer, fmt.Errorf("db error: %w", err)
	}
}
