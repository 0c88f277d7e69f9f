package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
)

type FeeRepo struct {
	DB DBTX
}

const assessmentColumns = `charge_request_id, transfer_id, account_number, amount, type, description, request_id, status, attempts, last_error, created_at, updated_at`

const createAssessment = `-- name: CreateAssessment
INSERT INTO fee_assessments (charge_request_id, transfer_id, account_number, amount, type, description, request_id, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + assessmentColumns

func (r *FeeRepo) CreateAssessment(ctx context.Context, a models.FeeAssessment) (models.FeeAssessment, error) {
	status := a.Status
	if status == "" {
		status = models.FeeAssessmentPending
	}

	rows, _ := r.DB.Query(ctx, createAssessment,
		a.ChargeRequestID, a.TransferID, a.AccountNumber, a.Amount, a.Type, a.Description, a.RequestID, status,
	)
	assessment, err := pgx.CollectOneRow(rows, rowToAssessment)

	switch {
	case err == nil:
		return assessment, nil
	case isUniqueViolation(err):
		return assessment, apperrors.ErrDuplicateRequest
	default:
		return assessment, fmt.Errorf("db error: %w", err)
	}
}

const getAssessment = `-- name: GetAssessment
SELECT ` + assessmentColumns + ` FROM fee_assessments
WHERE charge_request_id = $1
`

func (r *FeeRepo) GetAssessment(ctx context.Context, chargeRequestID string, forUpdate bool) (models.FeeAssessment, error) {
	query := getAssessment
	if forUpdate {
		query += "FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, chargeRequestID)
	assessment, err := pgx.CollectOneRow(rows, rowToAssessment)

	switch {
	case err == nil:
		return assessment, nil
	case errors.Is(err, pgx.ErrNoRows):
		return assessment, apperrors.ErrFeeAssessmentNotFound
	default:
		return assessment, fmt.Errorf("db error: %w", err)
	}
}

const listPendingAssessments = `-- name: ListPendingAssessments
SELECT ` + assessmentColumns + ` FROM fee_assessments
WHERE status = 'PENDING'
  AND (
    attempts = 0
    OR updated_at <= now() - make_interval(secs => LEAST($2::float8 * power(2, LEAST(attempts, 30) - 1), $3::float8))
  )
ORDER BY updated_at
LIMIT $1
`

func (r *FeeRepo) ListPendingAssessments(ctx context.Context, limit int, backoff time.Duration, maxBackoff time.Duration) ([]models.FeeAssessment, error) {
	rows, _ := r.DB.Query(ctx, listPendingAssessments, limit, backoff.Seconds(), maxBackoff.Seconds())
	assessments, err := pgx.CollectRows(rows, rowToAssessment)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return assessments, nil
}

const markAssessmentCharged = `-- name: MarkAssessmentCharged
UPDATE fee_assessments
SET status = 'CHARGED', last_error = NULL, updated_at = now()
WHERE charge_request_id = $1
`

func (r *FeeRepo) MarkAssessmentCharged(ctx context.Context, chargeRequestID string) error {
	return r.execOne(ctx, markAssessmentCharged, chargeRequestID)
}

const markAssessmentFailed = `-- name: MarkAssessmentFailed
UPDATE fee_assessments
SET attempts = attempts + 1, last_error = $2, updated_at = now()
WHERE charge_request_id = $1 AND status = 'PENDING'
`

// Failed assessment stays pending and is retried later
func (r *FeeRepo) MarkAssessmentFailed(ctx context.Context, chargeRequestID string, reason string) error {
	return r.execOne(ctx, markAssessmentFailed, chargeRequestID, reason)
}

func (r *FeeRepo) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.DB.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrFeeAssessmentNotFound
	}

	return nil
}

const feeColumns = `id, account_number, amount, type, description, request_id, charge_request_id, created_at`

const createFee = `-- name: CreateFee
INSERT INTO fees (account_number, amount, type, description, request_id, charge_request_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + feeColumns

func (r *FeeRepo) CreateFee(ctx context.Context, f models.Fee) (models.Fee, error) {
	rows, _ := r.DB.Query(ctx, createFee, f.AccountNumber, f.Amount, f.Type, f.Description, f.RequestID, f.ChargeRequestID)
	fee, err := pgx.CollectOneRow(rows, rowToFee)

	switch {
	case err == nil:
		return fee, nil
	case isUniqueViolation(err):
		return fee, apperrors.ErrDuplicateRequest
	default:
		return fee, fmt.Errorf("db error: %w", err)
	}
}

const getFee = `-- name: GetFee
SELECT ` + feeColumns + ` FROM fees
WHERE id = $1
`

func (r *FeeRepo) GetFee(ctx context.Context, id int64) (models.Fee, error) {
	rows, _ := r.DB.Query(ctx, getFee, id)
	return collectFee(rows)
}

const getFeeByChargeRequestID = `-- name: GetFeeByChargeRequestID
SELECT ` + feeColumns + ` FROM fees
WHERE charge_request_id = $1
`

func (r *FeeRepo) GetFeeByChargeRequestID(ctx context.Context, chargeRequestID string) (models.Fee, error) {
	rows, _ := r.DB.Query(ctx, getFeeByChargeRequestID, chargeRequestID)
	return collectFee(rows)
}

const listFees = `-- name: ListFees
SELECT ` + feeColumns + ` FROM fees
WHERE account_number = $1
ORDER BY created_at DESC, id DESC
`

func (r *FeeRepo) ListFees(ctx context.Context, accountNumber string) ([]models.Fee, error) {
	rows, _ := r.DB.Query(ctx, listFees, accountNumber)
	fees, err := pgx.CollectRows(rows, rowToFee)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return fees, nil
}

func collectFee(rows pgx.Rows) (models.Fee, error) {
	fee, err := pgx.CollectOneRow(rows, rowToFee)

	switch {
	case err == nil:
		return fee, nil
	case errors.Is(err, pgx.ErrNoRows):
		return fee, apperrors.ErrFeeNotFound
	default:
		return fee, fmt.Errorf("db error: %w", err)
	}
}

func rowToFee(row pgx.CollectableRow) (models.Fee, error) {
	var f models.Fee
	err := row.Scan(&f.ID, &f.AccountNumber, &f.Amount, &f.Type, &f.Description, &f.RequestID, &f.ChargeRequestID, &f.CreatedAt)
	return f, err
}

func rowToAssessment(row pgx.CollectableRow) (models.FeeAssessment, error) {
	var a models.FeeAssessment
	err := row.Scan(
		&a.ChargeRequestID, &a.TransferID, &a.AccountNumber, &a.Amount, &a.Type, &a.Description,
		&a.RequestID, &a.Status, &a.Attempts, &a.LastError, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}
