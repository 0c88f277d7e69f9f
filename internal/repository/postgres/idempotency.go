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

type IdempotencyRepo struct {
	DB DBTX
}

const reserveRequest = `-- name: ReserveRequest
INSERT INTO idempotency_keys (request_id, operation, fingerprint, status, locked_at)
VALUES ($1, $2, $3, 'IN_FLIGHT', $4)
ON CONFLICT (request_id) DO NOTHING
`

func (r *IdempotencyRepo) Reserve(ctx context.Context, rec models.IdempotencyRecord) (bool, error) {
	tag, err := r.DB.Exec(ctx, reserveRequest, rec.RequestID, rec.Operation, rec.Fingerprint, rec.LockedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

const getRequest = `-- name: GetRequest
SELECT request_id, operation, fingerprint, status, payload, COALESCE(error_code, ''), COALESCE(error_message, ''), locked_at, completed_at
FROM idempotency_keys
WHERE request_id = $1
`

func (r *IdempotencyRepo) Get(ctx context.Context, requestID string) (models.IdempotencyRecord, error) {
	rows, _ := r.DB.Query(ctx, getRequest, requestID)
	rec, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.IdempotencyRecord, error) {
		var rec models.IdempotencyRecord
		var payload []byte // jsonb NULL scans to nil slice
		err := row.Scan(
			&rec.RequestID, &rec.Operation, &rec.Fingerprint, &rec.Status, &payload,
			&rec.ErrorCode, &rec.ErrorMessage, &rec.LockedAt, &rec.CompletedAt,
		)
		rec.Payload = payload
		return rec, err
	})

	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, pgx.ErrNoRows):
		return rec, apperrors.ErrRequestNotFound
	default:
		return rec, fmt.Errorf("db error: %w", err)
	}
}

const reclaimRequest = `-- name: ReclaimRequest
UPDATE idempotency_keys
SET locked_at = $3
WHERE request_id = $1 AND status = 'IN_FLIGHT' AND locked_at < $2
`

func (r *IdempotencyRepo) Reclaim(ctx context.Context, requestID string, staleBefore time.Time, lockedAt time.Time) (bool, error) {
	tag, err := r.DB.Exec(ctx, reclaimRequest, requestID, staleBefore, lockedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

const completeRequest = `-- name: CompleteRequest
UPDATE idempotency_keys
SET status = $2, payload = $3, error_code = NULLIF($4, ''), error_message = NULLIF($5, ''), completed_at = $6
WHERE request_id = $1 AND status = 'IN_FLIGHT'
`

func (r *IdempotencyRepo) Complete(ctx context.Context, rec models.IdempotencyRecord) (bool, error) {
	var payload []byte
	if len(rec.Payload) > 0 {
		payload = rec.Payload
	}

	completedAt := time.Now()
	if rec.CompletedAt != nil {
		completedAt = *rec.CompletedAt
	}

	tag, err := r.DB.Exec(ctx, completeRequest,
		rec.RequestID, rec.Status, payload, rec.ErrorCode, rec.ErrorMessage, completedAt,
	)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

const releaseRequest = `-- name: ReleaseRequest
DELETE FROM idempotency_keys
WHERE request_id = $1 AND status = 'IN_FLIGHT'
`

func (r *IdempotencyRepo) Release(ctx context.Context, requestID string) error {
	_, err := r.DB.Exec(ctx, releaseRequest, requestID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
