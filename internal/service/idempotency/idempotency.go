package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
)

const (
	defaultLease        = 30 * time.Second
	defaultWait         = 5 * time.Second
	defaultPollInterval = 50 * time.Millisecond

	maxRequestIDLength = 64
)

// Error returned when in-flight record was completed by another attempt
var errLeaseLost = errors.New("request was completed by another attempt")

type Config struct {
	// In-flight record older than lease is considered abandoned and may be taken over
	Lease time.Duration

	// How long a duplicate waits for the outcome of the in-flight original
	Wait time.Duration

	PollInterval time.Duration
}

// Guard deduplicates ledger requests by client request id
type Guard struct {
	storage repository.Storage

	lease        time.Duration
	wait         time.Duration
	pollInterval time.Duration
}

func NewGuard(storage repository.Storage, cfg Config) *Guard {
	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.Lease, defaultLease)
	setDefaultDuration(&cfg.Wait, defaultWait)
	setDefaultDuration(&cfg.PollInterval, defaultPollInterval)

	return &Guard{
		storage:      storage,
		lease:        cfg.Lease,
		wait:         cfg.Wait,
		pollInterval: cfg.PollInterval,
	}
}

// Request processed under client request id
type Request struct {
	RequestID string

	// Operation name: 'movement', 'transfer'
	Operation string

	// Request parameters. The same request id with different parameters is rejected
	Params any
}

func (r Request) fingerprint() (string, error) {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return "", fmt.Errorf("can't fingerprint request params. Err: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(r.Operation))
	h.Write([]byte{0})
	h.Write(params)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Begin processing of the request
// Return proceed=true if the caller holds the request now and has to complete it.
// Otherwise terminal record of earlier attempt is returned.
func (g *Guard) Begin(ctx context.Context, req Request) (rec models.IdempotencyRecord, proceed bool, err error) {
	if req.RequestID == "" || len(req.RequestID) > maxRequestIDLength || strings.HasPrefix(req.RequestID, models.FeeRequestIDPrefix) {
		return rec, false, apperrors.ErrInvalidRequestID
	}

	fingerprint, err := req.fingerprint()
	if err != nil {
		return rec, false, err
	}

	rec = models.IdempotencyRecord{
		RequestID:   req.RequestID,
		Operation:   req.Operation,
		Fingerprint: fingerprint,
		Status:      models.RequestInFlight,
	}

	ctx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()

	for {
		rec.LockedAt = time.Now()
		reserved, err := g.storage.Idempotency().Reserve(ctx, rec)
		if err != nil {
			return rec, false, err
		}
		if reserved {
			return rec, true, nil
		}

		existing, err := g.await(ctx, rec)
		switch {
		case errors.Is(err, apperrors.ErrRequestNotFound):
			// Released by failed attempt, try to reserve again
			continue
		case errors.Is(err, errStale):
			rec.LockedAt = time.Now()
			reclaimed, err := g.storage.Idempotency().Reclaim(ctx, rec.RequestID, rec.LockedAt.Add(-g.lease), rec.LockedAt)
			if err != nil {
				return rec, false, err
			}
			if reclaimed {
				return rec, true, nil
			}
			continue
		case err != nil:
			return rec, false, err
		default:
			return existing, false, nil
		}
	}
}

var errStale = errors.New("in-flight request is abandoned")

// Wait until request record becomes terminal
func (g *Guard) await(ctx context.Context, want models.IdempotencyRecord) (models.IdempotencyRecord, error) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		rec, err := g.storage.Idempotency().Get(ctx, want.RequestID)
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return rec, apperrors.ErrRequestInFlight
		case err != nil:
			return rec, err
		case rec.Operation != want.Operation || rec.Fingerprint != want.Fingerprint:
			return rec, apperrors.ErrIdempotencyKeyReused
		case rec.IsTerminal():
			return rec, nil
		case rec.LockedAt.Before(time.Now().Add(-g.lease)):
			return rec, errStale
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return rec, apperrors.ErrRequestInFlight
			}
			return rec, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Store success outcome in the transaction of the ledger effect
func (g *Guard) Commit(ctx context.Context, tx repository.Storage, requestID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("can't marshal request outcome. Err: %w", err)
	}

	now := time.Now()
	completed, err := tx.Idempotency().Complete(ctx, models.IdempotencyRecord{
		RequestID:   requestID,
		Status:      models.RequestSucceeded,
		Payload:     data,
		CompletedAt: &now,
	})
	if err != nil {
		return err
	}
	if !completed {
		return errLeaseLost
	}

	return nil
}

// Store terminal business failure, so retries get the same error
func (g *Guard) Fail(ctx context.Context, requestID string, appErr *apperrors.Error) error {
	now := time.Now()
	_, err := g.storage.Idempotency().Complete(ctx, models.IdempotencyRecord{
		RequestID:    requestID,
		Status:       models.RequestFailed,
		ErrorCode:    appErr.Code,
		ErrorMessage: appErr.Message,
		CompletedAt:  &now,
	})
	return err
}

// Drop in-flight marker, so client may retry the request
func (g *Guard) Release(ctx context.Context, requestID string) error {
	return g.storage.Idempotency().Release(ctx, requestID)
}

// Wait for the outcome of the request and return it
func (g *Guard) Await(ctx context.Context, req Request) (models.IdempotencyRecord, error) {
	fingerprint, err := req.fingerprint()
	if err != nil {
		return models.IdempotencyRecord{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()

	rec, err := g.await(ctx, models.IdempotencyRecord{RequestID: req.RequestID, Operation: req.Operation, Fingerprint: fingerprint})
	if errors.Is(err, errStale) {
		return rec, apperrors.ErrRequestInFlight
	}
	return rec, err
}

// Run fn at most once per request id
// fn runs in the storage transaction, the success outcome is committed in the same transaction.
// Application errors are stored as terminal outcome; other errors release the request id.
// replayed is true if the result is the outcome of an earlier request.
func Do[T any](ctx context.Context, g *Guard, req Request, fn func(ctx context.Context, tx repository.Storage) (T, error)) (result T, replayed bool, err error) {
	var zero T

	rec, proceed, err := g.Begin(ctx, req)
	if err != nil {
		return zero, false, err
	}
	if !proceed {
		result, err = Replay[T](rec)
		return result, true, err
	}

	err = g.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		result, err = fn(ctx, tx)
		if err != nil {
			return err
		}

		return g.Commit(ctx, tx, req.RequestID, result)
	})
	if err == nil {
		return result, false, nil
	}

	// Outcome stored even if client went away
	ctx = context.WithoutCancel(ctx)

	appErr, isAppErr := apperrors.As(err)
	switch {
	case errors.Is(err, apperrors.ErrDuplicateRequest), errors.Is(err, errLeaseLost):
		// Effect was applied by another attempt of the same request
		rec, err := g.Await(ctx, req)
		if err != nil {
			return zero, false, err
		}
		result, err = Replay[T](rec)
		return result, true, err
	case isAppErr:
		if failErr := g.Fail(ctx, req.RequestID, appErr); failErr != nil {
			return zero, false, errors.Join(err, failErr)
		}
		return zero, false, err
	default:
		if releaseErr := g.Release(ctx, req.RequestID); releaseErr != nil {
			return zero, false, errors.Join(err, releaseErr)
		}
		return zero, false, err
	}
}

// Restore outcome from terminal record
func Replay[T any](rec models.IdempotencyRecord) (T, error) {
	var result T

	switch rec.Status {
	case models.RequestSucceeded:
		if err := json.Unmarshal(rec.Payload, &result); err != nil {
			return result, fmt.Errorf("can't restore request outcome. Err: %w", err)
		}
		return result, nil
	case models.RequestFailed:
		return result, apperrors.FromCode(rec.ErrorCode, rec.ErrorMessage)
	default:
		return result, apperrors.ErrRequestInFlight
	}
}
