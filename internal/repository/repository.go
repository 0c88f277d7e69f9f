package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/models"
)

// Storage gives access to all repositories
// Repositories returned by the same storage share the same connection or transaction
type Storage interface {
	Customer() CustomerRepo
	Account() AccountRepo
	Movement() MovementRepo
	Transfer() TransferRepo
	Fee() FeeRepo
	Idempotency() IdempotencyRepo

	// Run fn in db transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

type CustomerRepo interface {
	// Create customer
	// If customer with the cpf exists already has to return apperrors.ErrCustomerAlreadyExists
	CreateCustomer(ctx context.Context, cpf string, name string, hashedPassword string) (models.Customer, error)

	// Get customer with its account number
	// If customer not found must return apperrors.ErrCustomerNotFound
	GetCustomerByID(ctx context.Context, id uuid.UUID) (models.Customer, error)
	GetCustomerByCPF(ctx context.Context, cpf string) (models.Customer, error)
}

type AccountRepo interface {
	// Open account with zero balance
	// Account number generated if empty number passed
	CreateAccount(ctx context.Context, customerID uuid.UUID, number string) (models.Account, error)

	// Get account. If forUpdate is set the row is locked until transaction end
	// If account not found must return apperrors.ErrAccountNotFound
	GetAccount(ctx context.Context, number string, forUpdate bool) (models.Account, error)

	// Get account balance with owner name
	GetBalance(ctx context.Context, number string) (models.Balance, error)

	// Add signed delta to account balance and return updated account
	AddBalance(ctx context.Context, number string, delta decimal.Decimal) (models.Account, error)

	SetActive(ctx context.Context, number string, active bool) (models.Account, error)
}

type MovementRepo interface {
	// Append movement
	// If movement with the same request id exists for the account must return apperrors.ErrDuplicateRequest
	CreateMovement(ctx context.Context, m models.Movement) (models.Movement, error)

	// List account movements ordered by creation time
	ListMovements(ctx context.Context, accountNumber string) ([]models.Movement, error)

	// Sum of all signed movement amounts of the account
	SumMovements(ctx context.Context, accountNumber string) (decimal.Decimal, error)
}

type TransferRepo interface {
	// Create transfer record
	// If transfer with the same request id exists must return apperrors.ErrDuplicateRequest
	CreateTransfer(ctx context.Context, t models.Transfer) (models.Transfer, error)
}

type FeeRepo interface {
	CreateAssessment(ctx context.Context, a models.FeeAssessment) (models.FeeAssessment, error)

	// If assessment not found must return apperrors.ErrFeeAssessmentNotFound
	GetAssessment(ctx context.Context, chargeRequestID string, forUpdate bool) (models.FeeAssessment, error)

	// Pending assessments due for a charge attempt, least recently touched first
	// Assessment failed n times is due backoff*2^(n-1) after the last failure, but no later than maxBackoff
	ListPendingAssessments(ctx context.Context, limit int, backoff time.Duration, maxBackoff time.Duration) ([]models.FeeAssessment, error)

	MarkAssessmentCharged(ctx context.Context, chargeRequestID string) error
	MarkAssessmentFailed(ctx context.Context, chargeRequestID string, reason string) error

	// Record charged fee
	// If fee with the same charge request id exists must return apperrors.ErrDuplicateRequest
	CreateFee(ctx context.Context, f models.Fee) (models.Fee, error)

	// If fee not found must return apperrors.ErrFeeNotFound
	GetFee(ctx context.Context, id int64) (models.Fee, error)
	GetFeeByChargeRequestID(ctx context.Context, chargeRequestID string) (models.Fee, error)

	// List account fees, newest first
	ListFees(ctx context.Context, accountNumber string) ([]models.Fee, error)
}

type IdempotencyRepo interface {
	// Insert in-flight record
	// Return false if the record with the request id already exists; existing record is not touched
	Reserve(ctx context.Context, rec models.IdempotencyRecord) (bool, error)

	// If record not found must return apperrors.ErrRequestNotFound
	Get(ctx context.Context, requestID string) (models.IdempotencyRecord, error)

	// Take over in-flight record locked before staleBefore
	// Return false if record is terminal or locked recently
	Reclaim(ctx context.Context, requestID string, staleBefore time.Time, lockedAt time.Time) (bool, error)

	// Store terminal outcome for in-flight record
	// Return false if record is terminal already; terminal records are never overwritten
	Complete(ctx context.Context, rec models.IdempotencyRecord) (bool, error)

	// Delete in-flight record. Terminal records are kept
	Release(ctx context.Context, requestID string) error
}
