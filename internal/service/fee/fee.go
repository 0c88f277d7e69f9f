package fee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/events"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/metrics"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/service/ledger"
)

// Flat fee charged for every transfer if not configured
var DefaultTransferFee = decimal.RequireFromString("5.00")

const defaultTransferFeeDescription = "Tarifa de transferência"

const (
	defaultRetryBackoff    = 10 * time.Second
	defaultMaxRetryBackoff = time.Hour
)

// Namespace of fee charge request ids
var chargeNamespace = uuid.MustParse("6f1c1a8e-4f4b-4c59-9f3e-2d8f0f6b5a10")

// Source of the fee charge as seen in metrics
const (
	SourceInline     = "inline"
	SourceSettlement = "settlement"
)

type Config struct {
	// Fee charged for every transfer. Must be positive
	TransferFee decimal.Decimal

	TransferFeeDescription string

	// Delay before the first retry of failed charge, doubled on every next failure
	RetryBackoff time.Duration

	// Upper bound of the retry delay
	MaxRetryBackoff time.Duration
}

// Ledger of tariffs charged to accounts
type Ledger struct {
	storage   repository.Storage
	ledger    *ledger.Store
	publisher events.Publisher
	logger    logger.Logger

	transferFee            decimal.Decimal
	transferFeeDescription string

	retryBackoff    time.Duration
	maxRetryBackoff time.Duration
}

func NewLedger(cfg Config, storage repository.Storage, store *ledger.Store, publisher events.Publisher, l logger.Logger) (*Ledger, error) {
	if cfg.TransferFee.IsZero() {
		cfg.TransferFee = DefaultTransferFee
	}
	if !cfg.TransferFee.IsPositive() || !cfg.TransferFee.Equal(cfg.TransferFee.Round(2)) {
		return nil, fmt.Errorf("transfer fee must be positive with at most two decimal places, got %s", cfg.TransferFee)
	}

	if cfg.TransferFeeDescription == "" {
		cfg.TransferFeeDescription = defaultTransferFeeDescription
	}

	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaultMaxRetryBackoff
	}

	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Ledger{
		storage:                storage,
		ledger:                 store,
		publisher:              publisher,
		logger:                 l,
		transferFee:            cfg.TransferFee,
		transferFeeDescription: cfg.TransferFeeDescription,
		retryBackoff:           cfg.RetryBackoff,
		maxRetryBackoff:        cfg.MaxRetryBackoff,
	}, nil
}

func (l *Ledger) TransferFee() decimal.Decimal {
	return l.transferFee
}

// Request id of the fee debit derived from the request that triggered the fee
// The prefix is rejected for client requests, so fee charge never collides with them
func ChargeRequestID(triggeringRequestID string) string {
	return models.FeeRequestIDPrefix + uuid.NewSHA1(chargeNamespace, []byte(triggeringRequestID)).String()
}

// Write pending transfer fee in the transaction of the transfer
// So committed transfer always has the fee to charge
func (l *Ledger) Assess(ctx context.Context, tx repository.Storage, transfer models.Transfer) (models.FeeAssessment, error) {
	return tx.Fee().CreateAssessment(ctx, models.FeeAssessment{
		ChargeRequestID: ChargeRequestID(transfer.RequestID),
		TransferID:      transfer.ID,
		AccountNumber:   transfer.SourceAccountNumber,
		Amount:          l.transferFee,
		Type:            models.FeeTypeTransfer,
		Description:     l.transferFeeDescription,
		RequestID:       transfer.RequestID,
		Status:          models.FeeAssessmentPending,
	})
}

// Debit fee from account
// Charging the same triggering request again returns the fee charged first
func (l *Ledger) ChargeFee(ctx context.Context, accountNumber string, amount decimal.Decimal, feeType string, description string, triggeringRequestID string) (models.Fee, error) {
	var fee models.Fee
	chargeID := ChargeRequestID(triggeringRequestID)

	if !amount.IsPositive() {
		return fee, apperrors.ErrInvalidAmount
	}

	charged := false
	assessed := true
	err := l.storage.InTx(ctx, func(tx repository.Storage) error {
		// Lock assessment, so concurrent charges of the same fee are serialized
		_, err := tx.Fee().GetAssessment(ctx, chargeID, true)
		switch {
		case errors.Is(err, apperrors.ErrFeeAssessmentNotFound):
			assessed = false
		case err != nil:
			return err
		}

		fee, err = tx.Fee().GetFeeByChargeRequestID(ctx, chargeID)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, apperrors.ErrFeeNotFound):
			return err
		}

		_, err = l.ledger.WithStorage(tx).ApplyMovement(ctx, accountNumber, amount.Neg(), chargeID)
		if err != nil {
			return err
		}

		fee, err = tx.Fee().CreateFee(ctx, models.Fee{
			AccountNumber:   accountNumber,
			Amount:          amount,
			Type:            feeType,
			Description:     description,
			RequestID:       triggeringRequestID,
			ChargeRequestID: chargeID,
		})
		if err != nil {
			return err
		}

		charged = true
		if assessed {
			return tx.Fee().MarkAssessmentCharged(ctx, chargeID)
		}
		return nil
	})
	if err != nil {
		if assessed {
			if markErr := l.storage.Fee().MarkAssessmentFailed(context.WithoutCancel(ctx), chargeID, err.Error()); markErr != nil && !errors.Is(markErr, apperrors.ErrFeeAssessmentNotFound) {
				l.logger.Error("Failed to record fee charge failure", "chargeRequestId", chargeID, "error", markErr)
			}
		}
		return fee, fmt.Errorf("fee for request %s not charged: %w", triggeringRequestID, err)
	}

	if charged {
		if err := l.publisher.Publish(ctx, events.FeeCharged, fee); err != nil {
			l.logger.Warn("Fee event not published", "chargeRequestId", chargeID, "error", err)
		}
	}

	return fee, nil
}

// Charge pending assessment
func (l *Ledger) Settle(ctx context.Context, a models.FeeAssessment, source string) (models.Fee, error) {
	fee, err := l.ChargeFee(ctx, a.AccountNumber, a.Amount, a.Type, a.Description, a.RequestID)
	metrics.RecordFee(source, err)
	return fee, err
}

// Pending assessments due for a charge attempt, least recently tried first
// Failed assessments wait with exponential backoff
func (l *Ledger) ListPending(ctx context.Context, limit int) ([]models.FeeAssessment, error) {
	return l.storage.Fee().ListPendingAssessments(ctx, limit, l.retryBackoff, l.maxRetryBackoff)
}

// Fees charged to account, newest first
func (l *Ledger) ListByAccount(ctx context.Context, accountNumber string) ([]models.Fee, error) {
	return l.storage.Fee().ListFees(ctx, accountNumber)
}

func (l *Ledger) Get(ctx context.Context, id int64) (models.Fee, error) {
	return l.storage.Fee().GetFee(ctx, id)
}

// List fees of customer own account
func (l *Ledger) ListForCustomer(ctx context.Context, customer models.Customer, accountNumber string) ([]models.Fee, error) {
	if accountNumber != customer.AccountNumber {
		return nil, apperrors.ErrForbidden
	}

	return l.ListByAccount(ctx, accountNumber)
}

// Get fee charged to customer own account
// Fee of other account is reported as not found
func (l *Ledger) GetForCustomer(ctx context.Context, customer models.Customer, id int64) (models.Fee, error) {
	fee, err := l.Get(ctx, id)
	if err != nil {
		return fee, err
	}

	if fee.AccountNumber != customer.AccountNumber {
		return models.Fee{}, apperrors.ErrFeeNotFound
	}

	return fee, nil
}
