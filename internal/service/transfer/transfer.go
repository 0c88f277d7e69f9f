package transfer

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/events"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/metrics"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/service/fee"
	"github.com/nkiryanov/ledger/internal/service/idempotency"
	"github.com/nkiryanov/ledger/internal/service/ledger"
	"github.com/nkiryanov/ledger/internal/service/movement"
	"github.com/nkiryanov/ledger/internal/service/validate"
)

const operation = "transfer"

type Request struct {
	RequestID                string
	SourceAccountNumber      string
	DestinationAccountNumber string
	Amount                   decimal.Decimal
}

// Committed transfer with the outcome of its fee charge
type Result struct {
	Transfer models.Transfer

	// Nil if fee was not charged: request replayed or charge failed
	Fee    *models.Fee
	FeeErr error

	Replayed bool
}

type Coordinator struct {
	guard     *idempotency.Guard
	ledger    *ledger.Store
	fees      *fee.Ledger
	publisher events.Publisher
	logger    logger.Logger
}

func NewCoordinator(guard *idempotency.Guard, store *ledger.Store, fees *fee.Ledger, publisher events.Publisher, l logger.Logger) *Coordinator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Coordinator{
		guard:     guard,
		ledger:    store,
		fees:      fees,
		publisher: publisher,
		logger:    l,
	}
}

// Move funds from customer own account to destination and charge the transfer fee
// Transfer is applied at most once per request id. Fee failure never fails the transfer
func (c *Coordinator) Transfer(ctx context.Context, customer models.Customer, req Request) (res Result, err error) {
	defer func() { metrics.RecordTransfer(err) }()

	if req.SourceAccountNumber == req.DestinationAccountNumber {
		return res, apperrors.ErrSelfTransferNotAllowed
	}
	if !movement.ValidAmount(req.Amount) {
		return res, apperrors.ErrInvalidAmount
	}
	if validate.AccountNumber(req.DestinationAccountNumber) != nil {
		return res, apperrors.ErrInvalidAccountNumber
	}
	if req.SourceAccountNumber != customer.AccountNumber {
		return res, apperrors.ErrForbidden
	}

	params := struct {
		Source      string `json:"sourceAccountNumber"`
		Destination string `json:"destinationAccountNumber"`
		Amount      string `json:"amount"`
	}{req.SourceAccountNumber, req.DestinationAccountNumber, req.Amount.String()}

	var assessment models.FeeAssessment
	transfer, replayed, err := idempotency.Do(ctx, c.guard,
		idempotency.Request{RequestID: req.RequestID, Operation: operation, Params: params},
		func(ctx context.Context, tx repository.Storage) (models.Transfer, error) {
			store := c.ledger.WithStorage(tx)

			exists, err := store.Exists(ctx, req.DestinationAccountNumber)
			if err != nil {
				return models.Transfer{}, err
			}
			if !exists {
				return models.Transfer{}, apperrors.ErrDestinationNotFound
			}

			transfer, err := store.ApplyTransferAtomic(ctx, req.SourceAccountNumber, req.DestinationAccountNumber, req.Amount, req.RequestID)
			if err != nil {
				return transfer, err
			}

			assessment, err = c.fees.Assess(ctx, tx, transfer)
			return transfer, err
		},
	)
	if err != nil {
		return res, err
	}

	res = Result{Transfer: transfer, Replayed: replayed}
	if replayed {
		metrics.RecordReplay(operation)
		return res, nil
	}

	charged, feeErr := c.fees.Settle(ctx, assessment, fee.SourceInline)
	if feeErr != nil {
		res.FeeErr = feeErr
		c.logger.Warn("Transfer fee not charged, left pending", "requestId", req.RequestID, "transferId", transfer.ID, "error", feeErr)
	} else {
		res.Fee = &charged
	}

	if err := c.publisher.Publish(ctx, events.TransferCompleted, transfer); err != nil {
		c.logger.Warn("Transfer event not published", "requestId", req.RequestID, "error", err)
	}

	return res, nil
}
