package movement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/events"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/metrics"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/service/idempotency"
	"github.com/nkiryanov/ledger/internal/service/ledger"
	"github.com/nkiryanov/ledger/internal/service/validate"
)

const operation = "movement"

// Credit or debit requested by customer
type Request struct {
	RequestID     string
	AccountNumber string
	Amount        decimal.Decimal
	Type          string
}

type Processor struct {
	guard     *idempotency.Guard
	ledger    *ledger.Store
	publisher events.Publisher
	logger    logger.Logger
}

func NewProcessor(guard *idempotency.Guard, store *ledger.Store, publisher events.Publisher, l logger.Logger) *Processor {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Processor{
		guard:     guard,
		ledger:    store,
		publisher: publisher,
		logger:    l,
	}
}

// Apply movement to customer own account at most once per request id
func (p *Processor) Process(ctx context.Context, customer models.Customer, req Request) (movement models.Movement, err error) {
	defer func() { metrics.RecordMovement(req.Type, err) }()

	signed, err := signedAmount(req.Amount, req.Type)
	if err != nil {
		return movement, err
	}

	if validate.AccountNumber(req.AccountNumber) != nil {
		return movement, apperrors.ErrInvalidAccountNumber
	}
	if req.AccountNumber != customer.AccountNumber {
		return movement, apperrors.ErrForbidden
	}

	params := struct {
		AccountNumber string `json:"accountNumber"`
		Amount        string `json:"amount"`
		Type          string `json:"type"`
	}{req.AccountNumber, req.Amount.String(), req.Type}

	movement, replayed, err := idempotency.Do(ctx, p.guard,
		idempotency.Request{RequestID: req.RequestID, Operation: operation, Params: params},
		func(ctx context.Context, tx repository.Storage) (models.Movement, error) {
			return p.ledger.WithStorage(tx).ApplyMovement(ctx, req.AccountNumber, signed, req.RequestID)
		},
	)
	if err != nil {
		return movement, err
	}

	if replayed {
		metrics.RecordReplay(operation)
		return movement, nil
	}

	if err := p.publisher.Publish(ctx, events.MovementApplied, movement); err != nil {
		p.logger.Warn("Movement event not published", "requestId", req.RequestID, "error", err)
	}

	return movement, nil
}

// Validate amount and return it with sign of movement type
func signedAmount(amount decimal.Decimal, movementType string) (decimal.Decimal, error) {
	if !ValidAmount(amount) {
		return amount, apperrors.ErrInvalidAmount
	}

	switch movementType {
	case models.MovementCredit:
		return amount, nil
	case models.MovementDebit:
		return amount.Neg(), nil
	default:
		return amount, apperrors.ErrInvalidMovementType
	}
}

// Amounts are stored as numeric(20, 2)
var maxAmount = decimal.New(1, 18)

// Amount must be positive, below 10^18 and have at most two decimal places
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.LessThan(maxAmount) && amount.Equal(amount.Round(2))
}
