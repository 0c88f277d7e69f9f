package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/service/validate"
)

// Store owns account balances and their movement history
// Every balance change appends a movement, so account balance always equals sum of its movements
type Store struct {
	storage repository.Storage
}

func NewStore(storage repository.Storage) *Store {
	return &Store{storage: storage}
}

// Store working in the transaction of tx
func (s *Store) WithStorage(tx repository.Storage) *Store {
	return &Store{storage: tx}
}

func (s *Store) GetAccount(ctx context.Context, number string) (models.Account, error) {
	return s.storage.Account().GetAccount(ctx, number, false)
}

// Get account balance with owner name
func (s *Store) GetBalance(ctx context.Context, number string) (models.Balance, error) {
	return s.storage.Account().GetBalance(ctx, number)
}

// Report whether account exists and is active
// Malformed number is reported as ErrInvalidAccountNumber
func (s *Store) Exists(ctx context.Context, number string) (bool, error) {
	if err := validate.AccountNumber(number); err != nil {
		return false, apperrors.ErrInvalidAccountNumber
	}

	account, err := s.GetAccount(ctx, number)
	switch {
	case err == nil:
		return account.Active, nil
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) ListMovements(ctx context.Context, number string) ([]models.Movement, error) {
	return s.storage.Movement().ListMovements(ctx, number)
}

func (s *Store) MovementsSum(ctx context.Context, number string) (decimal.Decimal, error) {
	return s.storage.Movement().SumMovements(ctx, number)
}

// Apply signed amount to the account: credit if positive, debit if negative
// Account row is locked until the transaction ends
func (s *Store) ApplyMovement(ctx context.Context, number string, amount decimal.Decimal, requestID string) (models.Movement, error) {
	var movement models.Movement

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		account, err := tx.Account().GetAccount(ctx, number, true)
		if err != nil {
			return err
		}

		movement, err = apply(ctx, tx, account, models.Movement{
			ID:        uuid.New(),
			Amount:    amount,
			RequestID: requestID,
		})
		return err
	})

	return movement, err
}

// Apply debit on source and credit on destination as one unit
// Both accounts are locked in ascending account number order, so opposite transfers can't deadlock
func (s *Store) ApplyTransferAtomic(ctx context.Context, source string, destination string, amount decimal.Decimal, requestID string) (models.Transfer, error) {
	var transfer models.Transfer

	if source == destination {
		return transfer, apperrors.ErrSelfTransferNotAllowed
	}
	if !amount.IsPositive() {
		return transfer, apperrors.ErrInvalidAmount
	}

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		accounts, err := lockOrdered(ctx, tx, source, destination)
		if err != nil {
			return err
		}
		src, dst := accounts[source], accounts[destination]

		transfer, err = tx.Transfer().CreateTransfer(ctx, models.Transfer{
			SourceAccountNumber:      source,
			DestinationAccountNumber: destination,
			Amount:                   amount,
			RequestID:                requestID,
		})
		if err != nil {
			return err
		}

		_, err = apply(ctx, tx, src, models.Movement{
			ID:         uuid.New(),
			Amount:     amount.Neg(),
			RequestID:  requestID,
			TransferID: &transfer.ID,
		})
		if err != nil {
			return fmt.Errorf("source account %s: %w", source, err)
		}

		_, err = apply(ctx, tx, dst, models.Movement{
			ID:         uuid.New(),
			Amount:     amount,
			RequestID:  requestID,
			TransferID: &transfer.ID,
		})
		if err != nil {
			return fmt.Errorf("destination account %s: %w", destination, err)
		}

		return nil
	})

	return transfer, err
}

// Lock accounts one by one in ascending number order
func lockOrdered(ctx context.Context, tx repository.Storage, a string, b string) (map[string]models.Account, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	accounts := make(map[string]models.Account, 2)
	for _, number := range []string{first, second} {
		account, err := tx.Account().GetAccount(ctx, number, true)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", number, err)
		}
		accounts[number] = account
	}

	return accounts, nil
}

// Append movement and update balance of the locked account
func apply(ctx context.Context, tx repository.Storage, account models.Account, m models.Movement) (models.Movement, error) {
	if !account.Active {
		return m, apperrors.ErrAccountInactive
	}

	if m.Amount.IsZero() {
		return m, apperrors.ErrInvalidAmount
	}

	m.AccountNumber = account.Number
	m.Type = models.MovementCredit
	if m.Amount.IsNegative() {
		m.Type = models.MovementDebit

		if account.Balance.Add(m.Amount).IsNegative() {
			return m, apperrors.ErrInsufficientFunds
		}
	}

	movement, err := tx.Movement().CreateMovement(ctx, m)
	if err != nil {
		return movement, err
	}

	_, err = tx.Account().AddBalance(ctx, account.Number, m.Amount)
	if err != nil {
		return movement, err
	}

	return movement, nil
}
