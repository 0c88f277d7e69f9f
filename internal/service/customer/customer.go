package customer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/events"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/service/auth"
	"github.com/nkiryanov/ledger/internal/service/validate"
)

// Hash compared when customer is not found, so response time does not reveal registered cpf
const dummyHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8.pNMa6jQf7bM8gxZo9AHVQ1WE6l5e"

type CustomerService struct {
	hasher    auth.PasswordHasher
	storage   repository.Storage
	publisher events.Publisher
	logger    logger.Logger
}

type Option func(*CustomerService)

// Publish account lifecycle events
func WithPublisher(p events.Publisher, l logger.Logger) Option {
	return func(s *CustomerService) {
		s.publisher = p
		s.logger = l
	}
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage, opts ...Option) *CustomerService {
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}

	s := &CustomerService{
		hasher:    hasher,
		storage:   storage,
		publisher: events.NopPublisher{},
		logger:    logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register customer and open the account with zero balance
// Customer and account are created in one transaction
func (s *CustomerService) Register(ctx context.Context, cpf string, name string, password string) (models.Customer, models.Account, error) {
	var customer models.Customer
	var account models.Account

	if err := validate.CPF(cpf); err != nil {
		return customer, account, apperrors.ErrInvalidCPF
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return customer, account, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error

		customer, err = tx.Customer().CreateCustomer(ctx, cpf, name, hash)
		if err != nil {
			return err
		}

		account, err = tx.Account().CreateAccount(ctx, customer.ID, "")
		return err
	})
	if err != nil {
		return customer, account, fmt.Errorf("can't register customer. Err: %w", err)
	}

	customer.AccountNumber = account.Number
	return customer, account, nil
}

// Check customer credentials
// Unknown cpf and wrong password are not distinguished
func (s *CustomerService) Authenticate(ctx context.Context, cpf string, password string) (models.Customer, error) {
	customer, err := s.storage.Customer().GetCustomerByCPF(ctx, cpf)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrCustomerNotFound):
		_ = s.hasher.Compare(dummyHash, password)
		return customer, apperrors.ErrInvalidCredentials
	default:
		return customer, err
	}

	if err := s.hasher.Compare(customer.HashedPassword, password); err != nil {
		return customer, apperrors.ErrInvalidCredentials
	}

	if err := s.checkActive(ctx, customer); err != nil {
		return customer, err
	}

	return customer, nil
}

// Get customer whose account is active
func (s *CustomerService) GetActive(ctx context.Context, id uuid.UUID) (models.Customer, error) {
	customer, err := s.storage.Customer().GetCustomerByID(ctx, id)
	if err != nil {
		return customer, err
	}

	if err := s.checkActive(ctx, customer); err != nil {
		return customer, err
	}

	return customer, nil
}

// Deactivate customer account after password re-check
// Deactivated account accepts no movements and can't log in
func (s *CustomerService) Deactivate(ctx context.Context, customer models.Customer, password string) error {
	var deactivated models.Account
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		fresh, err := tx.Customer().GetCustomerByID(ctx, customer.ID)
		if err != nil {
			return err
		}

		if err := s.hasher.Compare(fresh.HashedPassword, password); err != nil {
			return apperrors.ErrInvalidCredentials
		}

		account, err := tx.Account().GetAccount(ctx, fresh.AccountNumber, true)
		if err != nil {
			return err
		}
		if !account.Active {
			return apperrors.ErrAccountInactive
		}

		deactivated, err = tx.Account().SetActive(ctx, account.Number, false)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, events.AccountDeactivated, deactivated); err != nil {
		s.logger.Warn("Account deactivation event not published", "account", deactivated.Number, "error", err)
	}

	return nil
}

func (s *CustomerService) checkActive(ctx context.Context, customer models.Customer) error {
	if customer.AccountNumber == "" {
		return apperrors.ErrAccountNotFound
	}

	account, err := s.storage.Account().GetAccount(ctx, customer.AccountNumber, false)
	if err != nil {
		return err
	}

	if !account.Active {
		return apperrors.ErrAccountInactive
	}

	return nil
}
