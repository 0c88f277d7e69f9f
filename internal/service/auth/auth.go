package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
)

const (
	defaultAccessHeaderName = "Authorization"
	defaultAccessAuthScheme = "Bearer"
)

// Interface to create or compare customer password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and customer provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type tokenManager interface {
	GenerateAccess(customer models.Customer) (models.IssuedToken, error)
	ParseAccess(access string) (uuid.UUID, error)
}

type customerService interface {
	// Check credentials. Must return apperrors.ErrInvalidCredentials on mismatch
	// and apperrors.ErrAccountInactive if customer account is deactivated
	Authenticate(ctx context.Context, cpf string, password string) (models.Customer, error)

	// Get customer with active account
	GetActive(ctx context.Context, id uuid.UUID) (models.Customer, error)
}

type Config struct {
	// Header to read access token from
	// 'Authorization' if not set
	AccessHeaderName string

	// Auth scheme of the access header
	// 'Bearer' if not set
	AccessAuthScheme string
}

// Auth service
// Stateless: every request is authenticated by its bearer token only
type AuthService struct {
	accessHeaderName string
	accessAuthScheme string

	tokens    tokenManager
	customers customerService
}

func NewService(cfg Config, tokens tokenManager, customers customerService) (*AuthService, error) {
	if cfg.AccessHeaderName == "" {
		cfg.AccessHeaderName = defaultAccessHeaderName
	}
	if cfg.AccessAuthScheme == "" {
		cfg.AccessAuthScheme = defaultAccessAuthScheme
	}

	return &AuthService{
		accessHeaderName: cfg.AccessHeaderName,
		accessAuthScheme: cfg.AccessAuthScheme,
		tokens:           tokens,
		customers:        customers,
	}, nil
}

// Login customer with cpf and password and issue access token
func (s *AuthService) Login(ctx context.Context, cpf string, password string) (models.IssuedToken, models.Customer, error) {
	customer, err := s.customers.Authenticate(ctx, cpf, password)
	if err != nil {
		return models.IssuedToken{}, customer, err
	}

	token, err := s.tokens.GenerateAccess(customer)
	if err != nil {
		return token, customer, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return token, customer, nil
}

// Get access token from request and return customer if it authenticated
// Has to return apperrors.ErrUnauthorized if token is absent, not valid or customer is gone
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.Customer, error) {
	access, err := s.accessFromRequest(r)
	if err != nil {
		return models.Customer{}, err
	}

	customerID, err := s.tokens.ParseAccess(access)
	if err != nil {
		return models.Customer{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}

	customer, err := s.customers.GetActive(ctx, customerID)
	switch {
	case err == nil:
		return customer, nil
	case errors.Is(err, apperrors.ErrCustomerNotFound), errors.Is(err, apperrors.ErrAccountNotFound):
		return customer, apperrors.ErrUnauthorized
	default:
		return customer, err
	}
}

func (s *AuthService) accessFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get(s.accessHeaderName)
	scheme, token, found := strings.Cut(header, " ")

	if !found || !strings.EqualFold(scheme, s.accessAuthScheme) || strings.TrimSpace(token) == "" {
		return "", apperrors.ErrUnauthorized
	}

	return strings.TrimSpace(token), nil
}
