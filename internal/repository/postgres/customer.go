package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
)

type CustomerRepo struct {
	DB DBTX
}

const createCustomer = `-- name: CreateCustomer
INSERT INTO customers (id, cpf, name, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, cpf, name, password_hash, ''
`

func (r *CustomerRepo) CreateCustomer(ctx context.Context, cpf string, name string, hashedPassword string) (models.Customer, error) {
	rows, _ := r.DB.Query(ctx, createCustomer, uuid.New(), cpf, name, hashedPassword)
	customer, err := pgx.CollectOneRow(rows, rowToCustomer)

	switch {
	case err == nil:
		return customer, nil
	case isUniqueViolation(err):
		return customer, apperrors.ErrCustomerAlreadyExists
	default:
		return customer, fmt.Errorf("db error: %w", err)
	}
}

const getCustomerByID = `-- name: GetCustomerByID
SELECT c.id, c.created_at, c.cpf, c.name, c.password_hash, COALESCE(a.number, '')
FROM customers c
LEFT JOIN accounts a ON a.customer_id = c.id
WHERE c.id = $1
`

func (r *CustomerRepo) GetCustomerByID(ctx context.Context, id uuid.UUID) (models.Customer, error) {
	rows, _ := r.DB.Query(ctx, getCustomerByID, id)
	return collectCustomer(rows)
}

const getCustomerByCPF = `-- name: GetCustomerByCPF
SELECT c.id, c.created_at, c.cpf, c.name, c.password_hash, COALESCE(a.number, '')
FROM customers c
LEFT JOIN accounts a ON a.customer_id = c.id
WHERE c.cpf = $1
`

func (r *CustomerRepo) GetCustomerByCPF(ctx context.Context, cpf string) (models.Customer, error) {
	rows, _ := r.DB.Query(ctx, getCustomerByCPF, cpf)
	return collectCustomer(rows)
}

func collectCustomer(rows pgx.Rows) (models.Customer, error) {
	customer, err := pgx.CollectOneRow(rows, rowToCustomer)

	switch {
	case err == nil:
		return customer, nil
	case errors.Is(err, pgx.ErrNoRows):
		return customer, apperrors.ErrCustomerNotFound
	default:
		return customer, fmt.Errorf("db error: %w", err)
	}
}

func rowToCustomer(row pgx.CollectableRow) (models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.CreatedAt, &c.CPF, &c.Name, &c.HashedPassword, &c.AccountNumber)
	return c, err
}
