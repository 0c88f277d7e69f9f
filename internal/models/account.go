package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MovementCredit = "C"
	MovementDebit  = "D"
)

type Account struct {
	Number     string
	CustomerID uuid.UUID
	Balance    decimal.Decimal
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Account balance as shown to customers
type Balance struct {
	AccountNumber string
	Balance       decimal.Decimal
	Name          string
}

// Immutable record of a single account balance change
type Movement struct {
	ID            uuid.UUID       `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"` // signed: credit is positive, debit is negative
	Type          string          `json:"type"`
	RequestID     string          `json:"requestId"`
	TransferID    *int64          `json:"transferId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}
