package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FeeTypeTransfer = "TRANSFER"
)

const (
	FeeAssessmentPending = "PENDING"
	FeeAssessmentCharged = "CHARGED"
)

// Tariff charged to an account
type Fee struct {
	ID            int64
	AccountNumber string
	Amount        decimal.Decimal
	Type          string
	Description   string

	// Request id of the operation that triggered the fee
	RequestID string

	// Request id of the fee debit itself, derived from RequestID
	ChargeRequestID string

	CreatedAt time.Time
}

// Fee that has to be charged for a committed transfer
// Written in the same db transaction as the transfer and settled after it
type FeeAssessment struct {
	ChargeRequestID string
	TransferID      int64
	AccountNumber   string
	Amount          decimal.Decimal
	Type            string
	Description     string
	RequestID       string
	Status          string
	Attempts        int
	LastError       *string // nil if never failed
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
