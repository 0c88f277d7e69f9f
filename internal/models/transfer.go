package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer links exactly two movements: debit on source and credit on destination
type Transfer struct {
	ID                       int64           `json:"id"`
	SourceAccountNumber      string          `json:"sourceAccountNumber"`
	DestinationAccountNumber string          `json:"destinationAccountNumber"`
	Amount                   decimal.Decimal `json:"amount"`
	RequestID                string          `json:"requestId"`
	CreatedAt                time.Time       `json:"createdAt"`
}
