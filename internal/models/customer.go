package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	CPF            string
	Name           string
	HashedPassword string

	// Number of the account owned by customer
	// Empty until the account is opened
	AccountNumber string
}
