package models

import (
	"time"
)

// Access token issued for customer on login
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}
