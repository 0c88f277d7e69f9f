package apperrors

import (
	"errors"
)

// Kind groups errors by the way they have to be reported to the client
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindValidation        Kind = "validation"
	KindConflict          Kind = "conflict"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindInactive          Kind = "inactive"
)

// Well known application error
// Code is stable and returned to API clients as error 'type'
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// All known errors by code
// Filled once on package initialization and never modified after
var known = make(map[string]*Error)

func newError(kind Kind, code string, message string) *Error {
	err := &Error{Kind: kind, Code: code, Message: message}
	known[code] = err
	return err
}

var (
	ErrCustomerAlreadyExists = newError(KindConflict, "CustomerAlreadyExists", "customer with this cpf already exists")
	ErrCustomerNotFound      = newError(KindNotFound, "CustomerNotFound", "customer not found")
	ErrInvalidCPF            = newError(KindValidation, "InvalidCPF", "cpf is not valid")
	ErrInvalidCredentials    = newError(KindUnauthorized, "InvalidCredentials", "invalid cpf or password")
	ErrUnauthorized          = newError(KindUnauthorized, "Unauthorized", "unauthorized")
	ErrForbidden             = newError(KindForbidden, "Forbidden", "operation is not allowed for this account")

	ErrAccountNotFound      = newError(KindNotFound, "AccountNotFound", "account not found")
	ErrAccountInactive      = newError(KindInactive, "AccountInactive", "account is inactive")
	ErrInvalidAccountNumber = newError(KindValidation, "InvalidAccountNumber", "account number is malformed")
	ErrInsufficientFunds    = newError(KindInsufficientFunds, "InsufficientFunds", "insufficient funds")
	ErrInvalidAmount        = newError(KindValidation, "InvalidAmount", "amount must be positive, less than 10^18 and have at most two decimal places")
	ErrBalanceLimitExceeded = newError(KindValidation, "BalanceLimitExceeded", "account balance would exceed the allowed limit")
	ErrInvalidMovementType  = newError(KindValidation, "InvalidMovementType", "movement type must be 'C' or 'D'")

	ErrSelfTransferNotAllowed = newError(KindValidation, "SelfTransferNotAllowed", "source and destination accounts must differ")
	ErrDestinationNotFound    = newError(KindNotFound, "DestinationNotFound", "destination account not found")

	ErrFeeNotFound           = newError(KindNotFound, "FeeNotFound", "fee not found")
	ErrFeeAssessmentNotFound = newError(KindNotFound, "FeeAssessmentNotFound", "fee assessment not found")

	ErrInvalidRequestID     = newError(KindValidation, "InvalidRequestId", "request id is required, must be at most 64 characters and must not start with 'fee:'")
	ErrRequestNotFound      = newError(KindNotFound, "RequestNotFound", "request not found")
	ErrRequestInFlight      = newError(KindConflict, "RequestInFlight", "request with this id is still being processed")
	ErrIdempotencyKeyReused = newError(KindConflict, "IdempotencyKeyReused", "request id was already used for a different request")
	ErrDuplicateRequest     = newError(KindConflict, "DuplicateRequest", "request with this id was already applied")
)

// Return well known error by its code
// If code is unknown, return new error with validation kind, so the original message is kept
func FromCode(code string, message string) error {
	if err, ok := known[code]; ok {
		return err
	}

	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Extract application error from the chain
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}
