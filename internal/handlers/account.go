package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/handlers/userctx"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/service/movement"
)

type balanceResponse struct {
	AccountNumber string  `json:"accountNumber"`
	Balance       float64 `json:"balance"`
	Name          string  `json:"name"`
}

func newBalanceResponse(b models.Balance) balanceResponse {
	balance, _ := b.Balance.Float64()
	return balanceResponse{AccountNumber: b.AccountNumber, Balance: balance, Name: b.Name}
}

// Render service error, logging the ones that are not application errors
func serviceError(w http.ResponseWriter, l logger.Logger, msg string, err error) {
	if _, ok := apperrors.As(err); !ok {
		l.Error(msg, "error", err)
	}
	render.Error(w, err)
}

// Customer is always set by auth middleware
// Missing customer means route registered without auth
func mustCustomer(w http.ResponseWriter, r *http.Request) (models.Customer, bool) {
	customer, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, render.InternalErrorType, "internal server error", http.StatusInternalServerError)
	}
	return customer, ok
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		CPF      string `json:"cpf" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type user struct {
		CPF           string `json:"cpf"`
		Name          string `json:"name"`
		AccountNumber string `json:"accountNumber"`
	}
	type response struct {
		Token string `json:"token"`
		User  user   `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		token, customer, err := authService.Login(r.Context(), data.CPF, data.Password)
		if err != nil {
			serviceError(w, l, "Failed to login", err)
			return
		}

		render.JSON(w, response{
			Token: token.Value,
			User:  user{CPF: customer.CPF, Name: customer.Name, AccountNumber: customer.AccountNumber},
		})
	})
}

func handleRegister(customerService customerService, l logger.Logger) http.Handler {
	type request struct {
		CPF      string `json:"cpf" validate:"required,cpf"`
		Name     string `json:"name" validate:"required,max=100"`
		Password string `json:"password" validate:"required,min=6,max=128"`
	}
	type response struct {
		AccountNumber string `json:"accountNumber"`
		Message       string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		_, account, err := customerService.Register(r.Context(), data.CPF, data.Name, data.Password)
		if err != nil {
			serviceError(w, l, "Failed to register customer", err)
			return
		}

		render.JSONWithStatus(w, response{AccountNumber: account.Number, Message: "Account created successfully"}, http.StatusCreated)
	})
}

func handleBalance(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customer, ok := mustCustomer(w, r)
		if !ok {
			return
		}

		balance, err := accountService.GetBalance(r.Context(), customer.AccountNumber)
		if err != nil {
			serviceError(w, l, "Failed to get balance", err)
			return
		}

		render.JSON(w, newBalanceResponse(balance))
	})
}

// Balance of customer own account requested by number
func handleAccountBalance(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customer, ok := mustCustomer(w, r)
		if !ok {
			return
		}

		number := r.PathValue("accountNumber")
		if number != customer.AccountNumber {
			render.Error(w, apperrors.ErrForbidden)
			return
		}

		balance, err := accountService.GetBalance(r.Context(), number)
		if err != nil {
			serviceError(w, l, "Failed to get balance", err)
			return
		}

		render.JSON(w, newBalanceResponse(balance))
	})
}

func handleExists(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exists, err := accountService.Exists(r.Context(), r.PathValue("accountNumber"))
		if err != nil {
			serviceError(w, l, "Failed to check account", err)
			return
		}

		render.JSON(w, exists)
	})
}

func handleMovement(movementService movementService, l logger.Logger) http.Handler {
	type request struct {
		RequestID     string          `json:"requestId" validate:"required,max=64"`
		AccountNumber string          `json:"accountNumber" validate:"required"`
		Amount        decimal.Decimal `json:"amount"`
		Type          string          `json:"type" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customer, ok := mustCustomer(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		_, err = movementService.Process(r.Context(), customer, movement.Request{
			RequestID:     data.RequestID,
			AccountNumber: data.AccountNumber,
			Amount:        data.Amount,
			Type:          data.Type,
		})
		if err != nil {
			serviceError(w, l, "Failed to apply movement", err)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
}

func handleDeactivate(customerService customerService, l logger.Logger) http.Handler {
	type request struct {
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customer, ok := mustCustomer(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = customerService.Deactivate(r.Context(), customer, data.Password)
		if err != nil {
			serviceError(w, l, "Failed to deactivate account", err)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
}
