package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/ledger/internal/handlers/middleware"
	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/metrics"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/service/movement"
	"github.com/nkiryanov/ledger/internal/service/transfer"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Services struct {
	Auth     authService
	Customer customerService
	Account  accountService
	Movement movementService
	Transfer transferService
	Fee      feeService
}

type Options struct {
	// Bound of request processing time. Zero disables the bound
	RequestTimeout time.Duration

	// Rate limiter applied to every API request. Nil disables rate limiting
	RateLimiter *middleware.RateLimiter

	// Report whether dependencies are reachable. Nil means always healthy
	HealthCheck func(ctx context.Context) error
}

func NewRouter(s Services, opts Options, logger logger.Logger) http.Handler {
	authMiddleware := middleware.AuthMiddleware(s.Auth)

	limit := func(h http.Handler) http.Handler { return h }
	if opts.RateLimiter != nil {
		limit = opts.RateLimiter.Handler
	}

	mux := http.NewServeMux()
	public := func(pattern string, h http.Handler) {
		mux.Handle(pattern, metrics.InstrumentHandler(pattern, limit(h)))
	}
	private := func(pattern string, h http.Handler) {
		mux.Handle(pattern, metrics.InstrumentHandler(pattern, authMiddleware(limit(h))))
	}

	public("POST /api/account/login", handleLogin(s.Auth, logger))
	public("POST /api/account/register", handleRegister(s.Customer, logger))
	private("GET /api/account/balance", handleBalance(s.Account, logger))
	private("GET /api/account/balance/{accountNumber}", handleAccountBalance(s.Account, logger))
	private("GET /api/account/exists/{accountNumber}", handleExists(s.Account, logger))
	private("POST /api/account/movement", handleMovement(s.Movement, logger))
	private("PUT /api/account/deactivate", handleDeactivate(s.Customer, logger))

	private("POST /api/transfer", handleTransfer(s.Transfer, logger))

	private("GET /api/fee/{accountNumber}", handleListFees(s.Fee, logger))
	private("GET /api/fee/fee/{id}", handleGetFee(s.Fee, logger))

	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /healthz", handleHealth(opts.HealthCheck, logger))

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.TimeoutMiddleware(opts.RequestTimeout),
	)

	return handler
}

func handleHealth(check func(ctx context.Context) error, l logger.Logger) http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				l.Error("Health check failed", "error", err)
				render.JSONWithStatus(w, response{Status: "unavailable"}, http.StatusServiceUnavailable)
				return
			}
		}

		render.JSON(w, response{Status: "ok"})
	})
}

type authService interface {
	// Check credentials and issue access token
	// Has to return apperrors.ErrInvalidCredentials if cpf or password is wrong
	Login(ctx context.Context, cpf string, password string) (models.IssuedToken, models.Customer, error)

	// Get request and return customer if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.Customer, error)
}

type customerService interface {
	// Register customer with account
	// Has to return apperrors.ErrCustomerAlreadyExists if cpf is taken
	Register(ctx context.Context, cpf string, name string, password string) (models.Customer, models.Account, error)

	Deactivate(ctx context.Context, customer models.Customer, password string) error
}

type accountService interface {
	// If account not found has to return apperrors.ErrAccountNotFound
	GetBalance(ctx context.Context, number string) (models.Balance, error)

	// Report whether account exists and is active
	Exists(ctx context.Context, number string) (bool, error)
}

type movementService interface {
	Process(ctx context.Context, customer models.Customer, req movement.Request) (models.Movement, error)
}

type transferService interface {
	Transfer(ctx context.Context, customer models.Customer, req transfer.Request) (transfer.Result, error)
}

type feeService interface {
	// Has to return apperrors.ErrForbidden for account of other customer
	ListForCustomer(ctx context.Context, customer models.Customer, accountNumber string) ([]models.Fee, error)

	// Has to return apperrors.ErrFeeNotFound for fee of other customer
	GetForCustomer(ctx context.Context, customer models.Customer, id int64) (models.Fee, error)
}
