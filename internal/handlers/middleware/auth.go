package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/handlers/userctx"
	"github.com/nkiryanov/ledger/internal/models"
)

type authService interface {
	Auth(ctx context.Context, r *http.Request) (models.Customer, error)
}

// Reject request without valid bearer token, put authenticated customer to context otherwise
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			customer, err := as.Auth(r.Context(), r)
			if err != nil {
				render.ServiceError(w, apperrors.ErrUnauthorized.Code, apperrors.ErrUnauthorized.Message, http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), customer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
