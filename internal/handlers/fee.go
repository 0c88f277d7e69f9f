package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
)

type feeResponse struct {
	ID            int64     `json:"id"`
	AccountNumber string    `json:"accountNumber"`
	Amount        float64   `json:"amount"`
	Type          string    `json:"type"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
	RequestID     string    `json:"requestId"`
}

func newFeeResponse(f models.Fee) feeResponse {
	amount, _ := f.Amount.Float64()
	return feeResponse{
		ID:            f.ID,
		AccountNumber: f.AccountNumber,
		Amount:        amount,
		Type:          f.Type,
		Description:   f.Description,
		CreatedAt:     f.CreatedAt,
		RequestID:     f.RequestID,
	}
}

func handleListFees(feeService feeService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customer, ok := mustCustomer(w, r)
		if !ok {
			return
		}

		fees, err := feeService.ListForCustomer(r.Context(), customer, r.PathValue("accountNumber"))
		if err != nil {
			serviceError(w, l, "Failed to list fees", err)
			return
		}

		res := make([]feeResponse, 0, len(fees))
		for _, f := range fees {
			res = append(res, newFeeResponse(f))
		}
		render.JSON(w, res)
	})
}

func handleGetFee(feeService feeService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customer, ok := mustCustomer(w, r)
		if !ok {
			return
		}

		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			render.Error(w, apperrors.ErrFeeNotFound)
			return
		}

		fee, err := feeService.GetForCustomer(r.Context(), customer, id)
		if err != nil {
			serviceError(w, l, "Failed to get fee", err)
			return
		}

		render.JSON(w, newFeeResponse(fee))
	})
}
