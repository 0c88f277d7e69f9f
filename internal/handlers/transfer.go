package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/service/transfer"
)

func handleTransfer(transferService transferService, l logger.Logger) http.Handler {
	type request struct {
		RequestID                string          `json:"requestId" validate:"required,max=64"`
		DestinationAccountNumber string          `json:"destinationAccountNumber" validate:"required"`
		Amount                   decimal.Decimal `json:"amount"`
	}
	type response struct {
		ID                       int64     `json:"id"`
		SourceAccountNumber      string    `json:"sourceAccountNumber"`
		DestinationAccountNumber string    `json:"destinationAccountNumber"`
		Amount                   float64   `json:"amount"`
		CreatedAt                time.Time `json:"createdAt"`
		RequestID                string    `json:"requestId"`
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

		res, err := transferService.Transfer(r.Context(), customer, transfer.Request{
			RequestID:                data.RequestID,
			SourceAccountNumber:      customer.AccountNumber,
			DestinationAccountNumber: data.DestinationAccountNumber,
			Amount:                   data.Amount,
		})
		if err != nil {
			serviceError(w, l, "Failed to transfer", err)
			return
		}

		t := res.Transfer
		amount, _ := t.Amount.Float64()
		render.JSON(w, response{
			ID:                       t.ID,
			SourceAccountNumber:      t.SourceAccountNumber,
			DestinationAccountNumber: t.DestinationAccountNumber,
			Amount:                   amount,
			CreatedAt:                t.CreatedAt,
			RequestID:                t.RequestID,
		})
	})
}
