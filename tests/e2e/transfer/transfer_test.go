package transfer

import (
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/ledger/internal/testutil"
	"github.com/nkiryanov/ledger/tests/e2e"
)

const (
	TransferURL = "/api/transfer"
	BalanceURL  = "/api/account/balance"
	FeeURL      = "/api/fee/"
)

type transferRequest struct {
	RequestID                string  `json:"requestId"`
	DestinationAccountNumber string  `json:"destinationAccountNumber"`
	Amount                   float64 `json:"amount"`
}

func Test_Transfer(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	e2e.ServeInTx(pg.Pool, t, func(tx pgx.Tx, srvURL string, s e2e.Services) {
		source := testutil.CreateNumberedAccount(t, s.Storage, "1001", decimal.RequireFromString("150.00"))
		destination := testutil.CreateNumberedAccount(t, s.Storage, "1002", decimal.RequireFromString("30.00"))
		token := e2e.Token(t, s, source)

		t.Run("transfer charges fee", func(t *testing.T) {
			code, body := e2e.Do(t, http.MethodPost, srvURL+TransferURL, token, transferRequest{"r2", destination.Number, 40})

			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.Contains(t, body, `"sourceAccountNumber":"1001"`)
			require.Contains(t, body, `"destinationAccountNumber":"1002"`)
			require.Contains(t, body, `"amount":40`)
			require.Contains(t, body, `"requestId":"r2"`)

			code, body = e2e.Do(t, http.MethodGet, srvURL+BalanceURL, token, nil)
			require.Equal(t, http.StatusOK, code)
			require.Contains(t, body, `"balance":105`)

			code, body = e2e.Do(t, http.MethodGet, srvURL+BalanceURL, e2e.Token(t, s, destination), nil)
			require.Equal(t, http.StatusOK, code)
			require.Contains(t, body, `"balance":70`)
		})

		t.Run("resubmitted transfer is replayed", func(t *testing.T) {
			code, first := e2e.Do(t, http.MethodPost, srvURL+TransferURL, token, transferRequest{"r2", destination.Number, 40})
			require.Equal(t, http.StatusOK, code)

			code, second := e2e.Do(t, http.MethodPost, srvURL+TransferURL, token, transferRequest{"r2", destination.Number, 40})
			require.Equal(t, http.StatusOK, code)
			require.JSONEq(t, first, second)

			code, body := e2e.Do(t, http.MethodGet, srvURL+BalanceURL, token, nil)
			require.Equal(t, http.StatusOK, code)
			require.Contains(t, body, `"balance":105`, "neither transfer nor fee applied again")

			code, body = e2e.Do(t, http.MethodGet, srvURL+FeeURL+source.Number, token, nil)
			require.Equal(t, http.StatusOK, code)
			require.Contains(t, body, `"amount":5`)
		})

		t.Run("fails", func(t *testing.T) {
			tests := []struct {
				name    string
				request transferRequest
				code    int
				errType string
			}{
				{"unknown destination", transferRequest{"r3", "9999", 10}, http.StatusNotFound, "DestinationNotFound"},
				{"self transfer", transferRequest{"r4", source.Number, 10}, http.StatusBadRequest, "SelfTransferNotAllowed"},
				{"insufficient funds", transferRequest{"r5", destination.Number, 1000}, http.StatusUnprocessableEntity, "InsufficientFunds"},
				{"negative amount", transferRequest{"r6", destination.Number, -1}, http.StatusBadRequest, "InvalidAmount"},
				{"too many decimals", transferRequest{"r7", destination.Number, 1.001}, http.StatusBadRequest, "InvalidAmount"},
				{"amount over limit", transferRequest{"r9", destination.Number, 1e18}, http.StatusBadRequest, "InvalidAmount"},
				{"malformed destination", transferRequest{"r10", "10a2", 10}, http.StatusBadRequest, "InvalidAccountNumber"},
				{"reserved request id", transferRequest{"fee:r11", destination.Number, 10}, http.StatusBadRequest, "InvalidRequestId"},
				{"key reused", transferRequest{"r2", destination.Number, 41}, http.StatusConflict, "IdempotencyKeyReused"},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					code, body := e2e.Do(t, http.MethodPost, srvURL+TransferURL, token, tt.request)

					require.Equalf(t, tt.code, code, "not expected code. Body: %s", body)
					require.Contains(t, body, `"type":"`+tt.errType+`"`)
				})
			}

			code, body := e2e.Do(t, http.MethodGet, srvURL+BalanceURL, token, nil)
			require.Equal(t, http.StatusOK, code)
			require.Contains(t, body, `"balance":105`, "failed transfers change nothing")
		})

		t.Run("missing request id", func(t *testing.T) {
			code, body := e2e.Do(t, http.MethodPost, srvURL+TransferURL, token, map[string]any{
				"destinationAccountNumber": destination.Number,
				"amount":                   10,
			})

			require.Equal(t, http.StatusBadRequest, code)
			require.Contains(t, body, `"requestId"`)
		})

		t.Run("unauthorized", func(t *testing.T) {
			code, _ := e2e.Do(t, http.MethodPost, srvURL+TransferURL, "", transferRequest{"r8", destination.Number, 10})

			require.Equal(t, http.StatusUnauthorized, code)
		})
	})
}
