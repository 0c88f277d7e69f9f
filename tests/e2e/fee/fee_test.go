package fee

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/testutil"
	"github.com/nkiryanov/ledger/tests/e2e"
)

const (
	TransferURL = "/api/transfer"
	ListURL     = "/api/fee/"
	GetURL      = "/api/fee/fee/"
)

type fee struct {
	ID            int64   `json:"id"`
	AccountNumber string  `json:"accountNumber"`
	Amount        float64 `json:"amount"`
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	RequestID     string  `json:"requestId"`
}

func Test_Fee(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	e2e.ServeInTx(pg.Pool, t, func(tx pgx.Tx, srvURL string, s e2e.Services) {
		t.Run("list and get", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				account := testutil.CreateAccount(t, s.Storage, decimal.RequireFromString("100.00"))
				other := testutil.CreateAccount(t, s.Storage, decimal.Zero)
				token := e2e.Token(t, s, account)

				for _, id := range []string{"t1", "t2"} {
					code, body := e2e.Do(t, http.MethodPost, srvURL+TransferURL, token, map[string]any{
						"requestId": id, "destinationAccountNumber": other.Number, "amount": 10,
					})
					require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
				}

				code, body := e2e.Do(t, http.MethodGet, srvURL+ListURL+account.Number, token, nil)
				require.Equal(t, http.StatusOK, code)

				var fees []fee
				require.NoError(t, json.Unmarshal([]byte(body), &fees))
				require.Len(t, fees, 2)
				for _, f := range fees {
					require.Equal(t, account.Number, f.AccountNumber)
					require.Equal(t, 5.0, f.Amount)
					require.Equal(t, models.FeeTypeTransfer, f.Type)
					require.NotEmpty(t, f.Description)
				}

				code, body = e2e.Do(t, http.MethodGet, srvURL+GetURL+strconv.FormatInt(fees[0].ID, 10), token, nil)
				require.Equal(t, http.StatusOK, code)
				var got fee
				require.NoError(t, json.Unmarshal([]byte(body), &got))
				require.Equal(t, fees[0], got)
			})
		})

		t.Run("no fees", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				account := testutil.CreateAccount(t, s.Storage, decimal.Zero)

				code, body := e2e.Do(t, http.MethodGet, srvURL+ListURL+account.Number, e2e.Token(t, s, account), nil)

				require.Equal(t, http.StatusOK, code)
				require.JSONEq(t, `[]`, body)
			})
		})

		t.Run("fees of other customer", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				account := testutil.CreateAccount(t, s.Storage, decimal.Zero)
				payer := testutil.CreateAccount(t, s.Storage, decimal.RequireFromString("100.00"))
				payerToken := e2e.Token(t, s, payer)
				token := e2e.Token(t, s, account)

				code, _ := e2e.Do(t, http.MethodPost, srvURL+TransferURL, payerToken, map[string]any{
					"requestId": "t1", "destinationAccountNumber": account.Number, "amount": 10,
				})
				require.Equal(t, http.StatusOK, code)

				code, body := e2e.Do(t, http.MethodGet, srvURL+ListURL+payer.Number, payerToken, nil)
				require.Equal(t, http.StatusOK, code)
				var fees []fee
				require.NoError(t, json.Unmarshal([]byte(body), &fees))
				require.Len(t, fees, 1)

				code, body = e2e.Do(t, http.MethodGet, srvURL+ListURL+payer.Number, token, nil)
				require.Equal(t, http.StatusForbidden, code)
				require.Contains(t, body, `"type":"Forbidden"`)

				code, body = e2e.Do(t, http.MethodGet, srvURL+GetURL+strconv.FormatInt(fees[0].ID, 10), token, nil)
				require.Equal(t, http.StatusNotFound, code)
				require.Contains(t, body, `"type":"FeeNotFound"`)
			})
		})

		t.Run("unknown fee", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				account := testutil.CreateAccount(t, s.Storage, decimal.Zero)
				token := e2e.Token(t, s, account)

				for _, id := range []string{"999999", "not-a-number"} {
					code, body := e2e.Do(t, http.MethodGet, srvURL+GetURL+id, token, nil)

					require.Equal(t, http.StatusNotFound, code)
					require.Contains(t, body, `"type":"FeeNotFound"`)
				}
			})
		})
	})
}
