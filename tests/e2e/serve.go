package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/ledger/internal/handlers"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/repository/postgres"
	"github.com/nkiryanov/ledger/internal/service/auth"
	"github.com/nkiryanov/ledger/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/ledger/internal/service/customer"
	"github.com/nkiryanov/ledger/internal/service/fee"
	"github.com/nkiryanov/ledger/internal/service/idempotency"
	"github.com/nkiryanov/ledger/internal/service/ledger"
	"github.com/nkiryanov/ledger/internal/service/movement"
	"github.com/nkiryanov/ledger/internal/service/transfer"
	"github.com/nkiryanov/ledger/internal/testutil"
)

type Services struct {
	Storage   repository.Storage
	Tokens    *tokenmanager.TokenManager
	Customers *customer.CustomerService
	Fees      *fee.Ledger
}

// Create db transaction and run server in with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.InTx with it
func ServeInTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.InTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		l := logger.NewNoOpLogger()

		tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
		require.NoError(t, err, "token manager should be created without errors")

		customers := customer.NewService(auth.BcryptHasher{Cost: bcrypt.MinCost}, storage)
		as, err := auth.NewService(auth.Config{}, tokens, customers)
		require.NoError(t, err, "auth service starting error")

		store := ledger.NewStore(storage)
		guard := idempotency.NewGuard(storage, idempotency.Config{})
		fees, err := fee.NewLedger(fee.Config{TransferFee: decimal.RequireFromString("5.00")}, storage, store, nil, l)
		require.NoError(t, err, "fee ledger should be created without errors")

		router := handlers.NewRouter(
			handlers.Services{
				Auth:     as,
				Customer: customers,
				Account:  store,
				Movement: movement.NewProcessor(guard, store, nil, l),
				Transfer: transfer.NewCoordinator(guard, store, fees, nil, l),
				Fee:      fees,
			},
			handlers.Options{},
			l,
		)

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			Storage:   storage,
			Tokens:    tokens,
			Customers: customers,
			Fees:      fees,
		})
	})
}

// Access token of the account owner
func Token(t *testing.T, s Services, account models.Account) string {
	t.Helper()

	token, err := s.Tokens.GenerateAccess(testutil.Owner(account))
	require.NoError(t, err, "failed to issue access token")
	return token.Value
}

// Send JSON request and return response status and body
// Token is not sent if empty
func Do(t *testing.T, method string, url string, token string, data any) (int, string) {
	t.Helper()

	var body io.Reader
	if data != nil {
		d, err := json.Marshal(data)
		require.NoError(t, err, "failed to marshal request")
		body = bytes.NewReader(d)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, url, body)
	require.NoError(t, err, "failed to create request")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "failed to send request")
	defer resp.Body.Close() // nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	return resp.StatusCode, string(respBody)
}
