package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/testutil"
)

func TestAccount(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, fn func(storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(NewStorage(tx))
		})
	}

	t.Run("CreateAccount", func(t *testing.T) {
		t.Run("generated number", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				customer, err := storage.Customer().CreateCustomer(t.Context(), testutil.RandomCPF(), "Maria Silva", "hash")
				require.NoError(t, err)

				account, err := storage.Account().CreateAccount(t.Context(), customer.ID, "")

				require.NoError(t, err)
				require.NotEmpty(t, account.Number)
				require.Equal(t, customer.ID, account.CustomerID)
				require.True(t, account.Balance.IsZero(), "new account must have zero balance")
				require.True(t, account.Active, "new account must be active")
			})
		})

		t.Run("explicit number", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				customer, err := storage.Customer().CreateCustomer(t.Context(), testutil.RandomCPF(), "Maria Silva", "hash")
				require.NoError(t, err)

				account, err := storage.Account().CreateAccount(t.Context(), customer.ID, "777")

				require.NoError(t, err)
				require.Equal(t, "777", account.Number)
			})
		})

		t.Run("fail if customer not exists", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				_, err := storage.Account().CreateAccount(t.Context(), uuid.New(), "")

				require.ErrorIs(t, err, apperrors.ErrCustomerNotFound)
			})
		})
	})

	t.Run("GetAccount", func(t *testing.T) {
		inTx(t, func(storage repository.Storage) {
			created := testutil.CreateAccount(t, storage, decimal.RequireFromString("10.50"))

			t.Run("get ok", func(t *testing.T) {
				account, err := storage.Account().GetAccount(t.Context(), created.Number, false)

				require.NoError(t, err)
				require.Equal(t, created.Number, account.Number)
				require.Equal(t, "10.5", account.Balance.String())
			})

			t.Run("get for update ok", func(t *testing.T) {
				account, err := storage.Account().GetAccount(t.Context(), created.Number, true)

				require.NoError(t, err)
				require.Equal(t, created.Number, account.Number)
			})

			t.Run("not found", func(t *testing.T) {
				_, err := storage.Account().GetAccount(t.Context(), "9999", false)

				require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})
	})

	t.Run("GetBalance", func(t *testing.T) {
		inTx(t, func(storage repository.Storage) {
			created := testutil.CreateAccount(t, storage, decimal.RequireFromString("100"))

			balance, err := storage.Account().GetBalance(t.Context(), created.Number)
			require.NoError(t, err)
			require.Equal(t, created.Number, balance.AccountNumber)
			require.Equal(t, "Test Customer", balance.Name)
			require.True(t, balance.Balance.Equal(decimal.NewFromInt(100)))

			_, err = storage.Account().GetBalance(t.Context(), "9999")
			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})

	t.Run("AddBalance", func(t *testing.T) {
		t.Run("credit and debit", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				created := testutil.CreateAccount(t, storage, decimal.Zero)

				_, err := storage.Account().AddBalance(t.Context(), created.Number, decimal.RequireFromString("50.25"))
				require.NoError(t, err)
				account, err := storage.Account().AddBalance(t.Context(), created.Number, decimal.RequireFromString("-20.25"))
				require.NoError(t, err)

				require.Equal(t, "30", account.Balance.String())
			})
		})

		t.Run("negative balance rejected", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				created := testutil.CreateAccount(t, storage, decimal.NewFromInt(10))

				_, err := storage.Account().AddBalance(t.Context(), created.Number, decimal.NewFromInt(-11))

				require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
			})
		})

		t.Run("balance over column limit rejected", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				created := testutil.CreateAccount(t, storage, decimal.RequireFromString("999999999999999999.99"))

				_, err := storage.Account().AddBalance(t.Context(), created.Number, decimal.RequireFromString("0.01"))

				require.ErrorIs(t, err, apperrors.ErrBalanceLimitExceeded)
			})
		})

		t.Run("not found", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				_, err := storage.Account().AddBalance(t.Context(), "9999", decimal.NewFromInt(1))

				require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})
	})

	t.Run("SetActive", func(t *testing.T) {
		inTx(t, func(storage repository.Storage) {
			created := testutil.CreateAccount(t, storage, decimal.Zero)

			account, err := storage.Account().SetActive(t.Context(), created.Number, false)
			require.NoError(t, err)
			require.False(t, account.Active)

			account, err = storage.Account().GetAccount(t.Context(), created.Number, false)
			require.NoError(t, err)
			require.False(t, account.Active, "deactivation has to be persisted")
		})
	})
}
