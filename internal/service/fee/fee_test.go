package fee

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/events"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/repository/postgres"
	"github.com/nkiryanov/ledger/internal/service/ledger"
	"github.com/nkiryanov/ledger/internal/testutil"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newLedger(t *testing.T, storage repository.Storage) *Ledger {
	l, err := NewLedger(Config{}, storage, ledger.NewStore(storage), events.NopPublisher{}, logger.NewNoOpLogger())
	require.NoError(t, err)
	return l
}

// Commit transfer with pending fee the way transfer coordinator does
func transferWithFee(t *testing.T, l *Ledger, storage repository.Storage, src, dst models.Account, amount string, requestID string) models.FeeAssessment {
	t.Helper()

	var assessment models.FeeAssessment
	err := storage.InTx(t.Context(), func(tx repository.Storage) error {
		transfer, err := ledger.NewStore(tx).ApplyTransferAtomic(t.Context(), src.Number, dst.Number, dec(amount), requestID)
		if err != nil {
			return err
		}
		assessment, err = l.Assess(t.Context(), tx, transfer)
		return err
	})
	require.NoError(t, err)

	return assessment
}

func TestNewLedger(t *testing.T) {
	t.Run("default fee", func(t *testing.T) {
		l, err := NewLedger(Config{}, nil, nil, nil, logger.NewNoOpLogger())

		require.NoError(t, err)
		require.Equal(t, "5.00", l.TransferFee().StringFixed(2))
	})

	t.Run("negative fee", func(t *testing.T) {
		_, err := NewLedger(Config{TransferFee: dec("-1")}, nil, nil, nil, logger.NewNoOpLogger())

		require.Error(t, err)
	})

	t.Run("too precise fee", func(t *testing.T) {
		_, err := NewLedger(Config{TransferFee: dec("0.001")}, nil, nil, nil, logger.NewNoOpLogger())

		require.Error(t, err)
	})
}

func TestChargeRequestID(t *testing.T) {
	require.Equal(t, ChargeRequestID("r1"), ChargeRequestID("r1"), "charge id must be stable")
	require.NotEqual(t, ChargeRequestID("r1"), ChargeRequestID("r2"))
	require.NotEqual(t, "r1", ChargeRequestID("r1"))
	require.True(t, strings.HasPrefix(ChargeRequestID("r1"), models.FeeRequestIDPrefix))
	require.LessOrEqual(t, len(ChargeRequestID("r1")), 64, "charge id must fit request id column")
}

func TestLedger(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, fn func(l *Ledger, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(newLedger(t, storage), storage)
		})
	}

	balanceOf := func(t *testing.T, storage repository.Storage, number string) string {
		balance, err := storage.Account().GetBalance(t.Context(), number)
		require.NoError(t, err)
		return balance.Balance.StringFixed(2)
	}

	t.Run("settle assessment", func(t *testing.T) {
		inTx(t, func(l *Ledger, storage repository.Storage) {
			src := testutil.CreateAccount(t, storage, dec("100"))
			dst := testutil.CreateAccount(t, storage, dec("0"))
			assessment := transferWithFee(t, l, storage, src, dst, "40", "t1")

			fee, err := l.Settle(t.Context(), assessment, SourceInline)
			require.NoError(t, err)

			require.Equal(t, src.Number, fee.AccountNumber)
			require.Equal(t, "5.00", fee.Amount.StringFixed(2))
			require.Equal(t, models.FeeTypeTransfer, fee.Type)
			require.Equal(t, "t1", fee.RequestID)
			require.Equal(t, ChargeRequestID("t1"), fee.ChargeRequestID)
			require.Equal(t, "55.00", balanceOf(t, storage, src.Number))

			charged, err := storage.Fee().GetAssessment(t.Context(), assessment.ChargeRequestID, false)
			require.NoError(t, err)
			require.Equal(t, models.FeeAssessmentCharged, charged.Status)

			movements, err := storage.Movement().ListMovements(t.Context(), src.Number)
			require.NoError(t, err)
			require.Len(t, movements, 3, "seed, transfer debit and fee debit expected")

			sum, err := storage.Movement().SumMovements(t.Context(), src.Number)
			require.NoError(t, err)
			require.Equal(t, "55.00", sum.StringFixed(2))
		})
	})

	t.Run("settle twice charges once", func(t *testing.T) {
		inTx(t, func(l *Ledger, storage repository.Storage) {
			src := testutil.CreateAccount(t, storage, dec("100"))
			dst := testutil.CreateAccount(t, storage, dec("0"))
			assessment := transferWithFee(t, l, storage, src, dst, "40", "t1")

			first, err := l.Settle(t.Context(), assessment, SourceInline)
			require.NoError(t, err)
			second, err := l.Settle(t.Context(), assessment, SourceSettlement)
			require.NoError(t, err)

			require.Equal(t, first.ID, second.ID)
			require.Equal(t, "55.00", balanceOf(t, storage, src.Number))

			fees, err := l.ListByAccount(t.Context(), src.Number)
			require.NoError(t, err)
			require.Len(t, fees, 1)
		})
	})

	t.Run("insufficient funds keeps assessment pending", func(t *testing.T) {
		inTx(t, func(l *Ledger, storage repository.Storage) {
			src := testutil.CreateAccount(t, storage, dec("42"))
			dst := testutil.CreateAccount(t, storage, dec("0"))
			assessment := transferWithFee(t, l, storage, src, dst, "40", "t1")

			_, err := l.Settle(t.Context(), assessment, SourceInline)
			require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
			require.Equal(t, "2.00", balanceOf(t, storage, src.Number), "transfer stays, fee is not charged")

			pending, err := storage.Fee().GetAssessment(t.Context(), assessment.ChargeRequestID, false)
			require.NoError(t, err)
			require.Equal(t, models.FeeAssessmentPending, pending.Status)
			require.Equal(t, 1, pending.Attempts)
			require.NotNil(t, pending.LastError)

			// Settled later when account is topped up
			_, err = ledger.NewStore(storage).ApplyMovement(t.Context(), src.Number, dec("10"), "top-up")
			require.NoError(t, err)

			_, err = l.Settle(t.Context(), pending, SourceSettlement)
			require.NoError(t, err)
			require.Equal(t, "7.00", balanceOf(t, storage, src.Number))
		})
	})

	t.Run("settle when derived uuid is taken by client movement", func(t *testing.T) {
		inTx(t, func(l *Ledger, storage repository.Storage) {
			src := testutil.CreateAccount(t, storage, dec("100"))
			dst := testutil.CreateAccount(t, storage, dec("0"))
			taken := uuid.NewSHA1(chargeNamespace, []byte("t1")).String()
			_, err := ledger.NewStore(storage).ApplyMovement(t.Context(), src.Number, dec("0.01"), taken)
			require.NoError(t, err)

			assessment := transferWithFee(t, l, storage, src, dst, "40", "t1")
			fee, err := l.Settle(t.Context(), assessment, SourceInline)

			require.NoError(t, err)
			require.Equal(t, ChargeRequestID("t1"), fee.ChargeRequestID)
			require.Equal(t, "55.01", balanceOf(t, storage, src.Number))
		})
	})

	t.Run("charge fee without assessment", func(t *testing.T) {
		inTx(t, func(l *Ledger, storage repository.Storage) {
			account := testutil.CreateAccount(t, storage, dec("10"))

			fee, err := l.ChargeFee(t.Context(), account.Number, dec("1.50"), "MAINTENANCE", "Monthly maintenance", "m-2026-10")
			require.NoError(t, err)

			require.Equal(t, "8.50", balanceOf(t, storage, account.Number))
			got, err := l.Get(t.Context(), fee.ID)
			require.NoError(t, err)
			require.Equal(t, "Monthly maintenance", got.Description)
		})
	})

	t.Run("charge fee invalid amount", func(t *testing.T) {
		inTx(t, func(l *Ledger, storage repository.Storage) {
			account := testutil.CreateAccount(t, storage, dec("10"))

			_, err := l.ChargeFee(t.Context(), account.Number, dec("0"), "MAINTENANCE", "", "m1")

			require.ErrorIs(t, err, apperrors.ErrInvalidAmount)
		})
	})

	t.Run("list pending", func(t *testing.T) {
		inTx(t, func(l *Ledger, storage repository.Storage) {
			src := testutil.CreateAccount(t, storage, dec("100"))
			dst := testutil.CreateAccount(t, storage, dec("0"))
			first := transferWithFee(t, l, storage, src, dst, "10", "t1")
			second := transferWithFee(t, l, storage, src, dst, "10", "t2")

			_, err := l.Settle(t.Context(), first, SourceInline)
			require.NoError(t, err)

			pending, err := l.ListPending(t.Context(), 10)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			require.Equal(t, second.ChargeRequestID, pending[0].ChargeRequestID)
		})
	})

	t.Run("failed charge is not listed before backoff", func(t *testing.T) {
		inTx(t, func(l *Ledger, storage repository.Storage) {
			src := testutil.CreateAccount(t, storage, dec("42"))
			dst := testutil.CreateAccount(t, storage, dec("0"))
			assessment := transferWithFee(t, l, storage, src, dst, "40", "t1")

			_, err := l.Settle(t.Context(), assessment, SourceInline)
			require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

			pending, err := l.ListPending(t.Context(), 10)
			require.NoError(t, err)
			require.Empty(t, pending, "failed assessment waits for retry backoff")
		})
	})

	t.Run("customer access", func(t *testing.T) {
		inTx(t, func(l *Ledger, storage repository.Storage) {
			src := testutil.CreateAccount(t, storage, dec("100"))
			dst := testutil.CreateAccount(t, storage, dec("0"))
			assessment := transferWithFee(t, l, storage, src, dst, "10", "t1")
			fee, err := l.Settle(t.Context(), assessment, SourceInline)
			require.NoError(t, err)

			fees, err := l.ListForCustomer(t.Context(), testutil.Owner(src), src.Number)
			require.NoError(t, err)
			require.Len(t, fees, 1)

			got, err := l.GetForCustomer(t.Context(), testutil.Owner(src), fee.ID)
			require.NoError(t, err)
			require.Equal(t, fee.ID, got.ID)

			_, err = l.ListForCustomer(t.Context(), testutil.Owner(dst), src.Number)
			require.ErrorIs(t, err, apperrors.ErrForbidden)

			_, err = l.GetForCustomer(t.Context(), testutil.Owner(dst), fee.ID)
			require.ErrorIs(t, err, apperrors.ErrFeeNotFound)

			_, err = l.GetForCustomer(t.Context(), testutil.Owner(src), fee.ID+1000)
			require.ErrorIs(t, err, apperrors.ErrFeeNotFound)
		})
	})
}
