package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/ledger/internal/apperrors"
)

func TestRecord(t *testing.T) {
	t.Run("movement result labels", func(t *testing.T) {
		okBefore := testutil.ToFloat64(movements.WithLabelValues("C", "ok"))
		failedBefore := testutil.ToFloat64(movements.WithLabelValues("D", "InsufficientFunds"))

		RecordMovement("C", nil)
		RecordMovement("D", fmt.Errorf("debit: %w", apperrors.ErrInsufficientFunds))

		require.Equal(t, okBefore+1, testutil.ToFloat64(movements.WithLabelValues("C", "ok")))
		require.Equal(t, failedBefore+1, testutil.ToFloat64(movements.WithLabelValues("D", "InsufficientFunds")))
	})

	t.Run("unknown error", func(t *testing.T) {
		before := testutil.ToFloat64(transfers.WithLabelValues("error"))

		RecordTransfer(errors.New("db is down"))

		require.Equal(t, before+1, testutil.ToFloat64(transfers.WithLabelValues("error")))
	})

	t.Run("fee and replay", func(t *testing.T) {
		feeBefore := testutil.ToFloat64(fees.WithLabelValues("inline", "ok"))
		replayBefore := testutil.ToFloat64(replays.WithLabelValues("transfer"))

		RecordFee("inline", nil)
		RecordReplay("transfer")

		require.Equal(t, feeBefore+1, testutil.ToFloat64(fees.WithLabelValues("inline", "ok")))
		require.Equal(t, replayBefore+1, testutil.ToFloat64(replays.WithLabelValues("transfer")))
	})
}

func TestInstrumentHandler(t *testing.T) {
	h := InstrumentHandler("GET /api/fee/{accountNumber}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/fee/{accountNumber}", "404"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/fee/1001", nil))

	require.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/fee/{accountNumber}", "404")))
	require.Zero(t, testutil.ToFloat64(httpInFlight), "in flight gauge has to be back to zero")
}

func TestHandler(t *testing.T) {
	RecordReplay("movement")
	rec := httptest.NewRecorder()

	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "ledger_idempotency_replays_total"))
}
