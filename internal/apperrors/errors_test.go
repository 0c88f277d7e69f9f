package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	t.Run("restore known error by code", func(t *testing.T) {
		err := FromCode("InsufficientFunds", "whatever was stored")

		require.ErrorIs(t, err, ErrInsufficientFunds, "known code must restore the same sentinel")
		require.Equal(t, "insufficient funds", err.Error())
	})

	t.Run("restore unknown code keeps message", func(t *testing.T) {
		err := FromCode("SomethingNew", "something new happened")

		appErr, ok := As(err)
		require.True(t, ok)
		require.Equal(t, "SomethingNew", appErr.Code)
		require.Equal(t, "something new happened", appErr.Message)
		require.Equal(t, KindValidation, appErr.Kind)
	})

	t.Run("extract wrapped error", func(t *testing.T) {
		err := fmt.Errorf("source account 1001: %w", ErrAccountNotFound)

		appErr, ok := As(err)
		require.True(t, ok)
		require.Equal(t, KindNotFound, appErr.Kind)
		require.Equal(t, "AccountNotFound", appErr.Code)
	})

	t.Run("not application error", func(t *testing.T) {
		_, ok := As(errors.New("db is down"))

		require.False(t, ok)
	})
}
