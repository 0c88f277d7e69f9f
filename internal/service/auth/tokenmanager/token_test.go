package tokenmanager

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/ledger/internal/models"
)

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	testCustomer := models.Customer{
		ID:            uuid.New(),
		CPF:           "52998224725",
		Name:          "Maria Silva",
		AccountNumber: "1001",
	}

	newManager := func(t *testing.T, ttl time.Duration) *TokenManager {
		m, err := New(Config{SecretKey: "test-secret-key", AccessTTL: ttl})
		require.NoError(t, err)
		return m
	}

	t.Run("New", func(t *testing.T) {
		t.Run("defaults", func(t *testing.T) {
			m, err := New(Config{SecretKey: "key"})

			require.NoError(t, err)
			require.Equal(t, defaultAccessTokenTTL, m.accessTTL)
			require.Equal(t, defaultSigningMethod, m.alg.Alg())
		})

		t.Run("fail without secret", func(t *testing.T) {
			_, err := New(Config{})
			require.Error(t, err)
		})

		t.Run("fail with unknown alg", func(t *testing.T) {
			_, err := New(Config{SecretKey: "key", Alg: "ROT13"})
			require.Error(t, err)
		})
	})

	t.Run("GenerateAccess", func(t *testing.T) {
		m := newManager(t, 15*time.Minute)

		token, err := m.GenerateAccess(testCustomer)

		require.NoError(t, err)
		require.NotEmpty(t, token.Value)
		require.WithinDuration(t, time.Now().Add(15*time.Minute), token.ExpiresAt, 2*time.Second)
	})

	t.Run("ParseAccess", func(t *testing.T) {
		t.Run("valid token", func(t *testing.T) {
			m := newManager(t, 15*time.Minute)
			token, err := m.GenerateAccess(testCustomer)
			require.NoError(t, err)

			customerID, err := m.ParseAccess(token.Value)

			require.NoError(t, err, "valid token should be parsed without errors")
			require.Equal(t, testCustomer.ID, customerID)
		})

		t.Run("not a token", func(t *testing.T) {
			m := newManager(t, 15*time.Minute)

			_, err := m.ParseAccess("invalid token")

			require.Error(t, err, "parsing even not a token should return an error")
		})

		t.Run("signed with other key", func(t *testing.T) {
			m := newManager(t, 15*time.Minute)
			other, err := New(Config{SecretKey: "other-key"})
			require.NoError(t, err)
			token, err := other.GenerateAccess(testCustomer)
			require.NoError(t, err)

			_, err = m.ParseAccess(token.Value)

			require.Error(t, err)
		})

		t.Run("expired token", func(t *testing.T) {
			m := newManager(t, time.Second)
			token, err := m.GenerateAccess(testCustomer)
			require.NoError(t, err)

			// Wait for the token to expire
			time.Sleep(2 * time.Second)

			_, err = m.ParseAccess(token.Value)
			require.Error(t, err, "token has to become expired")
		})

		t.Run("not signed token", func(t *testing.T) {
			m := newManager(t, 15*time.Minute)

			// Create valid but unsigned token
			token := jwt.NewWithClaims(
				jwt.SigningMethodNone,
				AccessTokenClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						ID:        uuid.NewString(),
						IssuedAt:  jwt.NewNumericDate(time.Now()),
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
					},
					CustomerID: testCustomer.ID,
				},
			)
			access, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)

			_, err = m.ParseAccess(access)
			require.Error(t, err, "Valid token with empty alg must fail")
		})
	})
}
