package testutil

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/ledger/internal/db"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/service/validate"
)

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

// Fail test if docker is not reachable
func RequireDocker(t *testing.T) {
	t.Helper()

	cmd := exec.Command("docker", "info", "--format", "{{.ServerVersion}}")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("test failed: docker rootless not available or not running. Err:%s", out)
	}
}

type PostgresContainer struct {
	Pool      *pgxpool.Pool
	DSN       string
	Terminate func()
}

// Start container with postgres
// Stop if error happened, so you may be sure container started ok
// Should be stopped when tests stopped
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()
	RequireDocker(t)

	// Run postgres in docker on random port
	port, err := RandomPort()
	require.NoError(t, err, "Error happened when acquiring random port to start postgres")

	container, err := postgres.Run(t.Context(),
		"postgres:17-alpine",
		postgres.WithDatabase("ledger-test"),
		postgres.WithUsername("ledger"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
		testcontainers.CustomizeRequestOption(func(req *testcontainers.GenericContainerRequest) error {
			req.ExposedPorts = []string{fmt.Sprintf("%d:5432", port)}
			return nil
		}),
	)
	require.NoError(t, err, "Error happened when starting container with postgres, deal with it please")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err, "Error happened when getting connection string from container with postgres")
	t.Logf("Container with pg started, DSN=%v", dsn)

	// Migrate and request connection pool
	dbpool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "Error happened when connecting to postgres and migrating schema")

	return PostgresContainer{
		Pool: dbpool,
		DSN:  dsn,
		Terminate: func() {
			dbpool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type dbtx interface {
	Begin(context.Context) (pgx.Tx, error)
}

// Create db transaction and rollback at test end
// So you may be sure db remains unchanged when test stops
func InTx(dbtx dbtx, t *testing.T, testFunc func(tx pgx.Tx)) {
	tx, err := dbtx.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		err := tx.Rollback(t.Context())
		require.NoError(t, err)
	}()

	testFunc(tx)
}

// Generate random valid CPF
func RandomCPF() string {
	digits := make([]int, 0, 11)
	for {
		digits = digits[:0]
		for range 9 {
			digits = append(digits, rand.IntN(10))
		}
		digits = append(digits, validate.CPFCheckDigit(digits))
		digits = append(digits, validate.CPFCheckDigit(digits))

		var b strings.Builder
		for _, d := range digits {
			b.WriteString(strconv.Itoa(d))
		}

		if validate.CPF(b.String()) == nil {
			return b.String()
		}
	}
}

// Create customer with account and credit initial balance
// Balance is credited with a movement, so account balance always equals sum of its movements
func CreateAccount(t *testing.T, storage repository.Storage, balance decimal.Decimal) models.Account {
	t.Helper()
	return CreateNumberedAccount(t, storage, "", balance)
}

// Same as CreateAccount but with the given account number
func CreateNumberedAccount(t *testing.T, storage repository.Storage, number string, balance decimal.Decimal) models.Account {
	t.Helper()

	customer, err := storage.Customer().CreateCustomer(t.Context(), RandomCPF(), "Test Customer", "hashed-password")
	require.NoError(t, err, "customer has to be created")

	account, err := storage.Account().CreateAccount(t.Context(), customer.ID, number)
	require.NoError(t, err, "account has to be created")

	if balance.IsPositive() {
		_, err = storage.Movement().CreateMovement(t.Context(), models.Movement{
			ID:            uuid.New(),
			AccountNumber: account.Number,
			Amount:        balance,
			Type:          models.MovementCredit,
			RequestID:     "seed-" + uuid.NewString(),
		})
		require.NoError(t, err, "seed movement has to be created")

		account, err = storage.Account().AddBalance(t.Context(), account.Number, balance)
		require.NoError(t, err, "seed balance has to be credited")
	}

	return account
}

// Customer owning the account as it is seen by services
func Owner(account models.Account) models.Customer {
	return models.Customer{
		ID:            account.CustomerID,
		Name:          "Test Customer",
		AccountNumber: account.Number,
	}
}
