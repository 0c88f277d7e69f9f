package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/ledger/internal/logger"
)

const (
	defaultListenAddr     = "localhost:8000"
	defaultLoggingLevel   = logger.LevelInfo
	defaultEnvironment    = logger.EnvProduction
	defaultTransferFee    = "5.00"
	defaultAccessTokenTTL = 24 * time.Hour
	defaultRequestTimeout = 10 * time.Second
	defaultRateLimit      = 20 // requests per second per client
	defaultFeeWorkers     = 4
	defaultFeeInterval    = 10 * time.Second
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the ledger service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Access tokens are signed with this key
	SecretKey string

	// Environment: 'dev' logs text, 'prod' logs JSON
	Environment string

	// Flat fee charged for every transfer
	TransferFee string

	AccessTokenTTL time.Duration

	// Bound of a single request processing time
	RequestTimeout time.Duration

	// Redis to publish ledger events to
	// Events are not published if empty
	RedisAddr string

	// Requests per second allowed for a single client. Zero disables rate limiting
	RateLimit float64

	// Fee settlement workers and interval between pending fee lookups
	FeeWorkers  int
	FeeInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		Environment:    defaultEnvironment,
		TransferFee:    defaultTransferFee,
		AccessTokenTTL: defaultAccessTokenTTL,
		RequestTimeout: defaultRequestTimeout,
		RateLimit:      defaultRateLimit,
		FeeWorkers:     defaultFeeWorkers,
		FeeInterval:    defaultFeeInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}
	setFloat := func(o *float64) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return err
			}
			*o = f
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":      setString(&c.ListenAddr),
		"DATABASE_URI":     setString(&c.DatabaseDSN),
		"SECRET_KEY":       setString(&c.SecretKey),
		"LOG_LEVEL":        setString(&c.LogLevel),
		"ENVIRONMENT":      setString(&c.Environment),
		"TRANSFER_FEE":     setString(&c.TransferFee),
		"ACCESS_TOKEN_TTL": setDuration(&c.AccessTokenTTL),
		"REQUEST_TIMEOUT":  setDuration(&c.RequestTimeout),
		"REDIS_ADDRESS":    setString(&c.RedisAddr),
		"RATE_LIMIT":       setFloat(&c.RateLimit),
		"FEE_WORKERS":      setInt(&c.FeeWorkers),
		"FEE_INTERVAL":     setDuration(&c.FeeInterval),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("ledger", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.TransferFee, "transfer-fee", "f", c.TransferFee, "Fee charged for every transfer")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVarP(&c.RequestTimeout, "timeout", "t", c.RequestTimeout, "Request processing timeout")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address to publish events to")
	fs.Float64Var(&c.RateLimit, "rate-limit", c.RateLimit, "Requests per second per client, 0 disables limit")
	fs.IntVar(&c.FeeWorkers, "fee-workers", c.FeeWorkers, "Number of fee settlement workers")
	fs.DurationVar(&c.FeeInterval, "fee-interval", c.FeeInterval, "Interval between pending fee lookups")

	return fs.Parse(args)
}

// Check required options are set
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn must be set"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key must be set"))
	}
	if fee, err := decimal.NewFromString(c.TransferFee); err != nil || !fee.IsPositive() {
		errs = append(errs, fmt.Errorf("transfer fee must be positive number, got %q", c.TransferFee))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}

	return errors.Join(errs...)
}
