package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/cardissuer/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultSchemaAddr      = "localhost:3000"
	defaultOverhead        = 20
	defaultTTLDays         = 5
	defaultSettleInterval  = 24 * time.Hour
	defaultDefaultCurrency = "EUR"
	defaultSystemOwnerID   = 1
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the issuer service will be run
	ListenAddr string

	// Payment schema settlement API address
	SchemaAddr string

	// Database to connect to
	DatabaseDSN string

	// Environment
	Environment string

	// Percent added to every authorization hold
	OverheadPercent int

	// Days an authorization may wait for its presentment
	AuthTTLDays int

	// How often the settlement job runs
	SettleInterval time.Duration

	// Owner id the singleton role accounts are bound to
	SystemOwnerID int64

	// Currency the ledger keeps its amounts in
	DefaultCurrency string

	// Static exchange rates, "USD=0.92,GBP=1.17" style
	CurrencyRates string

	// Redis address for the rate cache. Empty disables caching
	RedisAddr string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		SchemaAddr:      defaultSchemaAddr,
		Environment:     defaultEnvironment,
		OverheadPercent: defaultOverhead,
		AuthTTLDays:     defaultTTLDays,
		SettleInterval:  defaultSettleInterval,
		SystemOwnerID:   defaultSystemOwnerID,
		DefaultCurrency: defaultDefaultCurrency,
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
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if parsed, err := strconv.Atoi(value); err == nil {
				*o = parsed
			}
		}
	}
	setInt64 := func(o *int64) func(value string) {
		return func(value string) {
			if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
				*o = parsed
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if parsed, err := time.ParseDuration(value); err == nil {
				*o = parsed
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":            setString(&c.ListenAddr),
		"DATABASE_URI":           setString(&c.DatabaseDSN),
		"SCHEMA_ADDRESS":         setString(&c.SchemaAddr),
		"LOG_LEVEL":              setString(&c.LogLevel),
		"ENVIRONMENT":            setString(&c.Environment),
		"AUTHORIZATION_OVERHEAD": setInt(&c.OverheadPercent),
		"AUTHORIZATION_TTL_DAYS": setInt(&c.AuthTTLDays),
		"SETTLE_INTERVAL":        setDuration(&c.SettleInterval),
		"SYSTEM_OWNER_ID":        setInt64(&c.SystemOwnerID),
		"DEFAULT_CURRENCY":       setString(&c.DefaultCurrency),
		"CURRENCY_RATES":         setString(&c.CurrencyRates),
		"REDIS_ADDR":             setString(&c.RedisAddr),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("issuer", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SchemaAddr, "schema", "s", c.SchemaAddr, "Payment schema API address")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.IntVar(&c.OverheadPercent, "overhead", c.OverheadPercent, "Authorization overhead percent")
	fs.IntVar(&c.AuthTTLDays, "ttl-days", c.AuthTTLDays, "Authorization presentment TTL in days")
	fs.DurationVar(&c.SettleInterval, "settle-interval", c.SettleInterval, "Settlement job interval")
	fs.Int64Var(&c.SystemOwnerID, "system-owner", c.SystemOwnerID, "Owner id for system role accounts")
	fs.StringVar(&c.DefaultCurrency, "currency", c.DefaultCurrency, "Ledger currency")
	fs.StringVar(&c.CurrencyRates, "rates", c.CurrencyRates, "Static exchange rates (USD=0.92,...)")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for the rate cache")

	return fs.Parse(args)
}
