package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/nkiryanov/cardissuer/internal/logger"
)

const (
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvDevelopment
	defaultSchemaAddr      = "localhost:3000"
	defaultOverhead        = 20
	defaultTTLDays         = 5
	defaultDefaultCurrency = "EUR"
	defaultSystemOwnerID   = 1
)

// Config is the subset of the server configuration the CLI needs. Same
// environment variables, no flags: the CLI arguments are the command itself.
type Config struct {
	LogLevel        string
	Environment     string
	DatabaseDSN     string
	SchemaAddr      string
	OverheadPercent int
	AuthTTLDays     int
	SystemOwnerID   int64
	DefaultCurrency string
	CurrencyRates   string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		Environment:     defaultEnvironment,
		SchemaAddr:      defaultSchemaAddr,
		OverheadPercent: defaultOverhead,
		AuthTTLDays:     defaultTTLDays,
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

	envMap := map[string]func(string){
		"DATABASE_URI":           setString(&c.DatabaseDSN),
		"SCHEMA_ADDRESS":         setString(&c.SchemaAddr),
		"LOG_LEVEL":              setString(&c.LogLevel),
		"ENVIRONMENT":            setString(&c.Environment),
		"AUTHORIZATION_OVERHEAD": setInt(&c.OverheadPercent),
		"AUTHORIZATION_TTL_DAYS": setInt(&c.AuthTTLDays),
		"SYSTEM_OWNER_ID":        setInt64(&c.SystemOwnerID),
		"DEFAULT_CURRENCY":       setString(&c.DefaultCurrency),
		"CURRENCY_RATES":         setString(&c.CurrencyRates),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
