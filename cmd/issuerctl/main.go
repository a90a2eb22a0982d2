package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/alert"
	"github.com/nkiryanov/cardissuer/internal/db"
	"github.com/nkiryanov/cardissuer/internal/logger"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/repository/postgres"
	"github.com/nkiryanov/cardissuer/internal/service/account"
	"github.com/nkiryanov/cardissuer/internal/service/balance"
	"github.com/nkiryanov/cardissuer/internal/service/currency"
	"github.com/nkiryanov/cardissuer/internal/service/ledger"
	"github.com/nkiryanov/cardissuer/internal/service/schema"
	"github.com/nkiryanov/cardissuer/internal/service/settlement"
)

const usage = `Usage:
  issuerctl init-accounts
  issuerctl create-account <owner_id> <card_id>
  issuerctl load-money <card_id> <amount> <currency>
  issuerctl settle-and-rollback

Configuration comes from the same environment variables the server reads.
`

type app struct {
	accounts   *account.Service
	ledger     *ledger.Service
	balances   *balance.Service
	converter  *currency.Converter
	settlement *settlement.Job
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string) error {
	c := NewConfig()
	if err := c.LoadDotEnv(os.Getwd); err != nil {
		return fmt.Errorf("can't read .env file: %w", err)
	}
	c.LoadEnv(os.Getenv)

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}

	switch command {
	case "init-accounts":
		return a.initAccounts(ctx)
	case "create-account":
		return a.createAccount(ctx, args)
	case "load-money":
		return a.loadMoney(ctx, args)
	case "settle-and-rollback":
		return a.settlement.RunOnce(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func newApp(ctx context.Context, c *Config) (*app, error) {
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	storage := postgres.NewStorage(pool)

	rates, err := currency.ParseFixedRates(c.CurrencyRates)
	if err != nil {
		return nil, fmt.Errorf("error while parsing currency rates. Err: %w", err)
	}

	accounts := account.NewService(account.Config{SystemOwnerID: c.SystemOwnerID}, storage)
	ledgerService := ledger.NewService(ledger.Config{OverheadPercent: c.OverheadPercent}, storage)

	job := settlement.NewJob(
		settlement.Config{TTLDays: c.AuthTTLDays},
		storage,
		ledgerService,
		accounts,
		schema.NewClient(c.SchemaAddr, log),
		alert.NewLogAlerter(log),
		log,
	)

	return &app{
		accounts:   accounts,
		ledger:     ledgerService,
		balances:   balance.NewService(storage),
		converter:  currency.NewConverter(c.DefaultCurrency, rates),
		settlement: job,
	}, nil
}

func (a *app) initAccounts(ctx context.Context) error {
	if err := a.accounts.EnsureRoleAccounts(ctx); err != nil {
		return err
	}

	fmt.Println("Role accounts are in place")
	return nil
}

func (a *app) createAccount(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("create-account wants <owner_id> <card_id>")
	}

	ownerID, err := parseInt64(args[0])
	if err != nil {
		return fmt.Errorf("bad owner id %q: %w", args[0], err)
	}

	created, err := a.accounts.CreateUserAccount(ctx, ownerID, args[1])
	if err != nil {
		return err
	}

	fmt.Printf("Created account %d for card %s\n", created.ID, created.CardID)
	return nil
}

func (a *app) loadMoney(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("load-money wants <card_id> <amount> <currency>")
	}

	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("bad amount %q: %w", args[1], err)
	}

	converted, err := a.converter.Convert(ctx, amount, args[2])
	if err != nil {
		return err
	}

	user, err := a.accounts.GetByCardID(ctx, args[0])
	if err != nil {
		return err
	}
	external, err := a.accounts.GetOrCreateRoleAccount(ctx, models.RoleExternalLoadMoney)
	if err != nil {
		return err
	}

	loaded, err := a.ledger.LoadMoney(ctx, converted, external.Available.ID, user.Available.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %s onto card %s, transaction %s\n", converted.String(), user.CardID, loaded.Code)

	amounts, err := a.balances.Amounts(ctx, user.ID)
	if err == nil {
		fmt.Printf("Balance now: total %s, available %s\n", amounts.Total.String(), amounts.Available.String())
	}

	return nil
}
