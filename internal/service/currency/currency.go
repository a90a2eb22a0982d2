package currency

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RateSource knows the exchange rate from a foreign currency into the
// ledger's own one. One unit of the foreign currency costs Rate units of ours.
type RateSource interface {
	Rate(ctx context.Context, currency string) (decimal.Decimal, error)
}

// Converter translates schema amounts into the ledger currency.
type Converter struct {
	source          RateSource
	defaultCurrency string
}

func NewConverter(defaultCurrency string, source RateSource) *Converter {
	return &Converter{
		source:          source,
		defaultCurrency: strings.ToUpper(defaultCurrency),
	}
}

// Convert returns the amount in the ledger currency. Amounts already in it
// pass through untouched.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if currency == c.defaultCurrency {
		return amount, nil
	}

	rate, err := c.source.Rate(ctx, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("can't get '%s' rate. Err: %w", currency, err)
	}

	return amount.Mul(rate), nil
}

// FixedRateSource serves rates from a static table. Good enough for a single
// issuing region where rates come from configuration.
type FixedRateSource struct {
	rates map[string]decimal.Decimal
}

// ParseFixedRates builds a source from a "USD=0.92,GBP=1.17" style string.
func ParseFixedRates(s string) (*FixedRateSource, error) {
	rates := make(map[string]decimal.Decimal)

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		currency, rate, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("malformed rate pair: %q", pair)
		}

		value, err := decimal.NewFromString(strings.TrimSpace(rate))
		if err != nil {
			return nil, fmt.Errorf("malformed rate for %q: %w", currency, err)
		}

		rates[strings.ToUpper(strings.TrimSpace(currency))] = value
	}

	return &FixedRateSource{rates: rates}, nil
}

func (s *FixedRateSource) Rate(_ context.Context, currency string) (decimal.Decimal, error) {
	rate, ok := s.rates[strings.ToUpper(currency)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate configured for '%s'", currency)
	}
	return rate, nil
}
