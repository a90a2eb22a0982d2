package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/logger"
)

const defaultRateTTL = 15 * time.Minute

// CachedRateSource keeps rates in redis in front of a slower source. A cache
// failure is never fatal: the origin answer still flows through, only the
// caching is skipped.
type CachedRateSource struct {
	origin RateSource
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedRateSource(origin RateSource, client *redis.Client, l logger.Logger) *CachedRateSource {
	return &CachedRateSource{
		origin: origin,
		client: client,
		ttl:    defaultRateTTL,
		logger: l.With("component", "rate-cache"),
	}
}

func (s *CachedRateSource) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	key := rateKey(currency)

	cached, err := s.client.Get(ctx, key).Result()
	if err == nil {
		rate, parseErr := decimal.NewFromString(cached)
		if parseErr == nil {
			return rate, nil
		}
		s.logger.Warn("Dropping unparsable cached rate", "key", key, "value", cached)
	} else if err != redis.Nil {
		s.logger.Warn("Rate cache read failed", "key", key, "error", err)
	}

	rate, err := s.origin.Rate(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.client.Set(ctx, key, rate.String(), s.ttl).Err(); err != nil {
		s.logger.Warn("Rate cache write failed", "key", key, "error", err)
	}

	return rate, nil
}

func rateKey(currency string) string {
	return fmt.Sprintf("rates:%s", currency)
}
