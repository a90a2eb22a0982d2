package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/cardissuer/internal/alert"
	"github.com/nkiryanov/cardissuer/internal/logger"
	"github.com/nkiryanov/cardissuer/internal/metrics"
	"github.com/nkiryanov/cardissuer/internal/models"
	"github.com/nkiryanov/cardissuer/internal/repository"
	"github.com/nkiryanov/cardissuer/internal/service/balance"
)

const (
	defaultRunInterval = 24 * time.Hour
	defaultTTLDays     = 5
)

// SchemaAPI is the external payment network side of settlement: it accepts
// the accumulated debt. The call is allowed to fail, the job retries the full
// amount on the next run.
type SchemaAPI interface {
	TransferDebt(ctx context.Context, amount decimal.Decimal) error
}

type ledgerService interface {
	RollbackLatePresentment(ctx context.Context, code string) error
	SettleDayTransactions(ctx context.Context, amount decimal.Decimal, fromAccountID int64, toAccountID int64) (models.Transaction, error)
}

type accountService interface {
	GetOrCreateRoleAccount(ctx context.Context, role string) (models.UserAccount, error)
}

type Config struct {
	// How often the job runs. Zero means daily
	Interval time.Duration

	// Days an authorization may wait for its presentment. Zero means the
	// default five
	TTLDays int
}

// Job is the periodic settlement process: it rolls back authorizations that
// outlived their presentment window and pushes the accumulated settlement
// debt to the schema.
type Job struct {
	interval time.Duration
	ttl      time.Duration

	storage  repository.Storage
	ledger   ledgerService
	accounts accountService
	schema   SchemaAPI
	alerter  alert.Alerter
	logger   logger.Logger

	now func() time.Time
}

func NewJob(cfg Config, storage repository.Storage, ledger ledgerService, accounts accountService, schema SchemaAPI, alerter alert.Alerter, l logger.Logger) *Job {
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultRunInterval
	}

	ttlDays := cfg.TTLDays
	if ttlDays == 0 {
		ttlDays = defaultTTLDays
	}

	return &Job{
		interval: interval,
		ttl:      time.Duration(ttlDays) * 24 * time.Hour,
		storage:  storage,
		ledger:   ledger,
		accounts: accounts,
		schema:   schema,
		alerter:  alerter,
		logger:   l.With("component", "settlement"),
		now:      time.Now,
	}
}

// Run executes the job on a ticker until the context is cancelled. The
// returned channel closes when the loop has fully stopped.
func (j *Job) Run(ctx context.Context) <-chan struct{} {
	stopped := make(chan struct{})
	j.logger.Debug("Starting settlement job", "interval", j.interval, "ttl", j.ttl)

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				j.logger.Debug("Settlement job stopped by context")
				return

			case <-ticker.C:
				if err := j.RunOnce(ctx); err != nil {
					j.logger.Error("Settlement run failed", "error", err)
				}
			}
		}
	}()

	return stopped
}

// RunOnce performs both settlement steps. Each step is idempotent, a crashed
// or partially failed run is safe to repeat.
func (j *Job) RunOnce(ctx context.Context) error {
	if err := j.rollbackOutdated(ctx); err != nil {
		metrics.SettlementRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("can't rollback outdated authorizations. Err: %w", err)
	}

	if err := j.settleDebt(ctx); err != nil {
		metrics.SettlementRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("can't settle debt. Err: %w", err)
	}

	metrics.SettlementRuns.WithLabelValues("ok").Inc()
	return nil
}

// rollbackOutdated releases holds whose presentment never arrived. The
// window is the 24 hours ending at (now - TTL): each daily run covers the
// day that just crossed the deadline, reruns find the codes already rolled
// back and skip them.
func (j *Job) rollbackOutdated(ctx context.Context) error {
	deadline := balance.StartOfDay(j.now().Add(-j.ttl))
	from := deadline.Add(-24 * time.Hour)

	codes, err := j.storage.Transaction().ListUnpresentedCodes(ctx, from, deadline)
	if err != nil {
		return fmt.Errorf("can't list unpresented codes. Err: %w", err)
	}

	for _, code := range codes {
		if err := j.ledger.RollbackLatePresentment(ctx, code); err != nil {
			return fmt.Errorf("can't rollback code '%s'. Err: %w", code, err)
		}

		metrics.OutdatedRollbacks.Inc()
		j.logger.Info("Rolled back outdated authorization", "code", code)
	}

	return nil
}

// settleDebt pushes the accumulated inner settlement balance to the schema
// and, only after the schema accepted it, logs the matching internal
// transfer. Schema failure alarms and leaves the ledger untouched so the
// next run retries the full amount.
func (j *Job) settleDebt(ctx context.Context) error {
	inner, err := j.accounts.GetOrCreateRoleAccount(ctx, models.RoleInnerSettlement)
	if err != nil {
		return fmt.Errorf("can't get inner settlement account. Err: %w", err)
	}
	external, err := j.accounts.GetOrCreateRoleAccount(ctx, models.RoleExternalSettlement)
	if err != nil {
		return fmt.Errorf("can't get external settlement account. Err: %w", err)
	}

	debt := inner.Available.Amount
	if debt.IsZero() {
		j.logger.Debug("No settlement debt accumulated, nothing to transfer")
		return nil
	}

	if err := j.schema.TransferDebt(ctx, debt); err != nil {
		j.alerter.Alarm(ctx, "Schema rejected settlement debt", "amount", debt, "error", err)
		return fmt.Errorf("schema rejected debt transfer. Err: %w", err)
	}

	settlement, err := j.ledger.SettleDayTransactions(ctx, debt, inner.Available.ID, external.Available.ID)
	if err != nil {
		// the schema already took the money, losing the internal record
		// needs a human
		j.alerter.Alarm(ctx, "Debt transferred but not logged", "amount", debt, "error", err)
		return err
	}

	j.logger.Info("Settlement debt transferred", "amount", debt, "code", settlement.Code)
	return nil
}
