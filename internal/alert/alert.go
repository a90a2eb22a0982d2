package alert

import (
	"context"

	"github.com/nkiryanov/cardissuer/internal/logger"
)

// Alerter delivers operator alarms for conditions that need a human:
// settlement failures, schema debts that can't be paid, broken bootstrap.
type Alerter interface {
	Alarm(ctx context.Context, msg string, args ...any)
}

// LogAlerter raises alarms through the structured log at error level.
type LogAlerter struct {
	logger logger.Logger
}

func NewLogAlerter(l logger.Logger) *LogAlerter {
	return &LogAlerter{logger: l.With("component", "alert")}
}

func (a *LogAlerter) Alarm(_ context.Context, msg string, args ...any) {
	a.logger.Error(msg, args...)
}

// Fanout delivers every alarm to all configured alerters.
type Fanout []Alerter

func (f Fanout) Alarm(ctx context.Context, msg string, args ...any) {
	for _, a := range f {
		a.Alarm(ctx, msg, args...)
	}
}
