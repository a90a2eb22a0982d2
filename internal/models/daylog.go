package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountDayLog pins an account balance at the start of a calendar day.
// Written once per (account, day) and never updated: all later changes come
// from transfers timestamped that day or later, so the log stays an exact
// anchor for point-in-time balance reconstruction.
type AccountDayLog struct {
	ID        int64
	AccountID int64
	Date      time.Time
	Amount    decimal.Decimal
}
