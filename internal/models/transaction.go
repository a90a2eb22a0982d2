package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CodeLength is the length of the correlation id the schema sends us.
// Service transactions (settlement, load money) generate codes of the same
// length.
const CodeLength = 9

// Transaction statuses. Single letters, stored as is.
// The pair (code, status) is unique and is the sole duplicate defense: two
// deliveries of the same webhook collide on it and only one insert wins.
const (
	StatusAuthorization   = "a"
	StatusPresentment     = "p"
	StatusMoneyShortage   = "z"
	StatusPresentmentLate = "t"
	StatusRollback        = "r"
	StatusLoadMoney       = "l"
	StatusSettlement      = "s"
)

var statusNames = map[string]string{
	StatusAuthorization:   "Authorization",
	StatusPresentment:     "Presentment",
	StatusMoneyShortage:   "Money shortage",
	StatusPresentmentLate: "Presentment exceeded TTL",
	StatusRollback:        "Rollback",
	StatusLoadMoney:       "Load money",
	StatusSettlement:      "Settle day transactions",
}

// StatusName returns the human readable status name or the raw status for
// unknown values.
func StatusName(status string) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return status
}

// Transaction is a logical money movement event. Immutable once written:
// corrections are modeled as new compensating transactions.
type Transaction struct {
	ID        int64
	Code      string
	Status    string
	CreatedAt time.Time

	// Description is a short human readable summary, RawDetails keeps the
	// original schema payload encoded in base64
	Description string
	RawDetails  string

	// Transfers are loaded on demand and may be empty
	Transfers []Transfer
}

// Transfer is an atomic leg of a transaction. For every transaction the sum
// of its transfers is zero.
type Transfer struct {
	ID            int64
	TransactionID int64
	AccountID     int64
	Amount        decimal.Decimal
}
