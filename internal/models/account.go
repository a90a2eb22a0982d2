package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CardIDLength is the length of the external account identifier. Role
// accounts reuse the role tag as card id, so tags must fit as well.
const CardIDLength = 8

// Account kinds. Every movement of money ends up on exactly one of them.
// The available account holds money the user may spend right now, the
// reserved one holds authorization holds waiting for presentment.
const (
	AccountKindAvailable = "available"
	AccountKindReserved  = "reserved"
)

// User account roles. Settlements, revenue and money loads are processed the
// same way as regular payments: by transfering amounts between accounts. The
// non-user roles are singleton system accounts whose total amount is not
// managed by us.
const (
	RoleRealUser           = "user"
	RoleInnerSettlement    = "is"
	RoleExternalLoadMoney  = "el"
	RoleExternalSettlement = "es"
	RoleRevenue            = "rev"
)

// SystemRoles lists every singleton role that has to exist before the service
// may process presentments or settlements.
var SystemRoles = []string{
	RoleInnerSettlement,
	RoleExternalLoadMoney,
	RoleExternalSettlement,
	RoleRevenue,
}

// Account is a single balance bucket. Its amount changes only by applying
// transfers, never by direct writes.
type Account struct {
	ID            int64
	UserAccountID int64
	Kind          string
	Amount        decimal.Decimal
}

// UserAccount is the externally addressable entity: a cardholder or one of
// the system role accounts. It consolidates the available sub-account and,
// for real users, the reserved one.
type UserAccount struct {
	ID        int64
	CardID    string
	OwnerID   int64
	Role      string
	CreatedAt time.Time

	Available Account
	// Reserved is nil for role accounts, they own only the available bucket
	Reserved *Account
}

// AvailableAmount is the money the user may spend right now.
func (a UserAccount) AvailableAmount() decimal.Decimal {
	return a.Available.Amount
}

// TotalAmount is available plus reserved money.
func (a UserAccount) TotalAmount() decimal.Decimal {
	total := a.Available.Amount
	if a.Reserved != nil {
		total = total.Add(a.Reserved.Amount)
	}
	return total
}
