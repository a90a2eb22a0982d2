package ledger

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/cardissuer/internal/models"
)

// CodeForDate builds a deterministic code for service transactions like day
// settlements: the uppercased status letter plus the date. Determinism is the
// point: repeated runs on the same day produce the same code and collide on
// the (code, status) constraint.
func CodeForDate(status string, date time.Time) string {
	return strings.ToUpper(status) + date.Format("20060102")
}

func CodeForToday(status string) string {
	return CodeForDate(status, time.Now())
}

// NewCode generates a fresh transaction code for operations that have no
// external correlation id, like loading money.
func NewCode() string {
	id := uuid.New()
	return strings.ToUpper(hex.EncodeToString(id[:]))[:models.CodeLength]
}
