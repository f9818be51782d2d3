package entitlement

import (
	"github.com/summari/backend/internal/models"
)

// DefaultFreeDailyLimit is the number of free summaries per calendar day.
const DefaultFreeDailyLimit = 3

// Decision is the outcome of a quota check. Unlimited is a tagged state
// rather than a magic remaining value; WireRemaining converts to the
// published -1 sentinel at the API boundary.
type Decision struct {
	Allowed   bool
	Unlimited bool
	Remaining int
}

// WireRemaining returns the remaining count in the wire format, where -1
// means unlimited.
func (d Decision) WireRemaining() int {
	if d.Unlimited {
		return -1
	}
	return d.Remaining
}

// Decide is the pure quota policy. It must be called with a freshly loaded
// (normalized) record: it does not re-check expiry or day rollover itself.
func Decide(rec *models.EntitlementRecord, freeDailyLimit int) Decision {
	if rec.IsPremium {
		return Decision{Allowed: true, Unlimited: true}
	}

	remaining := freeDailyLimit - rec.UsageCount
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   remaining > 0,
		Remaining: remaining,
	}
}
