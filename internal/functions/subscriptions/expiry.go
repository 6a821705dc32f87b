package subscriptions

import (
	"strings"

	"github.com/pawbridge/console-backend/internal/constants"
)

// Notification window in days before expiry.
const reminderWindow = 7

// Expiry of a subscription started at startMillis, as seen at nowMillis.
type Expiry struct {
	ExpiresAt int64 `json:"expiresAt"`
	DaysLeft  int   `json:"daysLeft"`
	CanNotify bool  `json:"canNotify"`
}

// PlanDays is the length of the plan: 365 days for yearly, 30 for anything else.
func PlanDays(plan string) int64 {
	if strings.EqualFold(strings.TrimSpace(plan), "yearly") {
		return 365
	}
	return 30
}

// ComputeExpiry computes expiry and whole days left, rounded up.
func ComputeExpiry(plan string, startMillis, nowMillis int64) Expiry {
	e := Expiry{ExpiresAt: startMillis + PlanDays(plan)*constants.Day}
	e.DaysLeft = ceilDays(e.ExpiresAt - nowMillis)
	e.CanNotify = e.DaysLeft > 0 && e.DaysLeft <= reminderWindow
	return e
}

func ceilDays(ms int64) int {
	days := ms / constants.Day
	if ms%constants.Day > 0 {
		days++
	}
	return int(days)
}
