package donations

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/pawbridge/console-backend/internal/firebase/structs"
)

// Progress of a campaign. Raised is the sum of transactions; RecordedAmount is the stored running total.
type Progress struct {
	Goal           float64 `json:"goal"`
	Raised         float64 `json:"raised"`
	Percent        int     `json:"percent"`
	Label          string  `json:"label"`
	Funded         bool    `json:"funded"`
	DonateEnabled  bool    `json:"donateEnabled"`
	RecordedAmount float64 `json:"recordedAmount"`
	Drift          bool    `json:"drift"`
}

// ComputeProgress computes progress towards goal.
func ComputeProgress(goal, raised, recorded float64) Progress {
	p := Progress{Goal: goal, Raised: raised, RecordedAmount: recorded}

	if goal > 0 {
		p.Percent = int(math.Min(100, math.Round(raised/goal*100)))
		p.Funded = raised >= goal
	}
	p.DonateEnabled = !p.Funded
	p.Drift = math.Abs(recorded-raised) > 0.005

	if p.Funded {
		p.Label = "100% Funded"
	} else {
		p.Label = fmt.Sprintf("%d%% Complete", p.Percent)
	}

	return p
}

// Raised sums the transactions of a campaign.
func Raised(d structs.DonationRequest) float64 {
	var sum float64
	for _, t := range d.Transactions {
		sum += float64(t.Amount)
	}
	return sum
}

// Ratio of raised to goal, zero without goal.
func Ratio(d structs.DonationRequest) float64 {
	if d.GoalAmount <= 0 {
		return 0
	}
	return Raised(d) / float64(d.GoalAmount)
}

// ProgressOf computes progress of a campaign.
func ProgressOf(d structs.DonationRequest) Progress {
	return ComputeProgress(float64(d.GoalAmount), Raised(d), float64(d.CurrentAmount))
}

// Truncate shortens s to n runes followed by an ellipsis.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
