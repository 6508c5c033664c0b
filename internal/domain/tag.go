package domain

import "time"

// TerminalPeriodMonths marks the catch-all period that every tag must end with.
const TerminalPeriodMonths = 999

const (
	MaxTimePeriods     = 10
	MinMultiplier      = 0.05
	MaxMultiplier      = 10.0
	MultiplierStep     = 0.05
	TagNameMinLength   = 3
	TagNameMaxLength   = 50
	DescriptionMaxSize = 1024
)

type TimePeriod struct {
	Months     int     `json:"months"`
	Multiplier float64 `json:"multiplier"`
}

// Tag is a reputation category with its own decay schedule and voting reward.
type Tag struct {
	Key         string       `json:"-"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	VoteReward  float64      `json:"vote_reward"`
	TimePeriods []TimePeriod `json:"time_periods"`
}

// PeriodFor returns the index of the period that applies to a vote aged
// ageMonths. Periods cover consecutive month ranges; the last one is open
// ended, so every non-negative age matches exactly one period.
func (t Tag) PeriodFor(ageMonths int) int {
	if len(t.TimePeriods) == 0 {
		return -1
	}
	last := len(t.TimePeriods) - 1
	upper := 0
	for i, p := range t.TimePeriods[:last] {
		upper += p.Months
		if ageMonths < upper {
			return i
		}
	}
	return last
}

// AgeInMonths counts whole calendar months elapsed from ts to now. A
// timestamp in the future counts as age zero.
func AgeInMonths(ts, now time.Time) int {
	ts = ts.UTC()
	now = now.UTC()
	if !now.After(ts) {
		return 0
	}
	months := (now.Year()-ts.Year())*12 + int(now.Month()) - int(ts.Month())
	// AddDate normalizes short months, so step back until the anniversary has passed
	for months > 0 && ts.AddDate(0, months, 0).After(now) {
		months--
	}
	return months
}
