package stats

import (
	"fmt"
	"time"

	"github.com/example/wordbot/pkg/models"
)

// DayBounds returns the local day containing t as [from, to).
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}

// PeriodBounds returns the day, week or month containing asOf. Weeks start on Monday.
func PeriodBounds(scope models.LeaderboardScope, asOf time.Time, loc *time.Location) (time.Time, time.Time, error) {
	dayStart, dayEnd := DayBounds(asOf, loc)
	switch scope {
	case models.ScopeDaily:
		return dayStart, dayEnd, nil
	case models.ScopeWeekly:
		offset := (int(dayStart.Weekday()) + 6) % 7
		from := dayStart.AddDate(0, 0, -offset)
		return from, from.AddDate(0, 0, 7), nil
	case models.ScopeMonthly:
		from := time.Date(dayStart.Year(), dayStart.Month(), 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0), nil
	}
	return time.Time{}, time.Time{}, models.NewValidationError("scope", fmt.Sprintf("%q has no period", scope))
}
