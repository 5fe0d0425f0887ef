package fitness

import (
	"sort"
	"time"
)

// Streaks is the response shape for the athlete dashboard streak widget.
type Streaks struct {
	Current int `json:"current_streak"`
	Record  int `json:"record_streak"`
}

// calendarDay truncates t to midnight in its own location. Using time.Date
// rather than Truncate keeps non-UTC days aligned to local midnight.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DistinctDaysDesc collapses timestamps to calendar days in loc, removes
// duplicates and sorts most recent first.
func DistinctDaysDesc(times []time.Time, loc *time.Location) []time.Time {
	seen := make(map[time.Time]bool, len(times))
	days := make([]time.Time, 0, len(times))
	for _, t := range times {
		d := calendarDay(t.In(loc))
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}

// isPreviousDay reports whether older is exactly one calendar day before newer.
func isPreviousDay(newer, older time.Time) bool {
	return calendarDay(newer.AddDate(0, 0, -1)).Equal(older)
}

// ComputeStreaks walks session days most recent first. The current streak is
// the chain of consecutive days ending at today; it is 0 when there is no
// session today. The record streak is the longest chain anywhere in the list.
// Input order and duplicates do not matter; days are taken in today's location.
func ComputeStreaks(sessionTimes []time.Time, today time.Time) Streaks {
	days := DistinctDaysDesc(sessionTimes, today.Location())
	if len(days) == 0 {
		return Streaks{}
	}

	var s Streaks
	running := 1
	leadingChain := true
	s.Record = 1
	for i := 1; i < len(days); i++ {
		if isPreviousDay(days[i-1], days[i]) {
			running++
		} else {
			if leadingChain {
				s.Current = running
				leadingChain = false
			}
			running = 1
		}
		if running > s.Record {
			s.Record = running
		}
	}
	if leadingChain {
		s.Current = running
	}

	if !days[0].Equal(calendarDay(today)) {
		s.Current = 0
	}
	return s
}
