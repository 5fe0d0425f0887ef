package fitness

import (
	"time"
)

/* ─── Time buckets ───────────────────────────────────────────────────── */

// Bucket is a half-open time range [Start, End) with a display label.
type Bucket struct {
	Label string
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside [Start, End).
func (b Bucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// TrendPoint is one entry of a trend series as returned to the dashboards.
type TrendPoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// MonthlyBuckets returns n buckets oldest first: for i = n-1..0 the
// calendar month containing now − i months, starting on the 1st.
func MonthlyBuckets(now time.Time, n int) []Bucket {
	y, m, _ := now.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	buckets := make([]Bucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		// Step from the 1st so AddDate never overflows into the next month
		// (e.g. March 31 − 1 month).
		start := first.AddDate(0, -i, 0)
		buckets = append(buckets, Bucket{
			Label: start.Format("Jan"),
			Start: start,
			End:   start.AddDate(0, 1, 0),
		})
	}
	return buckets
}

// DailyBuckets returns n single-day buckets oldest first, ending with the
// calendar day containing now.
func DailyBuckets(now time.Time, n int) []Bucket {
	today := calendarDay(now)
	buckets := make([]Bucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		buckets = append(buckets, Bucket{
			Label: start.Format("Mon"),
			Start: start,
			End:   start.AddDate(0, 0, 1),
		})
	}
	return buckets
}

// CountByBucket counts how many timestamps fall in each bucket.
func CountByBucket(buckets []Bucket, times []time.Time) []TrendPoint {
	points := make([]TrendPoint, len(buckets))
	for i, b := range buckets {
		points[i] = TrendPoint{Label: b.Label, Count: CountInRange(times, b.Start, b.End)}
	}
	return points
}

// CountInRange counts timestamps in [start, end).
func CountInRange(times []time.Time, start, end time.Time) int {
	return countWhere(times, func(t time.Time) bool {
		return !t.Before(start) && t.Before(end)
	})
}

// CountSince counts timestamps at or after since.
func CountSince(times []time.Time, since time.Time) int {
	return countWhere(times, func(t time.Time) bool { return !t.Before(since) })
}

// DaysAgo is the start of an "N days" window: now − n days, same clock as now.
func DaysAgo(now time.Time, n int) time.Time {
	return now.AddDate(0, 0, -n)
}

func countWhere(times []time.Time, pred func(time.Time) bool) int {
	n := 0
	for _, t := range times {
		if pred(t) {
			n++
		}
	}
	return n
}

/* ─── Rates ──────────────────────────────────────────────────────────── */

// ComplianceRate is completed / (activeEnrollees × plannedSessions) × 100,
// capped at 100 and rounded to decimals. A zero or negative denominator
// yields 0.
func ComplianceRate(completed, activeEnrollees, plannedSessions, decimals int) float64 {
	expected := activeEnrollees * plannedSessions
	if expected <= 0 || completed <= 0 {
		return 0
	}
	rate := float64(completed) / float64(expected) * 100
	if rate > 100 {
		rate = 100
	}
	return roundTo(rate, decimals)
}

// EngagementRate is activeUsers / eligibleUsers × 100 rounded to 1 decimal,
// 0 when there are no eligible users.
func EngagementRate(activeUsers, eligibleUsers int) float64 {
	return Percent(activeUsers, eligibleUsers, 1)
}

// Percent is part / whole × 100 rounded to decimals, 0 when whole is 0.
func Percent(part, whole, decimals int) float64 {
	if whole <= 0 {
		return 0
	}
	return roundTo(float64(part)/float64(whole)*100, decimals)
}

// DistinctCount returns the number of distinct ids.
func DistinctCount[T comparable](ids []T) int {
	seen := make(map[T]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}

/* ─── Training aggregates ────────────────────────────────────────────── */

// SessionRecord is the aggregator's view of a completed training session.
type SessionRecord struct {
	AthleteID       int
	CompletedAt     time.Time
	DurationMinutes int
}

// TrainingTotals summarises a list of sessions.
type TrainingTotals struct {
	TotalSessions   int        `json:"total_sessions"`
	TotalMinutes    int        `json:"total_minutes"`
	TotalHours      float64    `json:"total_hours"`
	AverageDuration float64    `json:"average_duration"`
	LastSessionDate *time.Time `json:"last_session_date"`
}

// SummarizeSessions folds sessions into totals. Average duration is rounded
// to whole minutes, hours to one decimal.
func SummarizeSessions(sessions []SessionRecord) TrainingTotals {
	var tot TrainingTotals
	for _, s := range sessions {
		tot.TotalSessions++
		tot.TotalMinutes += s.DurationMinutes
		if tot.LastSessionDate == nil || s.CompletedAt.After(*tot.LastSessionDate) {
			last := s.CompletedAt
			tot.LastSessionDate = &last
		}
	}
	tot.TotalHours = roundTo(float64(tot.TotalMinutes)/60, 1)
	if tot.TotalSessions > 0 {
		tot.AverageDuration = roundTo(float64(tot.TotalMinutes)/float64(tot.TotalSessions), 0)
	}
	return tot
}

// SetRecord is one logged set. WeightKG is nil for bodyweight work.
type SetRecord struct {
	Reps     int
	WeightKG *float64
}

// ProgressPoint is an exercise's performance in one session.
type ProgressPoint struct {
	SessionID     int       `json:"session_id"`
	Date          time.Time `json:"date"`
	MaxWeight     *float64  `json:"max_weight"`
	TotalReps     int       `json:"total_reps"`
	TotalVolume   float64   `json:"total_volume"`
	SetsCompleted int       `json:"sets_completed"`
}

// ProgressStats summarises the progress points of one exercise.
type ProgressStats struct {
	PersonalRecord *float64   `json:"personal_record"`
	TotalSessions  int        `json:"total_sessions"`
	AverageVolume  float64    `json:"average_volume"`
	AverageWeight  *float64   `json:"average_weight"`
	LastPerformed  *time.Time `json:"last_performed"`
}

// BuildProgressPoint aggregates the sets of one exercise within a session.
func BuildProgressPoint(sessionID int, date time.Time, sets []SetRecord) ProgressPoint {
	p := ProgressPoint{SessionID: sessionID, Date: date, SetsCompleted: len(sets)}
	for _, s := range sets {
		p.TotalReps += s.Reps
		if s.WeightKG == nil {
			continue
		}
		w := *s.WeightKG
		p.TotalVolume += float64(s.Reps) * w
		if p.MaxWeight == nil || w > *p.MaxWeight {
			p.MaxWeight = &w
		}
	}
	return p
}

// SummarizeProgress computes the PR and averages over points. Averages are
// rounded to 2 decimals; weight fields stay nil when no set carried a weight.
func SummarizeProgress(points []ProgressPoint) ProgressStats {
	st := ProgressStats{TotalSessions: len(points)}
	var volumeSum, weightSum float64
	weighted := 0
	for _, p := range points {
		volumeSum += p.TotalVolume
		if st.LastPerformed == nil || p.Date.After(*st.LastPerformed) {
			d := p.Date
			st.LastPerformed = &d
		}
		if p.MaxWeight == nil {
			continue
		}
		weighted++
		weightSum += *p.MaxWeight
		if st.PersonalRecord == nil || *p.MaxWeight > *st.PersonalRecord {
			pr := *p.MaxWeight
			st.PersonalRecord = &pr
		}
	}
	if len(points) > 0 {
		st.AverageVolume = roundTo(volumeSum/float64(len(points)), 2)
	}
	if weighted > 0 {
		avg := roundTo(weightSum/float64(weighted), 2)
		st.AverageWeight = &avg
	}
	return st
}
