package fitness

import (
	"math/rand"
	"testing"
	"time"
)

// fixedToday is a mid-afternoon timestamp so that session times a few hours
// either side still land on the intended calendar day.
var fixedToday = time.Date(2026, 3, 15, 15, 30, 0, 0, time.UTC)

// daysAgo returns timestamps n calendar days before fixedToday.
func daysAgo(ns ...int) []time.Time {
	out := make([]time.Time, 0, len(ns))
	for _, n := range ns {
		out = append(out, fixedToday.AddDate(0, 0, -n))
	}
	return out
}

func TestComputeStreaks(t *testing.T) {
	cases := []struct {
		name    string
		dates   []time.Time
		current int
		record  int
	}{
		{"empty", nil, 0, 0},
		{"today only", daysAgo(0), 1, 1},
		{"three consecutive ending today", daysAgo(0, 1, 2), 3, 3},
		{"no entry today", daysAgo(2, 3), 0, 2},
		{"short current, longer record", daysAgo(0, 1, 5, 6, 7), 2, 3},
		{"yesterday only", daysAgo(1), 0, 1},
		{"gap right after today", daysAgo(0, 2, 3, 4, 5), 1, 4},
		{"several gaps", daysAgo(0, 1, 3, 4, 5, 9, 10), 2, 3},
		{"all isolated", daysAgo(0, 2, 4, 6), 1, 1},
		{"month boundary", []time.Time{
			time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC),
		}, 0, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeStreaks(tc.dates, fixedToday)
			if got.Current != tc.current || got.Record != tc.record {
				t.Errorf("ComputeStreaks = %+v, want current=%d record=%d", got, tc.current, tc.record)
			}
		})
	}
}

// TestComputeStreaks_DuplicatesAndOrder verifies that several sessions on
// the same day count once and that input order is irrelevant.
func TestComputeStreaks_DuplicatesAndOrder(t *testing.T) {
	dates := []time.Time{
		fixedToday.Add(-2 * time.Hour),
		fixedToday.AddDate(0, 0, -1),
		fixedToday.Add(-1 * time.Hour),
		fixedToday.AddDate(0, 0, -2),
		fixedToday.AddDate(0, 0, -1).Add(3 * time.Hour),
	}
	got := ComputeStreaks(dates, fixedToday)
	if got.Current != 3 || got.Record != 3 {
		t.Errorf("ComputeStreaks = %+v, want current=3 record=3", got)
	}
}

// TestComputeStreaks_Properties checks invariants over random gap patterns:
// current never exceeds record, current is 0 without a session today, and
// the record equals a brute-force longest run.
func TestComputeStreaks_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		present := make([]bool, 30)
		var offsets []int
		for i := range present {
			if rng.Intn(3) > 0 {
				present[i] = true
				offsets = append(offsets, i)
			}
		}
		got := ComputeStreaks(daysAgo(offsets...), fixedToday)

		longest, run := 0, 0
		for _, p := range present {
			if p {
				run++
				if run > longest {
					longest = run
				}
			} else {
				run = 0
			}
		}
		leading := 0
		for _, p := range present {
			if !p {
				break
			}
			leading++
		}

		if got.Record != longest {
			t.Fatalf("iter %d: record = %d, want %d (days %v)", iter, got.Record, longest, offsets)
		}
		if got.Current != leading {
			t.Fatalf("iter %d: current = %d, want %d (days %v)", iter, got.Current, leading, offsets)
		}
		if got.Current > got.Record {
			t.Fatalf("iter %d: current %d exceeds record %d", iter, got.Current, got.Record)
		}
	}
}

func TestDistinctDaysDesc_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 22:00 UTC on the 14th is already the 15th in UTC+3.
	ts := []time.Time{time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)}
	days := DistinctDaysDesc(ts, loc)
	if len(days) != 1 || days[0].Day() != 15 {
		t.Errorf("DistinctDaysDesc = %v, want the 15th", days)
	}
}
