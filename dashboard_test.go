package main

import (
	"testing"
	"time"

	"yallafit/go-api/internal/fitness"
)

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func floatPtr(v float64) *float64 { return &v }

/* ─── Athlete dashboard ──────────────────────────────────────────────── */

func TestBuildSportifActivity(t *testing.T) {
	now := at(2026, 3, 15, 18) // Sunday
	sessions := []fitness.SessionRecord{
		{AthleteID: 1, CompletedAt: at(2026, 3, 15, 10), DurationMinutes: 45},
		{AthleteID: 1, CompletedAt: at(2026, 3, 14, 9), DurationMinutes: 30},
		{AthleteID: 1, CompletedAt: at(2026, 3, 13, 7), DurationMinutes: 60},
		{AthleteID: 1, CompletedAt: at(2026, 3, 10, 19), DurationMinutes: 40},
		{AthleteID: 1, CompletedAt: at(2026, 3, 5, 8), DurationMinutes: 50},
		{AthleteID: 1, CompletedAt: at(2026, 3, 4, 8), DurationMinutes: 50},
		{AthleteID: 1, CompletedAt: at(2026, 3, 3, 8), DurationMinutes: 50},
		{AthleteID: 1, CompletedAt: at(2026, 3, 2, 8), DurationMinutes: 50},
		{AthleteID: 1, CompletedAt: at(2026, 3, 1, 8), DurationMinutes: 50},
	}

	a := buildSportifActivity(now, sessions)
	if a.WeeklySessions != 4 {
		t.Errorf("expected 4 weekly sessions, got %d", a.WeeklySessions)
	}
	if a.WeeklyMinutes != 175 {
		t.Errorf("expected 175 weekly minutes, got %d", a.WeeklyMinutes)
	}
	if a.WeeklyGoal != weeklySessionGoal {
		t.Errorf("expected weekly goal %d, got %d", weeklySessionGoal, a.WeeklyGoal)
	}
	if a.CurrentStreak != 3 || a.RecordStreak != 5 {
		t.Errorf("expected streaks 3/5, got %d/%d", a.CurrentStreak, a.RecordStreak)
	}

	wantDays := []fitness.TrendPoint{
		{Label: "Mon", Count: 0}, {Label: "Tue", Count: 1}, {Label: "Wed", Count: 0},
		{Label: "Thu", Count: 0}, {Label: "Fri", Count: 1}, {Label: "Sat", Count: 1},
		{Label: "Sun", Count: 1},
	}
	if len(a.Last7Days) != len(wantDays) {
		t.Fatalf("expected 7 days, got %d", len(a.Last7Days))
	}
	for i, want := range wantDays {
		if a.Last7Days[i] != want {
			t.Errorf("day %d: expected %+v, got %+v", i, want, a.Last7Days[i])
		}
	}
}

func TestBuildSportifActivity_NoSessions(t *testing.T) {
	a := buildSportifActivity(at(2026, 3, 15, 18), nil)
	if a.WeeklySessions != 0 || a.CurrentStreak != 0 || a.RecordStreak != 0 {
		t.Errorf("expected zero activity, got %+v", a)
	}
	if len(a.Last7Days) != 7 {
		t.Errorf("expected 7 empty days, got %d", len(a.Last7Days))
	}
}

func TestBuildBodySummary(t *testing.T) {
	p := athleteProfile{HeightM: floatPtr(1.75), WeightKG: floatPtr(80)}
	recent := []biometricMeasurement{
		{MeasuredAt: at(2026, 3, 10, 8), WeightKG: 72, BodyFatPercent: floatPtr(18)},
		{MeasuredAt: at(2026, 2, 10, 8), WeightKG: 74},
		{MeasuredAt: at(2026, 1, 10, 8), WeightKG: 75.5},
	}

	b := buildBodySummary(p, recent)
	if b.CurrentWeightKG == nil || *b.CurrentWeightKG != 72 {
		t.Fatalf("expected current weight 72, got %v", b.CurrentWeightKG)
	}
	if b.BodyFatPercent == nil || *b.BodyFatPercent != 18 {
		t.Errorf("expected body fat 18, got %v", b.BodyFatPercent)
	}
	if b.BMI == nil || *b.BMI != 23.5 || *b.BMICategory != fitness.BMINormal {
		t.Errorf("expected BMI 23.5 normal, got %v %v", b.BMI, b.BMICategory)
	}
	if b.WeightChangeKG == nil || *b.WeightChangeKG != -3.5 {
		t.Errorf("expected change -3.5, got %v", b.WeightChangeKG)
	}
	if len(b.History) != 3 || b.History[0].Label != "W1" || b.History[0].WeightKG != 75.5 || b.History[2].Label != "W3" {
		t.Errorf("expected oldest-first history W1..W3, got %+v", b.History)
	}
	if recent[0].WeightKG != 72 {
		t.Error("input slice was reordered")
	}
}

func TestBuildBodySummary_ProfileFallback(t *testing.T) {
	p := athleteProfile{HeightM: floatPtr(1.75), WeightKG: floatPtr(80)}
	b := buildBodySummary(p, nil)
	if b.CurrentWeightKG == nil || *b.CurrentWeightKG != 80 {
		t.Fatalf("expected profile weight 80, got %v", b.CurrentWeightKG)
	}
	if b.BMI == nil || *b.BMI != 26.1 || *b.BMICategory != fitness.BMIOverweight {
		t.Errorf("expected BMI 26.1 overweight, got %v %v", b.BMI, b.BMICategory)
	}
	if b.WeightChangeKG != nil || b.LastMeasurement != nil {
		t.Errorf("expected no change or measurement date, got %+v", b)
	}
	if b.History == nil || len(b.History) != 0 {
		t.Errorf("expected empty history, got %v", b.History)
	}
}

func TestBuildBodySummary_NoData(t *testing.T) {
	b := buildBodySummary(athleteProfile{}, nil)
	if b.CurrentWeightKG != nil || b.BMI != nil {
		t.Errorf("expected empty summary, got %+v", b)
	}
}

/* ─── Coach dashboard ────────────────────────────────────────────────── */

func TestBuildCoachDashboard(t *testing.T) {
	programmes := []coachProgrammeRow{
		{ID: 1, Title: "Strength", PlannedSessions: 4},
		{ID: 2, Title: "Cardio", PlannedSessions: 2},
		{ID: 3, Title: "Mobility", PlannedSessions: 3},
	}
	early, late := at(2026, 3, 1, 9), at(2026, 3, 12, 9)
	enrollments := []coachEnrollmentRow{
		{AthleteID: 10, FullName: "Amina", ProgrammeID: 1, Completed: 3, LastActive: &early},
		{AthleteID: 11, FullName: "Karim", ProgrammeID: 1, Completed: 1},
		{AthleteID: 10, FullName: "Amina", ProgrammeID: 2, Completed: 2, LastActive: &late},
	}

	d := buildCoachDashboard(programmes, enrollments)
	if d.TotalProgrammes != 3 || d.ActiveProgrammes != 2 {
		t.Errorf("expected 3 programmes / 2 active, got %d / %d", d.TotalProgrammes, d.ActiveProgrammes)
	}
	if d.TotalAthletes != 2 || d.TotalSessions != 6 {
		t.Errorf("expected 2 athletes / 6 sessions, got %d / %d", d.TotalAthletes, d.TotalSessions)
	}
	if d.ComplianceRate != 60 {
		t.Errorf("expected overall compliance 60, got %v", d.ComplianceRate)
	}

	wantRates := map[int]float64{1: 50, 2: 100, 3: 0}
	for _, p := range d.Programmes {
		if p.CompletionRate != wantRates[p.ID] {
			t.Errorf("programme %d: expected %v, got %v", p.ID, wantRates[p.ID], p.CompletionRate)
		}
	}

	if len(d.Athletes) != 2 {
		t.Fatalf("expected 2 athletes, got %d", len(d.Athletes))
	}
	amina := d.Athletes[0]
	if amina.Compliance != 83 || amina.Completed != 5 {
		t.Errorf("expected Amina 5 sessions at 83%%, got %d at %v", amina.Completed, amina.Compliance)
	}
	if len(amina.Programmes) != 2 || amina.Programmes[1] != "Cardio" {
		t.Errorf("unexpected programmes %v", amina.Programmes)
	}
	if amina.LastActive == nil || !amina.LastActive.Equal(late) {
		t.Errorf("expected last active %v, got %v", late, amina.LastActive)
	}
	if d.Athletes[1].Compliance != 25 {
		t.Errorf("expected Karim at 25%%, got %v", d.Athletes[1].Compliance)
	}
}

func TestBuildCoachDashboard_Empty(t *testing.T) {
	d := buildCoachDashboard(nil, nil)
	if d.ComplianceRate != 0 || d.Programmes == nil || d.Athletes == nil {
		t.Errorf("expected zero dashboard with empty lists, got %+v", d)
	}
}

/* ─── Admin stats ────────────────────────────────────────────────────── */

func TestBuildAdminStats(t *testing.T) {
	now := at(2026, 3, 15, 12)
	counts := adminCounts{SportifCount: 4, TotalProgrammes: 5, PublicProgrammes: 3}
	act := adminActivity{
		Sessions: []fitness.SessionRecord{
			{AthleteID: 1, CompletedAt: at(2026, 3, 14, 8)},
			{AthleteID: 1, CompletedAt: at(2026, 3, 1, 8)},
			{AthleteID: 2, CompletedAt: at(2026, 2, 20, 8)},
			{AthleteID: 3, CompletedAt: at(2026, 1, 5, 8)},
		},
		NutritionPlans: []time.Time{at(2026, 2, 1, 8)},
		PhotoAnalyses:  []time.Time{at(2026, 3, 10, 8)},
		NewUsers:       []time.Time{at(2026, 3, 2, 8), at(2025, 12, 20, 8)},
	}

	s := buildAdminStats(now, counts, act)
	if s.PrivateProgrammes != 2 {
		t.Errorf("expected 2 private programmes, got %d", s.PrivateProgrammes)
	}
	if s.ActiveUsersLast30Days != 2 || s.EngagementRate != 50 {
		t.Errorf("expected 2 active users at 50%%, got %d at %v", s.ActiveUsersLast30Days, s.EngagementRate)
	}
	if s.SessionsLast30Days != 3 || s.UsersLast30Days != 1 || s.NutritionLast30Days != 0 || s.PhotoAnalysesLast30 != 1 {
		t.Errorf("unexpected 30-day counts: %+v", s)
	}
	if s.GrowthAvailable || s.UserGrowth != nil {
		t.Error("expected growth to be unavailable")
	}

	want := []adminMonth{
		{Month: "Oct"},
		{Month: "Nov"},
		{Month: "Dec", NewUsers: 1},
		{Month: "Jan", Sessions: 1},
		{Month: "Feb", Sessions: 1, NutritionPlans: 1},
		{Month: "Mar", Sessions: 2, NewUsers: 1},
	}
	if len(s.MonthlyTrends) != len(want) {
		t.Fatalf("expected %d months, got %d", len(want), len(s.MonthlyTrends))
	}
	for i := range want {
		if s.MonthlyTrends[i] != want[i] {
			t.Errorf("month %d: expected %+v, got %+v", i, want[i], s.MonthlyTrends[i])
		}
	}
}

func TestAdminWindowStart(t *testing.T) {
	got := adminWindowStart(at(2026, 3, 31, 12))
	want := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
