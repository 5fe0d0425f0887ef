package main

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"yallafit/go-api/internal/fitness"
)

// weeklySessionGoal is the target shown next to the weekly session count.
const weeklySessionGoal = 5

/* ─── Athlete dashboard ──────────────────────────────────────────────── */

// sportifActivity is the training block of the athlete dashboard.
type sportifActivity struct {
	WeeklySessions int                  `json:"weekly_sessions"`
	WeeklyGoal     int                  `json:"weekly_goal"`
	WeeklyMinutes  int                  `json:"weekly_minutes"`
	CurrentStreak  int                  `json:"current_streak"`
	RecordStreak   int                  `json:"record_streak"`
	Last7Days      []fitness.TrendPoint `json:"last_7_days"`
}

// buildSportifActivity folds all of an athlete's sessions into the dashboard
// counters. now fixes both the clock and the day boundaries.
func buildSportifActivity(now time.Time, sessions []fitness.SessionRecord) sportifActivity {
	weekStart := fitness.DaysAgo(now, 7)
	times := make([]time.Time, len(sessions))
	a := sportifActivity{WeeklyGoal: weeklySessionGoal}
	for i, s := range sessions {
		times[i] = s.CompletedAt
		if !s.CompletedAt.Before(weekStart) {
			a.WeeklyMinutes += s.DurationMinutes
		}
	}
	a.WeeklySessions = fitness.CountSince(times, weekStart)

	streaks := fitness.ComputeStreaks(times, now)
	a.CurrentStreak, a.RecordStreak = streaks.Current, streaks.Record
	a.Last7Days = fitness.CountByBucket(fitness.DailyBuckets(now, 7), times)
	return a
}

// weightHistoryPoint is one point of the dashboard weight chart.
type weightHistoryPoint struct {
	Label    string    `json:"label"`
	Date     time.Time `json:"date"`
	WeightKG float64   `json:"weight_kg"`
}

// bodySummary is the biometrics block of the athlete dashboard.
type bodySummary struct {
	CurrentWeightKG *float64             `json:"current_weight_kg"`
	BodyFatPercent  *float64             `json:"body_fat_percent"`
	WaistCM         *float64             `json:"waist_cm"`
	LastMeasurement *time.Time           `json:"last_measurement"`
	BMI             *float64             `json:"bmi"`
	BMICategory     *string              `json:"bmi_category"`
	WeightChangeKG  *float64             `json:"weight_change_kg"`
	History         []weightHistoryPoint `json:"weight_history"`
}

// buildBodySummary combines the profile with up to six recent measurements
// (any order). Weight falls back to the profile when nothing was measured.
func buildBodySummary(p athleteProfile, recent []biometricMeasurement) bodySummary {
	sorted := append([]biometricMeasurement(nil), recent...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MeasuredAt.Before(sorted[j].MeasuredAt) })

	b := bodySummary{History: make([]weightHistoryPoint, 0, len(sorted))}
	points := make([]fitness.WeightPoint, 0, len(sorted))
	for i, m := range sorted {
		b.History = append(b.History, weightHistoryPoint{Label: "W" + strconv.Itoa(i+1), Date: m.MeasuredAt, WeightKG: m.WeightKG})
		points = append(points, fitness.WeightPoint{Date: m.MeasuredAt, WeightKG: m.WeightKG})
	}

	if n := len(sorted); n > 0 {
		latest := sorted[n-1]
		b.CurrentWeightKG = &latest.WeightKG
		b.BodyFatPercent = latest.BodyFatPercent
		b.WaistCM = latest.WaistCM
		b.LastMeasurement = &latest.MeasuredAt
	} else if p.WeightKG != nil {
		b.CurrentWeightKG = p.WeightKG
	}

	if b.CurrentWeightKG != nil && p.HeightM != nil {
		if bmi, category, ok := fitness.BMI(*b.CurrentWeightKG, *p.HeightM); ok {
			b.BMI, b.BMICategory = &bmi, &category
		}
	}
	if change, ok := fitness.WeightChange(points); ok {
		b.WeightChangeKG = &change
	}
	return b
}

// assignedProgramme is the programme currently set on the athlete profile.
type assignedProgramme struct {
	ID            int    `json:"id"             db:"id"`
	Title         string `json:"title"          db:"title"`
	CoachName     string `json:"coach_name"     db:"coach_name"`
	DurationWeeks int    `json:"duration_weeks" db:"duration_weeks"`
	SessionCount  int    `json:"session_count"  db:"session_count"`
}

// getSportifDashboard returns the athlete home screen.
// GET /api/dashboard/sportif. Day boundaries use UTC.
func (h *Handler) getSportifDashboard(c *gin.Context) {
	userID := c.GetInt("user_id")
	now := time.Now().UTC()

	u, err := queryOne[user](h.db, c,
		"SELECT id, full_name, email, password, role, created_at FROM users WHERE id = @userID",
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "user not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to load dashboard")
		}
		return
	}

	p, err := h.fetchProfile(c, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	p.UserID = userID

	recent, err := queryMany[biometricMeasurement](h.db, c,
		`SELECT `+biometricColumns+` FROM biometric_measurements
		 WHERE athlete_id = @userID ORDER BY measured_at DESC LIMIT 6`,
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	body := buildBodySummary(p, recent)

	var macros *fitness.MacroResult
	if body.CurrentWeightKG != nil {
		if res, ok := fitness.CalculateForProfile(p.calculatorProfile(), *body.CurrentWeightKG); ok {
			macros = &res
		}
	}

	sessions, err := queryMany[sessionRecordRow](h.db, c,
		"SELECT athlete_id, completed_at, duration_minutes FROM training_sessions WHERE athlete_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	var assigned *assignedProgramme
	if p.ProgrammeID != nil {
		ap, err := queryOne[assignedProgramme](h.db, c,
			`SELECT pr.id, pr.title, u.full_name AS coach_name, pr.duration_weeks,
			        (SELECT COUNT(*) FROM programme_sessions ps WHERE ps.programme_id = pr.id)::int AS session_count
			 FROM programmes pr JOIN users u ON u.id = pr.coach_id
			 WHERE pr.id = @id`,
			pgx.NamedArgs{"id": *p.ProgrammeID})
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusInternalServerError, "failed to load dashboard")
			return
		}
		if err == nil {
			assigned = &ap
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user":               u,
		"profile":            p,
		"biometrics":         body,
		"macros":             macros,
		"stats":              buildSportifActivity(now, toSessionRecords(sessions)),
		"assigned_programme": assigned,
	})
}

/* ─── Coach dashboard ────────────────────────────────────────────────── */

// coachProgrammeRow is one of the coach's programmes with its plan size.
type coachProgrammeRow struct {
	ID              int    `db:"id"`
	Title           string `db:"title"`
	PlannedSessions int    `db:"planned_sessions"`
}

// coachEnrollmentRow is one active enrollment in a coach programme, with the
// sessions the athlete completed for that programme.
type coachEnrollmentRow struct {
	AthleteID   int        `db:"athlete_id"`
	FullName    string     `db:"full_name"`
	Email       string     `db:"email"`
	ProgrammeID int        `db:"programme_id"`
	Completed   int        `db:"completed"`
	LastActive  *time.Time `db:"last_active"`
}

type coachProgrammeStats struct {
	ID              int     `json:"id"`
	Title           string  `json:"title"`
	ActiveAthletes  int     `json:"active_athletes"`
	PlannedSessions int     `json:"planned_sessions"`
	Completed       int     `json:"completed_sessions"`
	CompletionRate  float64 `json:"completion_rate"`
}

type coachAthleteStats struct {
	ID         int        `json:"id"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	Programmes []string   `json:"programmes"`
	Completed  int        `json:"completed_sessions"`
	Compliance float64    `json:"compliance"`
	LastActive *time.Time `json:"last_active"`
}

type coachDashboard struct {
	TotalProgrammes  int                   `json:"total_programmes"`
	ActiveProgrammes int                   `json:"active_programmes"`
	TotalAthletes    int                   `json:"total_athletes"`
	TotalSessions    int                   `json:"total_sessions"`
	ComplianceRate   float64               `json:"compliance_rate"`
	Programmes       []coachProgrammeStats `json:"programmes"`
	Athletes         []coachAthleteStats   `json:"athletes"`
}

// buildCoachDashboard aggregates enrollments per programme and per athlete.
// Per-athlete compliance is rounded to whole percent, the overall and
// per-programme rates to one decimal.
func buildCoachDashboard(programmes []coachProgrammeRow, enrollments []coachEnrollmentRow) coachDashboard {
	d := coachDashboard{
		TotalProgrammes: len(programmes),
		Programmes:      make([]coachProgrammeStats, 0, len(programmes)),
		Athletes:        []coachAthleteStats{},
	}

	planned := make(map[int]int, len(programmes))
	titles := make(map[int]string, len(programmes))
	for _, p := range programmes {
		planned[p.ID] = p.PlannedSessions
		titles[p.ID] = p.Title
	}

	enrollees := map[int]int{}
	completedByProgramme := map[int]int{}
	athleteIndex := map[int]int{}
	athletePlanned := map[int]int{}
	athleteIDs := make([]int, 0, len(enrollments))
	totalExpected := 0
	for _, e := range enrollments {
		enrollees[e.ProgrammeID]++
		completedByProgramme[e.ProgrammeID] += e.Completed
		d.TotalSessions += e.Completed
		totalExpected += planned[e.ProgrammeID]
		athleteIDs = append(athleteIDs, e.AthleteID)

		i, ok := athleteIndex[e.AthleteID]
		if !ok {
			i = len(d.Athletes)
			athleteIndex[e.AthleteID] = i
			d.Athletes = append(d.Athletes, coachAthleteStats{ID: e.AthleteID, FullName: e.FullName, Email: e.Email})
		}
		a := &d.Athletes[i]
		a.Programmes = append(a.Programmes, titles[e.ProgrammeID])
		a.Completed += e.Completed
		athletePlanned[e.AthleteID] += planned[e.ProgrammeID]
		if e.LastActive != nil && (a.LastActive == nil || e.LastActive.After(*a.LastActive)) {
			a.LastActive = e.LastActive
		}
	}

	for i := range d.Athletes {
		a := &d.Athletes[i]
		a.Compliance = fitness.ComplianceRate(a.Completed, 1, athletePlanned[a.ID], 0)
	}
	for _, p := range programmes {
		n := enrollees[p.ID]
		if n > 0 {
			d.ActiveProgrammes++
		}
		d.Programmes = append(d.Programmes, coachProgrammeStats{
			ID:              p.ID,
			Title:           p.Title,
			ActiveAthletes:  n,
			PlannedSessions: p.PlannedSessions,
			Completed:       completedByProgramme[p.ID],
			CompletionRate:  fitness.ComplianceRate(completedByProgramme[p.ID], n, p.PlannedSessions, 1),
		})
	}

	d.TotalAthletes = fitness.DistinctCount(athleteIDs)
	d.ComplianceRate = fitness.ComplianceRate(d.TotalSessions, 1, totalExpected, 1)
	return d
}

// getCoachDashboard returns compliance for the caller's programmes.
// GET /api/dashboard/coach.
func (h *Handler) getCoachDashboard(c *gin.Context) {
	userID := c.GetInt("user_id")
	args := pgx.NamedArgs{"coachID": userID}

	programmes, err := queryMany[coachProgrammeRow](h.db, c,
		`SELECT p.id, p.title,
		        (SELECT COUNT(*) FROM programme_sessions ps WHERE ps.programme_id = p.id)::int AS planned_sessions
		 FROM programmes p WHERE p.coach_id = @coachID
		 ORDER BY p.created_at DESC`, args)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	enrollments, err := queryMany[coachEnrollmentRow](h.db, c,
		`SELECT e.athlete_id, u.full_name, u.email, e.programme_id,
		        COUNT(ts.id)::int AS completed, MAX(ts.completed_at) AS last_active
		 FROM programme_enrollments e
		 JOIN programmes p ON p.id = e.programme_id
		 JOIN users u ON u.id = e.athlete_id
		 LEFT JOIN training_sessions ts
		        ON ts.athlete_id = e.athlete_id AND ts.programme_id = e.programme_id
		 WHERE p.coach_id = @coachID AND e.is_active
		 GROUP BY e.athlete_id, u.full_name, u.email, e.programme_id
		 ORDER BY u.full_name`, args)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	c.JSON(http.StatusOK, buildCoachDashboard(programmes, enrollments))
}

/* ─── Admin ──────────────────────────────────────────────────────────── */

// adminCounts holds the plain totals, all computed in one round trip.
type adminCounts struct {
	TotalUsers           int `json:"total_users"            db:"total_users"`
	AdminCount           int `json:"admin_count"            db:"admin_count"`
	CoachCount           int `json:"coach_count"            db:"coach_count"`
	SportifCount         int `json:"sportif_count"          db:"sportif_count"`
	TotalProgrammes      int `json:"total_programmes"       db:"total_programmes"`
	PublicProgrammes     int `json:"public_programmes"      db:"public_programmes"`
	ActiveEnrollments    int `json:"active_enrollments"     db:"active_enrollments"`
	TotalSessions        int `json:"total_sessions"         db:"total_sessions"`
	TotalNutritionPlans  int `json:"total_nutrition_plans"  db:"total_nutrition_plans"`
	ActiveNutritionPlans int `json:"active_nutrition_plans" db:"active_nutrition_plans"`
	TotalExercises       int `json:"total_exercises"        db:"total_exercises"`
	TotalPhotoAnalyses   int `json:"total_photo_analyses"   db:"total_photo_analyses"`
}

// adminActivity is the time-stamped data the admin trends are computed from.
// Slices only need to reach back to the start of the oldest monthly bucket.
type adminActivity struct {
	Sessions       []fitness.SessionRecord
	NutritionPlans []time.Time
	PhotoAnalyses  []time.Time
	NewUsers       []time.Time
}

type adminMonth struct {
	Month          string `json:"month"`
	Sessions       int    `json:"sessions"`
	NutritionPlans int    `json:"nutrition_plans"`
	NewUsers       int    `json:"new_users"`
}

type adminStats struct {
	adminCounts
	PrivateProgrammes     int          `json:"private_programmes"`
	UsersLast30Days       int          `json:"users_last_30_days"`
	SessionsLast30Days    int          `json:"sessions_last_30_days"`
	NutritionLast30Days   int          `json:"nutrition_plans_last_30_days"`
	PhotoAnalysesLast30   int          `json:"photo_analyses_last_30_days"`
	ActiveUsersLast30Days int          `json:"active_users_last_30_days"`
	EngagementRate        float64      `json:"engagement_rate"`
	GrowthAvailable       bool         `json:"growth_available"`
	UserGrowth            *float64     `json:"user_growth"`
	MonthlyTrends         []adminMonth `json:"monthly_trends"`
}

// adminTrendMonths is how many monthly buckets the admin chart shows.
const adminTrendMonths = 6

// adminWindowStart is the earliest timestamp buildAdminStats looks at.
func adminWindowStart(now time.Time) time.Time {
	return fitness.MonthlyBuckets(now, adminTrendMonths)[0].Start
}

// buildAdminStats computes the 30-day windows, engagement and monthly trends.
// Engagement counts distinct athletes with a session in the last 30 days
// over all Sportif accounts.
func buildAdminStats(now time.Time, counts adminCounts, act adminActivity) adminStats {
	since := fitness.DaysAgo(now, 30)

	sessionTimes := make([]time.Time, len(act.Sessions))
	var activeIDs []int
	for i, s := range act.Sessions {
		sessionTimes[i] = s.CompletedAt
		if !s.CompletedAt.Before(since) {
			activeIDs = append(activeIDs, s.AthleteID)
		}
	}
	active := fitness.DistinctCount(activeIDs)

	buckets := fitness.MonthlyBuckets(now, adminTrendMonths)
	months := make([]adminMonth, len(buckets))
	for i, b := range buckets {
		months[i] = adminMonth{
			Month:          b.Label,
			Sessions:       fitness.CountInRange(sessionTimes, b.Start, b.End),
			NutritionPlans: fitness.CountInRange(act.NutritionPlans, b.Start, b.End),
			NewUsers:       fitness.CountInRange(act.NewUsers, b.Start, b.End),
		}
	}

	return adminStats{
		adminCounts:           counts,
		PrivateProgrammes:     counts.TotalProgrammes - counts.PublicProgrammes,
		UsersLast30Days:       fitness.CountSince(act.NewUsers, since),
		SessionsLast30Days:    fitness.CountSince(sessionTimes, since),
		NutritionLast30Days:   fitness.CountSince(act.NutritionPlans, since),
		PhotoAnalysesLast30:   fitness.CountSince(act.PhotoAnalyses, since),
		ActiveUsersLast30Days: active,
		EngagementRate:        fitness.EngagementRate(active, counts.SportifCount),
		MonthlyTrends:         months,
	}
}

// getAdminStats returns platform-wide counts and trends.
// GET /api/admin/stats. Windows use the server's local clock.
func (h *Handler) getAdminStats(c *gin.Context) {
	now := time.Now()

	counts, err := queryOne[adminCounts](h.db, c,
		`SELECT
			(SELECT COUNT(*) FROM users)::int                                   AS total_users,
			(SELECT COUNT(*) FROM users WHERE role = 'Admin')::int              AS admin_count,
			(SELECT COUNT(*) FROM users WHERE role = 'Coach')::int              AS coach_count,
			(SELECT COUNT(*) FROM users WHERE role = 'Sportif')::int            AS sportif_count,
			(SELECT COUNT(*) FROM programmes)::int                              AS total_programmes,
			(SELECT COUNT(*) FROM programmes WHERE is_public)::int              AS public_programmes,
			(SELECT COUNT(*) FROM programme_enrollments WHERE is_active)::int   AS active_enrollments,
			(SELECT COUNT(*) FROM training_sessions)::int                       AS total_sessions,
			(SELECT COUNT(*) FROM nutrition_plans)::int                         AS total_nutrition_plans,
			(SELECT COUNT(*) FROM nutrition_plans WHERE is_active)::int         AS active_nutrition_plans,
			(SELECT COUNT(*) FROM exercises)::int                               AS total_exercises,
			(SELECT COUNT(*) FROM photo_analyses)::int                          AS total_photo_analyses`,
		pgx.NamedArgs{})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to load stats")
		return
	}

	args := pgx.NamedArgs{"since": adminWindowStart(now)}
	sessions, err := queryMany[sessionRecordRow](h.db, c,
		"SELECT athlete_id, completed_at, duration_minutes FROM training_sessions WHERE completed_at >= @since", args)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to load stats")
		return
	}
	var act adminActivity
	act.Sessions = toSessionRecords(sessions)
	for _, q := range []struct {
		dst *[]time.Time
		sql string
	}{
		{&act.NutritionPlans, "SELECT generated_at FROM nutrition_plans WHERE generated_at >= @since"},
		{&act.PhotoAnalyses, "SELECT analysed_at FROM photo_analyses WHERE analysed_at >= @since"},
		{&act.NewUsers, "SELECT created_at FROM users WHERE created_at >= @since"},
	} {
		times, err := queryScalars[time.Time](h.db, c, q.sql, args)
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to load stats")
			return
		}
		*q.dst = times
	}

	c.JSON(http.StatusOK, buildAdminStats(now, counts, act))
}

// topProgramme is one row of the admin leaderboard.
type topProgramme struct {
	ID                int     `json:"id"                 db:"id"`
	Title             string  `json:"title"              db:"title"`
	DurationWeeks     int     `json:"duration_weeks"     db:"duration_weeks"`
	IsPublic          bool    `json:"is_public"          db:"is_public"`
	CoachName         string  `json:"coach_name"         db:"coach_name"`
	EnrollmentCount   int     `json:"enrollment_count"   db:"enrollment_count"`
	ActiveEnrollments int     `json:"active_enrollments" db:"active_enrollments"`
	SessionCount      int     `json:"session_count"      db:"session_count"`
	CompletedSessions int     `json:"completed_sessions" db:"completed_sessions"`
	CompletionRate    float64 `json:"completion_rate"    db:"-"`
}

// getTopProgrammes ranks programmes by enrollments.
// GET /api/admin/top-programs?count=N (default 5, max 50).
func (h *Handler) getTopProgrammes(c *gin.Context) {
	count, err := parseLimit(strings.TrimSpace(c.Query("count")), 5, 50)
	if err != nil {
		apiError(c, http.StatusBadRequest, "count must be a positive integer")
		return
	}

	rows, err := queryMany[topProgramme](h.db, c,
		`SELECT p.id, p.title, p.duration_weeks, p.is_public, u.full_name AS coach_name,
		        (SELECT COUNT(*) FROM programme_enrollments e WHERE e.programme_id = p.id)::int AS enrollment_count,
		        (SELECT COUNT(*) FROM programme_enrollments e WHERE e.programme_id = p.id AND e.is_active)::int AS active_enrollments,
		        (SELECT COUNT(*) FROM programme_sessions ps WHERE ps.programme_id = p.id)::int AS session_count,
		        (SELECT COUNT(*) FROM training_sessions ts
		           JOIN programme_enrollments e ON e.athlete_id = ts.athlete_id AND e.programme_id = ts.programme_id AND e.is_active
		          WHERE ts.programme_id = p.id)::int AS completed_sessions
		 FROM programmes p JOIN users u ON u.id = p.coach_id
		 ORDER BY enrollment_count DESC, p.id
		 LIMIT @count`,
		pgx.NamedArgs{"count": count})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to load programmes")
		return
	}
	for i := range rows {
		r := &rows[i]
		r.CompletionRate = fitness.ComplianceRate(r.CompletedSessions, r.ActiveEnrollments, r.SessionCount, 1)
	}

	c.JSON(http.StatusOK, rows)
}

// getRecentUsers lists the newest accounts.
// GET /api/admin/recent-users?count=N (default 10, max 100).
func (h *Handler) getRecentUsers(c *gin.Context) {
	count, err := parseLimit(strings.TrimSpace(c.Query("count")), 10, 100)
	if err != nil {
		apiError(c, http.StatusBadRequest, "count must be a positive integer")
		return
	}

	users, err := queryMany[user](h.db, c,
		`SELECT id, full_name, email, '' AS password, role, created_at FROM users
		 ORDER BY created_at DESC, id DESC
		 LIMIT @count`,
		pgx.NamedArgs{"count": count})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to load users")
		return
	}

	c.JSON(http.StatusOK, users)
}
