package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

/* ─── Programmes ─────────────────────────────────────────────────────── */

const programmeSelect = `SELECT p.id, p.coach_id, p.title, p.duration_weeks, p.is_public, p.created_at,
	(SELECT COUNT(*) FROM programme_sessions ps WHERE ps.programme_id = p.id)::int AS session_count,
	cu.full_name AS coach_name
	FROM programmes p
	JOIN users cu ON cu.id = p.coach_id`

// getProgrammes lists programmes visible to the caller.
// GET /api/programmes. Coaches see their own plus public ones; admins see all.
func (h *Handler) getProgrammes(c *gin.Context) {
	userID := c.GetInt("user_id")
	isAdmin := c.GetString("role") == roleAdmin

	programmes, err := queryMany[programme](h.db, c,
		programmeSelect+`
		 WHERE @isAdmin OR p.coach_id = @userID OR p.is_public
		 ORDER BY p.created_at DESC`,
		pgx.NamedArgs{"userID": userID, "isAdmin": isAdmin})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch programmes")
		return
	}

	c.JSON(http.StatusOK, programmes)
}

// createProgramme creates a programme owned by the caller with its planned sessions.
// POST /api/programmes. Body: { "title", "duration_weeks", "is_public", "sessions": ["Push", "Pull"] }.
func (h *Handler) createProgramme(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body createProgrammeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Title = strings.TrimSpace(body.Title)
	if body.Title == "" {
		apiError(c, http.StatusBadRequest, "title is required")
		return
	}
	if body.DurationWeeks <= 0 || body.DurationWeeks > 104 {
		apiError(c, http.StatusBadRequest, "duration_weeks must be between 1 and 104")
		return
	}
	for _, s := range body.Sessions {
		if strings.TrimSpace(s) == "" {
			apiError(c, http.StatusBadRequest, "session names must not be empty")
			return
		}
	}

	tx, err := h.db.Begin(c)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create programme")
		return
	}
	defer tx.Rollback(c)

	var id int
	err = tx.QueryRow(c,
		`INSERT INTO programmes (coach_id, title, duration_weeks, is_public)
		 VALUES (@coachID, @title, @weeks, @isPublic) RETURNING id`,
		pgx.NamedArgs{"coachID": userID, "title": body.Title, "weeks": body.DurationWeeks, "isPublic": body.IsPublic},
	).Scan(&id)
	if err != nil {
		log.Printf("[createProgramme] insert: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to create programme")
		return
	}
	for i, name := range body.Sessions {
		if _, err := tx.Exec(c,
			"INSERT INTO programme_sessions (programme_id, name, day_index) VALUES ($1, $2, $3)",
			id, strings.TrimSpace(name), i%7+1); err != nil {
			log.Printf("[createProgramme] insert session: %v", err)
			apiError(c, http.StatusInternalServerError, "failed to create programme")
			return
		}
	}
	if err := tx.Commit(c); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create programme")
		return
	}

	created, err := queryOne[programme](h.db, c, programmeSelect+" WHERE p.id = @id", pgx.NamedArgs{"id": id})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch programme")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// assignProgramme enrols an athlete in a programme.
// POST /api/coach/assign-program. Coaches may only assign their own
// programmes; admins may assign any. The athlete's profile points at the
// newly assigned programme.
func (h *Handler) assignProgramme(c *gin.Context) {
	var body assignProgrammeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.AthleteID <= 0 || body.ProgrammeID <= 0 {
		apiError(c, http.StatusBadRequest, "athlete_id and programme_id are required")
		return
	}

	if !h.ownsProgramme(c, body.ProgrammeID) {
		return
	}

	var role string
	err := h.db.QueryRow(c, "SELECT role FROM users WHERE id = $1", body.AthleteID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && role != roleSportif) {
		apiError(c, http.StatusNotFound, "athlete not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to assign programme")
		return
	}

	enrolled, err := h.enrollAthlete(c, body.AthleteID, body.ProgrammeID)
	if err != nil {
		log.Printf("[assignProgramme] %v", err)
		apiError(c, http.StatusInternalServerError, "failed to assign programme")
		return
	}
	if !enrolled {
		apiError(c, http.StatusBadRequest, "athlete is already enrolled in this programme")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "programme assigned"})
}

// ownsProgramme reports whether the caller may modify the programme: its
// coach or any admin. On false the error response has been written.
func (h *Handler) ownsProgramme(c *gin.Context, programmeID int) bool {
	var coachID int
	err := h.db.QueryRow(c, "SELECT coach_id FROM programmes WHERE id = $1", programmeID).Scan(&coachID)
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "programme not found")
		return false
	}
	if err != nil {
		log.Printf("[ownsProgramme] %v", err)
		apiError(c, http.StatusInternalServerError, "failed to fetch programme")
		return false
	}
	if coachID != c.GetInt("user_id") && c.GetString("role") != roleAdmin {
		apiError(c, http.StatusForbidden, "programme belongs to another coach")
		return false
	}
	return true
}

// enrollAthlete creates an active enrollment and points the athlete's profile
// at the programme. It returns false when the athlete is already actively
// enrolled.
func (h *Handler) enrollAthlete(c *gin.Context, athleteID, programmeID int) (bool, error) {
	tx, err := h.db.Begin(c)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(c)

	// The partial unique index on active enrollments turns a duplicate into a no-op.
	tag, err := tx.Exec(c,
		`INSERT INTO programme_enrollments (athlete_id, programme_id)
		 VALUES ($1, $2)
		 ON CONFLICT (athlete_id, programme_id) WHERE is_active DO NOTHING`,
		athleteID, programmeID)
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(c,
		"UPDATE athlete_profiles SET programme_id = $1, updated_at = now() WHERE user_id = $2",
		programmeID, athleteID); err != nil {
		return false, fmt.Errorf("update profile: %w", err)
	}
	if err := tx.Commit(c); err != nil {
		return false, err
	}
	return true, nil
}

/* ─── Athletes ───────────────────────────────────────────────────────── */

// athleteSummary is one row of the coach's athlete list.
type athleteSummary struct {
	ID         int        `json:"id"          db:"id"`
	FullName   string     `json:"full_name"   db:"full_name"`
	Email      string     `json:"email"       db:"email"`
	Age        *int       `json:"age"         db:"age"`
	WeightKG   *float64   `json:"weight_kg"   db:"weight_kg"`
	HeightM    *float64   `json:"height_m"    db:"height_m"`
	Goal       *string    `json:"goal"        db:"goal"`
	LastWeight *float64   `json:"last_weight" db:"last_weight"`
	LastActive *time.Time `json:"last_active" db:"last_active"`
}

// getAthletes lists athletes for the coach.
// GET /api/coach/athletes?filter=my|all (default all). "my" keeps athletes
// with an active enrollment in one of the caller's programmes.
func (h *Handler) getAthletes(c *gin.Context) {
	userID := c.GetInt("user_id")
	filter := c.DefaultQuery("filter", "all")
	if filter != "my" && filter != "all" {
		apiError(c, http.StatusBadRequest, "filter must be my or all")
		return
	}

	athletes, err := queryMany[athleteSummary](h.db, c,
		`SELECT u.id, u.full_name, u.email, ap.age, ap.weight_kg, ap.height_m, ap.goal,
		        lb.weight_kg AS last_weight, lb.measured_at AS last_active
		 FROM users u
		 LEFT JOIN athlete_profiles ap ON ap.user_id = u.id
		 LEFT JOIN LATERAL (
			SELECT weight_kg, measured_at FROM biometric_measurements b
			WHERE b.athlete_id = u.id ORDER BY measured_at DESC LIMIT 1
		 ) lb ON true
		 WHERE u.role = 'Sportif'
		   AND (@filter = 'all' OR EXISTS (
			SELECT 1 FROM programme_enrollments e
			JOIN programmes p ON p.id = e.programme_id
			WHERE e.athlete_id = u.id AND e.is_active AND p.coach_id = @coachID
		   ))
		 ORDER BY u.full_name`,
		pgx.NamedArgs{"filter": filter, "coachID": userID})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch athletes")
		return
	}

	c.JSON(http.StatusOK, athletes)
}

// athleteDetails is everything a coach sees (and exports) for one athlete.
type athleteDetails struct {
	User           user                   `json:"user"`
	Profile        *athleteProfile        `json:"profile"`
	Biometrics     []biometricMeasurement `json:"biometrics"`
	RecentSessions []trainingSessionRow   `json:"recent_sessions"`
}

// loadAthleteDetails fetches an athlete with the last 10 measurements and
// sessions. Returns pgx.ErrNoRows when id is not a Sportif.
func (h *Handler) loadAthleteDetails(c *gin.Context, id int) (athleteDetails, error) {
	var d athleteDetails
	u, err := queryOne[user](h.db, c,
		"SELECT id, full_name, email, password, role, created_at FROM users WHERE id = @id AND role = 'Sportif'",
		pgx.NamedArgs{"id": id})
	if err != nil {
		return d, err
	}
	d.User = u

	p, err := h.fetchProfile(c, id)
	switch {
	case err == nil:
		d.Profile = &p
	case !errors.Is(err, pgx.ErrNoRows):
		return d, err
	}

	d.Biometrics, err = queryMany[biometricMeasurement](h.db, c,
		`SELECT `+biometricColumns+` FROM biometric_measurements
		 WHERE athlete_id = @id ORDER BY measured_at DESC LIMIT 10`,
		pgx.NamedArgs{"id": id})
	if err != nil {
		return d, err
	}

	d.RecentSessions, err = queryMany[trainingSessionRow](h.db, c,
		`SELECT ts.id, ts.programme_id, p.title AS programme_title,
		        ts.programme_session_id, ps.name AS session_name,
		        ts.completed_at, ts.duration_minutes, ts.notes,
		        COUNT(DISTINCT te.id)::int AS exercise_count,
		        COUNT(st.id)::int AS total_sets
		 FROM training_sessions ts
		 JOIN programmes p ON p.id = ts.programme_id
		 JOIN programme_sessions ps ON ps.id = ts.programme_session_id
		 LEFT JOIN training_exercises te ON te.training_session_id = ts.id
		 LEFT JOIN training_sets st ON st.training_exercise_id = te.id
		 WHERE ts.athlete_id = @id
		 GROUP BY ts.id, p.title, ps.name
		 ORDER BY ts.completed_at DESC
		 LIMIT 10`,
		pgx.NamedArgs{"id": id})
	return d, err
}

// athleteIDParam parses :id; writes a 400 and returns false on failure.
func athleteIDParam(c *gin.Context) (int, bool) {
	return positiveParam(c, "id", "athlete id")
}

// positiveParam parses a positive integer path param, writing a 400 on failure.
func positiveParam(c *gin.Context, name, label string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		apiError(c, http.StatusBadRequest, "invalid "+label)
		return 0, false
	}
	return id, true
}

// getAthleteDetails returns profile, biometrics and recent sessions.
// GET /api/coach/athletes/:id.
func (h *Handler) getAthleteDetails(c *gin.Context) {
	id, ok := athleteIDParam(c)
	if !ok {
		return
	}

	d, err := h.loadAthleteDetails(c, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "athlete not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch athlete")
		}
		return
	}

	c.JSON(http.StatusOK, d)
}
