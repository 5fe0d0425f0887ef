package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

/* ─── Programme detail ───────────────────────────────────────────────── */

// getProgramme returns a programme with its sessions and prescribed exercises.
// GET /api/programmes/:id. Visible to its coach, admins, enrolled athletes
// and, for public programmes, everyone.
func (h *Handler) getProgramme(c *gin.Context) {
	id, ok := positiveParam(c, "id", "programme id")
	if !ok {
		return
	}

	p, err := queryOne[programme](h.db, c,
		programmeSelect+`
		 WHERE p.id = @id
		   AND (@isAdmin OR p.coach_id = @userID OR p.is_public OR EXISTS (
		        SELECT 1 FROM programme_enrollments e
		        WHERE e.programme_id = p.id AND e.athlete_id = @userID AND e.is_active))`,
		pgx.NamedArgs{"id": id, "userID": c.GetInt("user_id"), "isAdmin": c.GetString("role") == roleAdmin})
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "programme not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch programme")
		return
	}

	sessions, err := h.loadProgrammeSessions(c, id, 0)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch programme")
		return
	}

	c.JSON(http.StatusOK, programmeDetail{programme: p, Sessions: sessions})
}

// loadProgrammeSessions loads a programme's sessions ordered by weekday. A
// non-zero sessionID restricts the result to that session.
func (h *Handler) loadProgrammeSessions(c *gin.Context, programmeID, sessionID int) ([]programmeSession, error) {
	args := pgx.NamedArgs{"programmeID": programmeID, "sessionID": sessionID}
	sessions, err := queryMany[programmeSession](h.db, c,
		`SELECT id, name, day_index FROM programme_sessions
		 WHERE programme_id = @programmeID AND (@sessionID = 0 OR id = @sessionID)
		 ORDER BY day_index, id`, args)
	if err != nil {
		return nil, err
	}
	planned, err := queryMany[plannedExercise](h.db, c,
		`SELECT pse.id, pse.programme_session_id, pse.exercise_id, e.name AS exercise_name,
		        e.target_muscle, pse.order_index, pse.sets, pse.reps, pse.suggested_weight_kg
		 FROM programme_session_exercises pse
		 JOIN programme_sessions ps ON ps.id = pse.programme_session_id
		 JOIN exercises e ON e.id = pse.exercise_id
		 WHERE ps.programme_id = @programmeID AND (@sessionID = 0 OR ps.id = @sessionID)
		 ORDER BY pse.programme_session_id, pse.order_index, pse.id`, args)
	if err != nil {
		return nil, err
	}
	attachPlannedExercises(sessions, planned)
	return sessions, nil
}

// attachPlannedExercises distributes planned exercises onto their sessions,
// keeping the order of planned. Every session ends up with a non-nil list.
func attachPlannedExercises(sessions []programmeSession, planned []plannedExercise) {
	index := make(map[int]int, len(sessions))
	for i := range sessions {
		sessions[i].Exercises = []plannedExercise{}
		index[sessions[i].ID] = i
	}
	for _, pe := range planned {
		if i, ok := index[pe.ProgrammeSessionID]; ok {
			sessions[i].Exercises = append(sessions[i].Exercises, pe)
		}
	}
}

/* ─── Programme maintenance (coach/admin) ────────────────────────────── */

// validateProgrammeUpdate trims the body in place.
func validateProgrammeUpdate(body *updateProgrammeRequest) string {
	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" {
			return "title must not be empty"
		}
		body.Title = &title
	}
	if body.DurationWeeks != nil && (*body.DurationWeeks <= 0 || *body.DurationWeeks > 104) {
		return "duration_weeks must be between 1 and 104"
	}
	return ""
}

// updateProgramme patches title, duration and visibility.
// PATCH /api/programmes/:id. Owner or admin only.
func (h *Handler) updateProgramme(c *gin.Context) {
	id, ok := positiveParam(c, "id", "programme id")
	if !ok {
		return
	}
	var body updateProgrammeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateProgrammeUpdate(&body); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}
	if !h.ownsProgramme(c, id) {
		return
	}

	if _, err := h.db.Exec(c,
		`UPDATE programmes SET
		   title          = COALESCE(@title, title),
		   duration_weeks = COALESCE(@weeks, duration_weeks),
		   is_public      = COALESCE(@isPublic, is_public)
		 WHERE id = @id`,
		pgx.NamedArgs{"id": id, "title": body.Title, "weeks": body.DurationWeeks, "isPublic": body.IsPublic}); err != nil {
		log.Printf("[updateProgramme] %v", err)
		apiError(c, http.StatusInternalServerError, "failed to update programme")
		return
	}

	updated, err := queryOne[programme](h.db, c, programmeSelect+" WHERE p.id = @id", pgx.NamedArgs{"id": id})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch programme")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// deleteProgramme removes a programme with its sessions and enrollments.
// DELETE /api/programmes/:id. Owner or admin only; refused once athletes
// have logged training against it.
func (h *Handler) deleteProgramme(c *gin.Context) {
	id, ok := positiveParam(c, "id", "programme id")
	if !ok {
		return
	}
	if !h.ownsProgramme(c, id) {
		return
	}

	var logged bool
	if err := h.db.QueryRow(c,
		"SELECT EXISTS (SELECT 1 FROM training_sessions WHERE programme_id = $1)", id).Scan(&logged); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to delete programme")
		return
	}
	if logged {
		apiError(c, http.StatusConflict, "programme has logged training sessions")
		return
	}

	if _, err := h.db.Exec(c, "DELETE FROM programmes WHERE id = $1", id); err != nil {
		log.Printf("[deleteProgramme] %v", err)
		apiError(c, http.StatusInternalServerError, "failed to delete programme")
		return
	}
	c.Status(http.StatusNoContent)
}

/* ─── Programme sessions ─────────────────────────────────────────────── */

// validateProgrammeSession trims the body in place. Adding a session
// requires a name and a weekday (1 = Monday … 7 = Sunday).
func validateProgrammeSession(body *programmeSessionRequest, creating bool) string {
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		body.Name = &name
	}
	if creating && (body.Name == nil || *body.Name == "") {
		return "name is required"
	}
	if body.Name != nil && *body.Name == "" {
		return "name must not be empty"
	}
	if creating && body.DayIndex == nil {
		return "day_index is required"
	}
	if body.DayIndex != nil && (*body.DayIndex < 1 || *body.DayIndex > 7) {
		return "day_index must be between 1 and 7"
	}
	if body.Exercises != nil {
		seen := map[int]bool{}
		for _, ex := range *body.Exercises {
			if ex.ExerciseID <= 0 {
				return "exercise_id is required for every exercise"
			}
			if seen[ex.ExerciseID] {
				return "duplicate exercise_id in session"
			}
			seen[ex.ExerciseID] = true
			if ex.Sets <= 0 || ex.Reps <= 0 {
				return "sets and reps must be positive"
			}
			if ex.SuggestedWeightKG != nil && *ex.SuggestedWeightKG < 0 {
				return "suggested_weight_kg must not be negative"
			}
		}
	}
	return ""
}

// errUnknownExercise marks a prescription naming an exercise not in the library.
var errUnknownExercise = errors.New("unknown exercise_id")

// insertPlannedExercises writes a session's prescription in list order.
func insertPlannedExercises(ctx context.Context, tx pgx.Tx, sessionID int, exercises []plannedExerciseRequest) error {
	for i, ex := range exercises {
		_, err := tx.Exec(ctx,
			`INSERT INTO programme_session_exercises
			   (programme_session_id, exercise_id, order_index, sets, reps, suggested_weight_kg)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			sessionID, ex.ExerciseID, i+1, ex.Sets, ex.Reps, ex.SuggestedWeightKG)
		if pgErrorCode(err) == pgForeignKeyViolation {
			return errUnknownExercise
		}
		if err != nil {
			return fmt.Errorf("insert planned exercise %d: %w", ex.ExerciseID, err)
		}
	}
	return nil
}

// respondSession writes one freshly saved session with its prescription.
func (h *Handler) respondSession(c *gin.Context, status, programmeID, sessionID int) {
	sessions, err := h.loadProgrammeSessions(c, programmeID, sessionID)
	if err != nil || len(sessions) == 0 {
		apiError(c, http.StatusInternalServerError, "failed to fetch session")
		return
	}
	c.JSON(status, sessions[0])
}

// writeSessionError maps a session write failure to a response.
func writeSessionError(c *gin.Context, tag string, err error) {
	if errors.Is(err, errUnknownExercise) {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("[%s] %v", tag, err)
	apiError(c, http.StatusInternalServerError, "failed to save session")
}

// addProgrammeSession adds a planned session to a programme.
// POST /api/programmes/:id/sessions. Body: { "name", "day_index", "exercises":
// [{ "exercise_id", "sets", "reps", "suggested_weight_kg" }] }.
func (h *Handler) addProgrammeSession(c *gin.Context) {
	programmeID, ok := positiveParam(c, "id", "programme id")
	if !ok {
		return
	}
	var body programmeSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateProgrammeSession(&body, true); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}
	if !h.ownsProgramme(c, programmeID) {
		return
	}

	tx, err := h.db.Begin(c)
	if err != nil {
		writeSessionError(c, "addProgrammeSession", err)
		return
	}
	defer tx.Rollback(c)

	var sessionID int
	if err := tx.QueryRow(c,
		"INSERT INTO programme_sessions (programme_id, name, day_index) VALUES ($1, $2, $3) RETURNING id",
		programmeID, *body.Name, *body.DayIndex).Scan(&sessionID); err != nil {
		writeSessionError(c, "addProgrammeSession", err)
		return
	}
	if body.Exercises != nil {
		if err := insertPlannedExercises(c, tx, sessionID, *body.Exercises); err != nil {
			writeSessionError(c, "addProgrammeSession", err)
			return
		}
	}
	if err := tx.Commit(c); err != nil {
		writeSessionError(c, "addProgrammeSession", err)
		return
	}

	h.respondSession(c, http.StatusCreated, programmeID, sessionID)
}

// updateProgrammeSession renames or reschedules a session and, when
// exercises are sent, replaces its prescription.
// PUT /api/programmes/:id/sessions/:sessionId
func (h *Handler) updateProgrammeSession(c *gin.Context) {
	programmeID, ok := positiveParam(c, "id", "programme id")
	if !ok {
		return
	}
	sessionID, ok := positiveParam(c, "sessionId", "session id")
	if !ok {
		return
	}
	var body programmeSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateProgrammeSession(&body, false); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}
	if !h.ownsProgramme(c, programmeID) {
		return
	}

	tx, err := h.db.Begin(c)
	if err != nil {
		writeSessionError(c, "updateProgrammeSession", err)
		return
	}
	defer tx.Rollback(c)

	tag, err := tx.Exec(c,
		`UPDATE programme_sessions SET
		   name      = COALESCE(@name, name),
		   day_index = COALESCE(@day, day_index)
		 WHERE id = @sessionID AND programme_id = @programmeID`,
		pgx.NamedArgs{"name": body.Name, "day": body.DayIndex, "sessionID": sessionID, "programmeID": programmeID})
	if err != nil {
		writeSessionError(c, "updateProgrammeSession", err)
		return
	}
	if tag.RowsAffected() == 0 {
		apiError(c, http.StatusNotFound, "session not found in this programme")
		return
	}
	if body.Exercises != nil {
		if _, err := tx.Exec(c, "DELETE FROM programme_session_exercises WHERE programme_session_id = $1", sessionID); err != nil {
			writeSessionError(c, "updateProgrammeSession", err)
			return
		}
		if err := insertPlannedExercises(c, tx, sessionID, *body.Exercises); err != nil {
			writeSessionError(c, "updateProgrammeSession", err)
			return
		}
	}
	if err := tx.Commit(c); err != nil {
		writeSessionError(c, "updateProgrammeSession", err)
		return
	}

	h.respondSession(c, http.StatusOK, programmeID, sessionID)
}

// deleteProgrammeSession removes a planned session. Refused once athletes
// have logged it.
// DELETE /api/programmes/:id/sessions/:sessionId
func (h *Handler) deleteProgrammeSession(c *gin.Context) {
	programmeID, ok := positiveParam(c, "id", "programme id")
	if !ok {
		return
	}
	sessionID, ok := positiveParam(c, "sessionId", "session id")
	if !ok {
		return
	}
	if !h.ownsProgramme(c, programmeID) {
		return
	}

	var logged bool
	if err := h.db.QueryRow(c,
		"SELECT EXISTS (SELECT 1 FROM training_sessions WHERE programme_session_id = $1)", sessionID).Scan(&logged); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if logged {
		apiError(c, http.StatusConflict, "session has logged training")
		return
	}

	tag, err := h.db.Exec(c,
		"DELETE FROM programme_sessions WHERE id = $1 AND programme_id = $2", sessionID, programmeID)
	if err != nil {
		log.Printf("[deleteProgrammeSession] %v", err)
		apiError(c, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if tag.RowsAffected() == 0 {
		apiError(c, http.StatusNotFound, "session not found in this programme")
		return
	}
	c.Status(http.StatusNoContent)
}

/* ─── Public catalogue and self-enrollment ───────────────────────────── */

// getPublicProgrammes lists every public programme, newest first.
// GET /api/programmes/public
func (h *Handler) getPublicProgrammes(c *gin.Context) {
	programmes, err := queryMany[programme](h.db, c,
		programmeSelect+" WHERE p.is_public ORDER BY p.created_at DESC", pgx.NamedArgs{})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch programmes")
		return
	}
	c.JSON(http.StatusOK, programmes)
}

// enrollInProgramme enrols the calling athlete in a public programme.
// POST /api/programmes/:id/enroll (sportif only).
func (h *Handler) enrollInProgramme(c *gin.Context) {
	id, ok := positiveParam(c, "id", "programme id")
	if !ok {
		return
	}
	userID := c.GetInt("user_id")

	var isPublic bool
	err := h.db.QueryRow(c, "SELECT is_public FROM programmes WHERE id = $1", id).Scan(&isPublic)
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "programme not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to enroll")
		return
	}
	if !isPublic {
		apiError(c, http.StatusBadRequest, "programme is not public")
		return
	}

	enrolled, err := h.enrollAthlete(c, userID, id)
	if err != nil {
		log.Printf("[enrollInProgramme] %v", err)
		apiError(c, http.StatusInternalServerError, "failed to enroll")
		return
	}
	if !enrolled {
		apiError(c, http.StatusBadRequest, "already enrolled in this programme")
		return
	}

	log.Printf("[enrollInProgramme] athlete %d enrolled in programme %d", userID, id)
	c.JSON(http.StatusCreated, gin.H{"message": "enrolled", "programme_id": id})
}

// getEnrollmentStatus reports whether the caller is actively enrolled.
// GET /api/programmes/:id/enrollment-status
func (h *Handler) getEnrollmentStatus(c *gin.Context) {
	id, ok := positiveParam(c, "id", "programme id")
	if !ok {
		return
	}

	var enrolled bool
	if err := h.db.QueryRow(c,
		`SELECT EXISTS (SELECT 1 FROM programme_enrollments
		                WHERE programme_id = $1 AND athlete_id = $2 AND is_active)`,
		id, c.GetInt("user_id")).Scan(&enrolled); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch enrollment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"programme_id": id, "is_enrolled": enrolled})
}
