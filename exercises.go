package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

/* ─── Exercise library ───────────────────────────────────────────────── */

// exercise is one entry of the shared exercise library.
type exercise struct {
	ID           int     `json:"id"            db:"id"`
	Name         string  `json:"name"          db:"name"`
	TargetMuscle *string `json:"target_muscle" db:"target_muscle"`
	Category     *string `json:"category"      db:"category"`
	VideoURL     *string `json:"video_url"     db:"video_url"`
}

// exerciseRequest is the body of POST and PATCH /api/exercises. On PATCH a
// nil field is left unchanged.
type exerciseRequest struct {
	Name         *string `json:"name"`
	TargetMuscle *string `json:"target_muscle"`
	Category     *string `json:"category"`
	VideoURL     *string `json:"video_url"`
}

const exerciseColumns = `id, name, target_muscle, category, video_url`

// validateExercise trims the body in place. Creation requires a name; a patch
// may omit it but not blank it.
func validateExercise(body *exerciseRequest, creating bool) string {
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
	if body.Name != nil && len(*body.Name) > 100 {
		return "name must be at most 100 characters"
	}
	if body.VideoURL != nil && *body.VideoURL != "" &&
		!strings.HasPrefix(*body.VideoURL, "https://") && !strings.HasPrefix(*body.VideoURL, "http://") {
		return "video_url must be an http(s) URL"
	}
	return ""
}

// getExercises lists the library, optionally filtered.
// GET /api/exercises?category=Strength&muscle=chest. The category match is
// exact and case-insensitive; muscle matches any part of target_muscle.
func (h *Handler) getExercises(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	muscle := strings.TrimSpace(c.Query("muscle"))

	exercises, err := queryMany[exercise](h.db, c,
		`SELECT `+exerciseColumns+` FROM exercises
		 WHERE (@category = '' OR lower(category) = lower(@category))
		   AND (@muscle = '' OR target_muscle ILIKE '%' || @muscle || '%')
		 ORDER BY name`,
		pgx.NamedArgs{"category": category, "muscle": muscle})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch exercises")
		return
	}

	c.JSON(http.StatusOK, exercises)
}

// getExercise returns one library entry.
// GET /api/exercises/:id
func (h *Handler) getExercise(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid id")
		return
	}

	ex, err := queryOne[exercise](h.db, c,
		`SELECT `+exerciseColumns+` FROM exercises WHERE id = @id`, pgx.NamedArgs{"id": id})
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "exercise not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch exercise")
		return
	}

	c.JSON(http.StatusOK, ex)
}

// createExercise adds an entry to the library.
// POST /api/exercises (coach/admin). Body: { "name", "target_muscle", "category", "video_url" }.
func (h *Handler) createExercise(c *gin.Context) {
	var body exerciseRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateExercise(&body, true); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}

	ex, err := queryOne[exercise](h.db, c,
		`INSERT INTO exercises (name, target_muscle, category, video_url)
		 VALUES (@name, @muscle, @category, @video)
		 RETURNING `+exerciseColumns,
		pgx.NamedArgs{
			"name":     *body.Name,
			"muscle":   trimmedOrNil(body.TargetMuscle),
			"category": trimmedOrNil(body.Category),
			"video":    trimmedOrNil(body.VideoURL),
		})
	if pgErrorCode(err) == pgUniqueViolation {
		apiError(c, http.StatusConflict, "an exercise with this name already exists")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create exercise")
		return
	}

	log.Printf("[createExercise] user %d added exercise %d (%s)", c.GetInt("user_id"), ex.ID, ex.Name)
	c.JSON(http.StatusCreated, ex)
}

// updateExercise patches a library entry. Fields left out keep their value;
// an empty string clears an optional field.
// PATCH /api/exercises/:id (coach/admin).
func (h *Handler) updateExercise(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid id")
		return
	}

	var body exerciseRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateExercise(&body, false); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}

	ex, err := queryOne[exercise](h.db, c,
		`UPDATE exercises SET
		   name          = COALESCE(@name, name),
		   target_muscle = CASE WHEN @setMuscle THEN @muscle ELSE target_muscle END,
		   category      = CASE WHEN @setCategory THEN @category ELSE category END,
		   video_url     = CASE WHEN @setVideo THEN @video ELSE video_url END
		 WHERE id = @id
		 RETURNING `+exerciseColumns,
		pgx.NamedArgs{
			"id":          id,
			"name":        body.Name,
			"setMuscle":   body.TargetMuscle != nil,
			"muscle":      trimmedOrNil(body.TargetMuscle),
			"setCategory": body.Category != nil,
			"category":    trimmedOrNil(body.Category),
			"setVideo":    body.VideoURL != nil,
			"video":       trimmedOrNil(body.VideoURL),
		})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		apiError(c, http.StatusNotFound, "exercise not found")
		return
	case pgErrorCode(err) == pgUniqueViolation:
		apiError(c, http.StatusConflict, "an exercise with this name already exists")
		return
	case err != nil:
		apiError(c, http.StatusInternalServerError, "failed to update exercise")
		return
	}

	c.JSON(http.StatusOK, ex)
}

// deleteExercise removes a library entry. Exercises referenced by logged
// training cannot be removed; planned uses in programmes are dropped.
// DELETE /api/exercises/:id (coach/admin).
func (h *Handler) deleteExercise(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid id")
		return
	}

	tag, err := h.db.Exec(c, "DELETE FROM exercises WHERE id = $1", id)
	if pgErrorCode(err) == pgForeignKeyViolation {
		apiError(c, http.StatusConflict, "exercise is used in logged training")
		return
	}
	if err != nil {
		log.Printf("[deleteExercise] %v", err)
		apiError(c, http.StatusInternalServerError, "failed to delete exercise")
		return
	}
	if tag.RowsAffected() == 0 {
		apiError(c, http.StatusNotFound, "exercise not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// trimmedOrNil trims an optional string; an absent or blank value becomes NULL.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	return nullIfEmpty(*s)
}
