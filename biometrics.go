package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

const biometricColumns = "id, athlete_id, measured_at, weight_kg, body_fat_percent, waist_cm"

// getBiometrics returns the athlete's measurements, newest first.
// GET /api/biometrics?limit=N (default 50, max 500).
// Returns an empty array (not null) if nothing has been recorded.
func (h *Handler) getBiometrics(c *gin.Context) {
	userID := c.GetInt("user_id")

	limit, err := parseLimit(c.Query("limit"), 50, 500)
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := queryMany[biometricMeasurement](h.db, c,
		`SELECT `+biometricColumns+` FROM biometric_measurements
		 WHERE athlete_id = @userID
		 ORDER BY measured_at DESC
		 LIMIT @limit`,
		pgx.NamedArgs{"userID": userID, "limit": limit})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch biometrics")
		return
	}

	c.JSON(http.StatusOK, entries)
}

// getLatestBiometric returns the most recent measurement.
// GET /api/biometrics/latest. 404 when none exist.
func (h *Handler) getLatestBiometric(c *gin.Context) {
	userID := c.GetInt("user_id")

	entry, err := queryOne[biometricMeasurement](h.db, c,
		`SELECT `+biometricColumns+` FROM biometric_measurements
		 WHERE athlete_id = @userID
		 ORDER BY measured_at DESC LIMIT 1`,
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "no measurements recorded")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch biometrics")
		}
		return
	}

	c.JSON(http.StatusOK, entry)
}

// validateBiometric checks ranges on a new measurement.
func validateBiometric(body createBiometricRequest) string {
	if body.WeightKG <= 0 || body.WeightKG > 500 {
		return "weight_kg must be between 0 and 500"
	}
	if body.BodyFatPercent != nil && (*body.BodyFatPercent < 0 || *body.BodyFatPercent > 100) {
		return "body_fat_percent must be between 0 and 100"
	}
	if body.WaistCM != nil && (*body.WaistCM <= 0 || *body.WaistCM > 300) {
		return "waist_cm must be between 0 and 300"
	}
	return ""
}

// createBiometric records a new measurement.
// POST /api/biometrics. Body: { "weight_kg": 72.4, "body_fat_percent"?, "waist_cm"?, "measured_at"? }.
// measured_at defaults to now.
func (h *Handler) createBiometric(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body createBiometricRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateBiometric(body); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}
	measuredAt := time.Now()
	if body.MeasuredAt != nil {
		measuredAt = *body.MeasuredAt
	}

	entry, err := queryOne[biometricMeasurement](h.db, c,
		`INSERT INTO biometric_measurements (athlete_id, measured_at, weight_kg, body_fat_percent, waist_cm)
		 VALUES (@userID, @measuredAt, @weightKG, @bodyFat, @waist)
		 RETURNING `+biometricColumns,
		pgx.NamedArgs{
			"userID":     userID,
			"measuredAt": measuredAt,
			"weightKG":   body.WeightKG,
			"bodyFat":    body.BodyFatPercent,
			"waist":      body.WaistCM,
		})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to save measurement")
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// deleteBiometric removes a measurement by ID.
// DELETE /api/biometrics/:id. Returns 204 on success, 404 if not found.
// Ownership is enforced by requiring both id and athlete_id to match.
func (h *Handler) deleteBiometric(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid id")
		return
	}

	result, err := h.db.Exec(c,
		"DELETE FROM biometric_measurements WHERE id = @id AND athlete_id = @userID",
		pgx.NamedArgs{"id": id, "userID": userID})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to delete measurement")
		return
	}
	if result.RowsAffected() == 0 {
		apiError(c, http.StatusNotFound, "measurement not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// parseLimit reads an optional positive ?limit= value, clamped to max.
func parseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
