package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"yallafit/go-api/internal/fitness"
)

const profileColumns = `user_id, age, height_m, weight_kg, sex, activity_level, goal,
	allergies, dietary_preferences, health_issues, programme_id, updated_at`

// fetchProfile loads the athlete profile for userID.
func (h *Handler) fetchProfile(ctx context.Context, userID int) (athleteProfile, error) {
	return queryOne[athleteProfile](h.db, ctx,
		"SELECT "+profileColumns+" FROM athlete_profiles WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
}

// currentWeightKG returns the latest biometric weight, falling back to the
// weight stored on the profile. ok=false when neither is known.
func (h *Handler) currentWeightKG(ctx context.Context, p athleteProfile) (float64, bool, error) {
	var w float64
	err := h.db.QueryRow(ctx,
		`SELECT weight_kg FROM biometric_measurements
		 WHERE athlete_id = $1 ORDER BY measured_at DESC LIMIT 1`, p.UserID).Scan(&w)
	if err == nil {
		return w, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}
	if p.WeightKG != nil && *p.WeightKG > 0 {
		return *p.WeightKG, true, nil
	}
	return 0, false, nil
}

// getProfile returns the authenticated athlete's profile.
// GET /api/profile.
func (h *Handler) getProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	p, err := h.fetchProfile(c, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "profile not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		}
		return
	}
	c.JSON(http.StatusOK, p)
}

// validateProfilePatch rejects values the calculators would silently
// misread: non-positive body metrics and unknown activity/goal tokens.
func validateProfilePatch(body patchProfileRequest) string {
	if body.Age != nil && (*body.Age <= 0 || *body.Age > 130) {
		return "age must be between 1 and 130"
	}
	if body.HeightM != nil && (*body.HeightM <= 0 || *body.HeightM > 3) {
		return "height_m must be between 0 and 3"
	}
	if body.WeightKG != nil && (*body.WeightKG <= 0 || *body.WeightKG > 500) {
		return "weight_kg must be between 0 and 500"
	}
	if body.Sex != nil && strings.TrimSpace(*body.Sex) == "" {
		return "sex must not be empty"
	}
	if body.ActivityLevel != nil {
		if _, ok := fitness.LookupActivityLevel(*body.ActivityLevel); !ok {
			return "activity_level must be one of: sedentary, light, moderate, active, very_active"
		}
	}
	if body.Goal != nil {
		if _, ok := fitness.LookupGoal(*body.Goal); !ok {
			return "goal must be one of: loss, gain, maintain"
		}
	}
	return ""
}

// patchProfile updates only the provided profile fields.
// PATCH /api/profile. Pointer fields distinguish "not provided" from zero.
func (h *Handler) patchProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body patchProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateProfilePatch(body); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}

	// Build SET clause dynamically: only update fields the client actually sent
	setClauses := []string{}
	args := pgx.NamedArgs{"userID": userID}
	add := func(column, name string, value any) {
		setClauses = append(setClauses, column+" = @"+name)
		args[name] = value
	}

	if body.Age != nil {
		add("age", "age", *body.Age)
	}
	if body.HeightM != nil {
		add("height_m", "heightM", *body.HeightM)
	}
	if body.WeightKG != nil {
		add("weight_kg", "weightKG", *body.WeightKG)
	}
	if body.Sex != nil {
		add("sex", "sex", strings.TrimSpace(*body.Sex))
	}
	if body.ActivityLevel != nil {
		// Store the canonical token so later reads never depend on aliasing.
		add("activity_level", "activityLevel", fitness.ParseActivityLevel(*body.ActivityLevel).String())
	}
	if body.Goal != nil {
		add("goal", "goal", fitness.ParseGoal(*body.Goal).String())
	}
	if body.Allergies != nil {
		add("allergies", "allergies", *body.Allergies)
	}
	if body.DietaryPreferences != nil {
		add("dietary_preferences", "dietaryPreferences", *body.DietaryPreferences)
	}
	if body.HealthIssues != nil {
		add("health_issues", "healthIssues", *body.HealthIssues)
	}

	if len(setClauses) == 0 {
		apiError(c, http.StatusBadRequest, "no fields to update")
		return
	}

	query := "UPDATE athlete_profiles SET " +
		strings.Join(setClauses, ", ") +
		", updated_at = now() WHERE user_id = @userID RETURNING " + profileColumns

	p, err := queryOne[athleteProfile](h.db, c, query, args)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "profile not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to update profile")
		}
		return
	}

	c.JSON(http.StatusOK, p)
}

// getProfileMacros returns BMR, TDEE and daily macro goals for the athlete.
// GET /api/profile/macros. Responds 422 when age, height, sex or weight is
// missing instead of guessing a default.
func (h *Handler) getProfileMacros(c *gin.Context) {
	userID := c.GetInt("user_id")

	p, err := h.fetchProfile(c, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "profile not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		}
		return
	}

	weight, ok, err := h.currentWeightKG(c, p)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch weight")
		return
	}
	if !ok {
		apiError(c, http.StatusUnprocessableEntity, "insufficient_data")
		return
	}

	res, ok := fitness.CalculateForProfile(p.calculatorProfile(), weight)
	if !ok {
		apiError(c, http.StatusUnprocessableEntity, "insufficient_data")
		return
	}
	c.JSON(http.StatusOK, res)
}
