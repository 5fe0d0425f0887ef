package main

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxPhotoBytes caps uploaded meal photos.
const maxPhotoBytes = 5 << 20

// photoExtensions maps accepted image content types to file extensions.
var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

const photoAnalysisColumns = `id, athlete_id, analysed_at, photo_path, detected_foods,
	calories, protein_g, carbs_g, fat_g, analysis, recommendations`

// analyzeFoodPhoto stores an uploaded meal photo, has the vision model
// estimate its nutrition and records the result.
// POST /api/food-analysis (multipart, field "photo").
func (h *Handler) analyzeFoodPhoto(c *gin.Context) {
	userID := c.GetInt("user_id")

	fh, err := c.FormFile("photo")
	if err != nil {
		apiError(c, http.StatusBadRequest, "photo file is required")
		return
	}
	if fh.Size > maxPhotoBytes {
		apiError(c, http.StatusBadRequest, "photo must be 5MB or smaller")
		return
	}

	f, err := fh.Open()
	if err != nil {
		apiError(c, http.StatusBadRequest, "could not read photo")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
	if err != nil || len(data) > maxPhotoBytes {
		apiError(c, http.StatusBadRequest, "could not read photo")
		return
	}

	// Sniff rather than trust the client's Content-Type header.
	mimeType := http.DetectContentType(data)
	ext, ok := photoExtensions[mimeType]
	if !ok {
		apiError(c, http.StatusBadRequest, "photo must be a JPEG, PNG or WebP image")
		return
	}

	result, err := h.ai.analyzeFoodImage(c.Request.Context(), data, mimeType)
	if err != nil {
		log.Printf("[analyzeFoodPhoto] AI error: %v", err)
		apiError(c, http.StatusBadGateway, "photo analysis failed")
		return
	}
	if len(result.Foods) == 0 {
		apiError(c, http.StatusUnprocessableEntity, "no food detected in photo")
		return
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		log.Printf("[analyzeFoodPhoto] mkdir: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to store photo")
		return
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(h.cfg.UploadDir, name), data, 0o644); err != nil {
		log.Printf("[analyzeFoodPhoto] write: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to store photo")
		return
	}

	// Encode JSONB ourselves: the simple query protocol sends untyped text.
	foods, err := json.Marshal(result.Foods)
	if err != nil {
		removePhoto(h.cfg.UploadDir, name)
		apiError(c, http.StatusInternalServerError, "failed to store analysis")
		return
	}

	rec, err := queryOne[photoAnalysis](h.db, c,
		`INSERT INTO photo_analyses (athlete_id, photo_path, detected_foods, calories, protein_g, carbs_g, fat_g,
		                             analysis, recommendations)
		 VALUES (@userID, @path, @foods::jsonb, @cal, @pro, @carb, @fat, @analysis, @recs)
		 RETURNING `+photoAnalysisColumns,
		pgx.NamedArgs{
			"userID":   userID,
			"path":     name,
			"foods":    string(foods),
			"cal":      roundCalories(result.TotalCalories),
			"pro":      result.TotalProteinG,
			"carb":     result.TotalCarbsG,
			"fat":      result.TotalFatG,
			"analysis": nullIfEmpty(result.Analysis),
			"recs":     nullIfEmpty(result.Recommendations),
		})
	if err != nil {
		log.Printf("[analyzeFoodPhoto] insert: %v", err)
		removePhoto(h.cfg.UploadDir, name)
		apiError(c, http.StatusInternalServerError, "failed to store analysis")
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// removePhoto deletes a stored photo. A file that is already gone is not an
// error.
func removePhoto(dir, name string) {
	if name == "" {
		return
	}
	if err := os.Remove(filepath.Join(dir, filepath.Base(name))); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[removePhoto] %s: %v", name, err)
	}
}

// getTodayNutrition returns today's analysed meals and their totals.
// GET /api/food-analysis/today?date=YYYY-MM-DD (defaults to today, UTC).
func (h *Handler) getTodayNutrition(c *gin.Context) {
	h.respondDay(c, c.DefaultQuery("date", time.Now().UTC().Format("2006-01-02")))
}

// getDailyNutrition returns the analysed meals of one given day.
// GET /api/food-analysis/daily/:date
func (h *Handler) getDailyNutrition(c *gin.Context) {
	h.respondDay(c, c.Param("date"))
}

func (h *Handler) respondDay(c *gin.Context, date string) {
	userID := c.GetInt("user_id")

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	meals, err := queryMany[photoAnalysis](h.db, c,
		`SELECT `+photoAnalysisColumns+` FROM photo_analyses
		 WHERE athlete_id = @userID AND analysed_at >= @start AND analysed_at < @end
		 ORDER BY analysed_at`,
		pgx.NamedArgs{"userID": userID, "start": day, "end": day.AddDate(0, 0, 1)})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch analyses")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summarizeDay(day, meals),
		"meals":   meals,
	})
}

// getFoodAnalysis returns one of the caller's analyses.
// GET /api/food-analysis/:id
func (h *Handler) getFoodAnalysis(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid id")
		return
	}

	rec, err := queryOne[photoAnalysis](h.db, c,
		`SELECT `+photoAnalysisColumns+` FROM photo_analyses WHERE id = @id AND athlete_id = @userID`,
		pgx.NamedArgs{"id": id, "userID": c.GetInt("user_id")})
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch analysis")
		return
	}

	c.JSON(http.StatusOK, rec)
}

// deleteFoodAnalysis removes one of the caller's analyses and its photo.
// DELETE /api/food-analysis/:id
func (h *Handler) deleteFoodAnalysis(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid id")
		return
	}

	var photoPath *string
	err = h.db.QueryRow(c,
		`DELETE FROM photo_analyses WHERE id = @id AND athlete_id = @userID RETURNING photo_path`,
		pgx.NamedArgs{"id": id, "userID": c.GetInt("user_id")}).Scan(&photoPath)
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		log.Printf("[deleteFoodAnalysis] %v", err)
		apiError(c, http.StatusInternalServerError, "failed to delete analysis")
		return
	}
	if photoPath != nil {
		removePhoto(h.cfg.UploadDir, *photoPath)
	}

	c.Status(http.StatusNoContent)
}

// summarizeDay totals one day's analyses.
func summarizeDay(day time.Time, meals []photoAnalysis) dailyNutritionSummary {
	s := dailyNutritionSummary{Date: DateOnly{day}, MealCount: len(meals)}
	for _, m := range meals {
		s.TotalCalories += m.Calories
		s.TotalProteinG += m.ProteinG
		s.TotalCarbsG += m.CarbsG
		s.TotalFatG += m.FatG
	}
	return s
}

// getNutritionHistory returns per-day totals for the last N days.
// GET /api/food-analysis/history?days=N (default 30, max 365). Days without
// analyses are omitted.
func (h *Handler) getNutritionHistory(c *gin.Context) {
	userID := c.GetInt("user_id")

	days := 30
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 365 {
			apiError(c, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	history, err := queryMany[dailyNutritionSummary](h.db, c,
		`SELECT (analysed_at AT TIME ZONE 'UTC')::date AS day,
		        SUM(calories)::int AS total_calories,
		        SUM(protein_g) AS total_protein_g,
		        SUM(carbs_g) AS total_carbs_g,
		        SUM(fat_g) AS total_fat_g,
		        COUNT(*)::int AS meal_count
		 FROM photo_analyses
		 WHERE athlete_id = @userID AND analysed_at >= @since
		 GROUP BY day
		 ORDER BY day DESC`,
		pgx.NamedArgs{"userID": userID, "since": since})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch history")
		return
	}

	c.JSON(http.StatusOK, history)
}
