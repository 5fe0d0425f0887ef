package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler holds shared dependencies (db pool, AI client, config) for all route handlers.
type Handler struct {
	db  *pgxpool.Pool
	ai  *aiClient
	cfg config
}

/* ─── Database helpers ────────────────────────────────────────────────── */

// queryOne runs a query and scans the first row into T using RowToStructByName.
// Logs query and scan errors for debugging (e.g. struct/column mismatches).
func queryOne[T any](pool *pgxpool.Pool, ctx context.Context, sql string, args pgx.NamedArgs) (T, error) {
	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		log.Printf("[queryOne] Query error: %v", err)
		var zero T
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("[queryOne] Scan error: %v", err)
	}
	return result, err
}

// queryMany runs a query and scans all rows into []T using RowToStructByName.
// The result is never nil so handlers serialize empty arrays, not null.
func queryMany[T any](pool *pgxpool.Pool, ctx context.Context, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		log.Printf("[queryMany] Query error: %v", err)
		return nil, err
	}
	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		log.Printf("[queryMany] Scan error: %v", err)
		return nil, err
	}
	if results == nil {
		results = []T{}
	}
	return results, nil
}

// queryScalars collects a single-column result, e.g. a list of timestamps.
func queryScalars[T any](pool *pgxpool.Pool, ctx context.Context, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		log.Printf("[queryScalars] Query error: %v", err)
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[T])
}

// Postgres SQLSTATE codes the handlers map to client errors.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// pgErrorCode returns the SQLSTATE of a Postgres error, or "" for other errors.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

/* ─── Server setup ────────────────────────────────────────────────────── */

// getDBPool creates a connection pool.
func getDBPool(dbURL string) *pgxpool.Pool {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to parse DB URL: %v\n", err)
		os.Exit(1)
	}
	// Use simple query protocol to avoid "cached plan must not change result type"
	// errors from server-side prepared statement caches after schema changes.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	log.Println("DB pool ready")
	return pool
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.GET("/api/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.POST("/api/login", h.login)
	router.POST("/api/register", h.register)

	// Authenticated routes
	api := router.Group("/api", h.authMiddleware())
	api.PUT("/user/change-password", h.changePassword)

	api.GET("/profile", h.getProfile)
	api.PATCH("/profile", h.patchProfile)
	api.GET("/profile/macros", h.getProfileMacros)

	api.GET("/biometrics", h.getBiometrics)
	api.GET("/biometrics/latest", h.getLatestBiometric)
	api.POST("/biometrics", h.createBiometric)
	api.DELETE("/biometrics/:id", h.deleteBiometric)

	api.GET("/exercises", h.getExercises)
	api.GET("/exercises/:id", h.getExercise)

	api.GET("/programmes/public", h.getPublicProgrammes)
	api.GET("/programmes/:id", h.getProgramme)
	api.GET("/programmes/:id/enrollment-status", h.getEnrollmentStatus)
	api.POST("/programmes/:id/enroll", requireRole(roleSportif), h.enrollInProgramme)

	api.POST("/training/sessions", h.saveTrainingSession)
	api.GET("/training/sessions", h.getTrainingSessions)
	api.GET("/training/sessions/:id", h.getTrainingSession)
	api.GET("/training/stats", h.getTrainingStats)
	api.GET("/training/exercises", h.getExercisesWithHistory)
	api.GET("/training/progress/:exerciseId", h.getExerciseProgress)

	api.POST("/nutrition/calculate-macros", h.calculateMacros)
	api.POST("/nutrition/generate-plan", h.generateMealPlan)
	api.GET("/nutrition/plans", h.getNutritionPlans)
	api.GET("/nutrition/plans/:id", h.getNutritionPlan)

	api.POST("/food-analysis", h.analyzeFoodPhoto)
	api.GET("/food-analysis/today", h.getTodayNutrition)
	api.GET("/food-analysis/history", h.getNutritionHistory)
	api.GET("/food-analysis/daily/:date", h.getDailyNutrition)
	api.GET("/food-analysis/:id", h.getFoodAnalysis)
	api.DELETE("/food-analysis/:id", h.deleteFoodAnalysis)

	api.GET("/dashboard/sportif", h.getSportifDashboard)

	// Coach and admin routes
	coach := api.Group("", requireRole(roleCoach, roleAdmin))
	coach.POST("/exercises", h.createExercise)
	coach.PATCH("/exercises/:id", h.updateExercise)
	coach.DELETE("/exercises/:id", h.deleteExercise)

	coach.GET("/programmes", h.getProgrammes)
	coach.POST("/programmes", h.createProgramme)
	coach.PATCH("/programmes/:id", h.updateProgramme)
	coach.DELETE("/programmes/:id", h.deleteProgramme)
	coach.POST("/programmes/:id/sessions", h.addProgrammeSession)
	coach.PUT("/programmes/:id/sessions/:sessionId", h.updateProgrammeSession)
	coach.DELETE("/programmes/:id/sessions/:sessionId", h.deleteProgrammeSession)

	coach.POST("/coach/assign-program", h.assignProgramme)
	coach.GET("/coach/athletes", h.getAthletes)
	coach.GET("/coach/athletes/:id", h.getAthleteDetails)
	coach.GET("/coach/athletes/:id/export", h.exportAthlete)
	coach.GET("/dashboard/coach", h.getCoachDashboard)

	// Admin-only routes
	admin := api.Group("/admin", requireRole(roleAdmin))
	admin.GET("/stats", h.getAdminStats)
	admin.GET("/top-programs", h.getTopProgrammes)
	admin.GET("/recent-users", h.getRecentUsers)
}
