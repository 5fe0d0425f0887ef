package main

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"yallafit/go-api/internal/fitness"
)

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format("2006-01-02") + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ScanDate implements pgtype.DateScanner so pgx can scan PostgreSQL date
// columns (e.g. date_trunc results cast to ::date) into DateOnly.
func (d *DateOnly) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		d.Time = time.Time{}
		return nil
	}
	d.Time = v.Time
	return nil
}

/* ─── Roles ──────────────────────────────────────────────────────────── */

const (
	roleAdmin   = "Admin"
	roleCoach   = "Coach"
	roleSportif = "Sportif"
)

/* ─── Domain structs ─────────────────────────────────────────────────── */

// user maps to the users table. Password is hidden from JSON responses.
type user struct {
	ID        int        `json:"id"         db:"id"`
	FullName  string     `json:"full_name"  db:"full_name"`
	Email     string     `json:"email"      db:"email"`
	Password  string     `json:"-"          db:"password"`
	Role      string     `json:"role"       db:"role"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

// athleteProfile maps to athlete_profiles. Every body field is nullable; a
// fresh row exists as soon as the account does.
type athleteProfile struct {
	UserID             int        `json:"user_id"             db:"user_id"`
	Age                *int       `json:"age"                 db:"age"`
	HeightM            *float64   `json:"height_m"            db:"height_m"`
	WeightKG           *float64   `json:"weight_kg"           db:"weight_kg"`
	Sex                *string    `json:"sex"                 db:"sex"`
	ActivityLevel      *string    `json:"activity_level"      db:"activity_level"`
	Goal               *string    `json:"goal"                db:"goal"`
	Allergies          *string    `json:"allergies"           db:"allergies"`
	DietaryPreferences *string    `json:"dietary_preferences" db:"dietary_preferences"`
	HealthIssues       *string    `json:"health_issues"       db:"health_issues"`
	ProgrammeID        *int       `json:"programme_id"        db:"programme_id"`
	UpdatedAt          *time.Time `json:"updated_at"          db:"updated_at"`
}

// calculatorProfile converts the row into the fitness package's input.
func (p athleteProfile) calculatorProfile() fitness.Profile {
	return fitness.Profile{
		Age:           p.Age,
		HeightM:       p.HeightM,
		Sex:           p.Sex,
		ActivityLevel: p.ActivityLevel,
		Goal:          p.Goal,
	}
}

// biometricMeasurement maps to biometric_measurements. Append-only; the
// latest row per athlete is the current body state.
type biometricMeasurement struct {
	ID             int       `json:"id"               db:"id"`
	AthleteID      int       `json:"athlete_id"       db:"athlete_id"`
	MeasuredAt     time.Time `json:"measured_at"      db:"measured_at"`
	WeightKG       float64   `json:"weight_kg"        db:"weight_kg"`
	BodyFatPercent *float64  `json:"body_fat_percent" db:"body_fat_percent"`
	WaistCM        *float64  `json:"waist_cm"         db:"waist_cm"`
}

// programme maps to programmes, with the planned session count joined in.
type programme struct {
	ID            int        `json:"id"             db:"id"`
	CoachID       int        `json:"coach_id"       db:"coach_id"`
	Title         string     `json:"title"          db:"title"`
	DurationWeeks int        `json:"duration_weeks" db:"duration_weeks"`
	IsPublic      bool       `json:"is_public"      db:"is_public"`
	CreatedAt     *time.Time `json:"created_at"     db:"created_at"`
	SessionCount  int        `json:"session_count"  db:"session_count"`
	CoachName     string     `json:"coach_name"     db:"coach_name"`
}

// plannedExercise is one exercise prescribed by a programme session.
type plannedExercise struct {
	ID                 int      `json:"id"                  db:"id"`
	ProgrammeSessionID int      `json:"-"                   db:"programme_session_id"`
	ExerciseID         int      `json:"exercise_id"         db:"exercise_id"`
	ExerciseName       string   `json:"exercise_name"       db:"exercise_name"`
	TargetMuscle       *string  `json:"target_muscle"       db:"target_muscle"`
	OrderIndex         int      `json:"order_index"         db:"order_index"`
	Sets               int      `json:"sets"                db:"sets"`
	Reps               int      `json:"reps"                db:"reps"`
	SuggestedWeightKG  *float64 `json:"suggested_weight_kg" db:"suggested_weight_kg"`
}

// programmeSession is a planned session with its prescribed exercises.
type programmeSession struct {
	ID        int               `json:"id"        db:"id"`
	Name      string            `json:"name"      db:"name"`
	DayIndex  int               `json:"day_index" db:"day_index"`
	Exercises []plannedExercise `json:"exercises" db:"-"`
}

// programmeDetail is the response of GET /api/programmes/:id.
type programmeDetail struct {
	programme
	Sessions []programmeSession `json:"sessions"`
}

// trainingSessionRow is one row of the training history list.
type trainingSessionRow struct {
	ID                 int       `json:"id"                   db:"id"`
	ProgrammeID        int       `json:"programme_id"         db:"programme_id"`
	ProgrammeTitle     string    `json:"programme_title"      db:"programme_title"`
	ProgrammeSessionID int       `json:"programme_session_id" db:"programme_session_id"`
	SessionName        string    `json:"session_name"         db:"session_name"`
	CompletedAt        time.Time `json:"completed_at"         db:"completed_at"`
	DurationMinutes    int       `json:"duration_minutes"     db:"duration_minutes"`
	Notes              *string   `json:"notes"                db:"notes"`
	ExerciseCount      int       `json:"exercise_count"       db:"exercise_count"`
	TotalSets          int       `json:"total_sets"           db:"total_sets"`
}

// nutritionPlan maps to nutrition_plans, with the meal count joined in.
type nutritionPlan struct {
	ID                 int       `json:"id"                  db:"id"`
	AthleteID          int       `json:"athlete_id"          db:"athlete_id"`
	GeneratedAt        time.Time `json:"generated_at"        db:"generated_at"`
	CaloriesTarget     int       `json:"calories_target"     db:"calories_target"`
	ProteinTargetG     int       `json:"protein_target_g"    db:"protein_target_g"`
	CarbsTargetG       int       `json:"carbs_target_g"      db:"carbs_target_g"`
	FatTargetG         int       `json:"fat_target_g"        db:"fat_target_g"`
	IsActive           bool      `json:"is_active"           db:"is_active"`
	OverallAnalysis    *string   `json:"overall_analysis"    db:"overall_analysis"`
	PersonalizedAdvice *string   `json:"personalized_advice" db:"personalized_advice"`
	MealCount          int       `json:"meal_count"          db:"meal_count"`
}

// photoAnalysis maps to photo_analyses. DetectedFoods is the raw JSONB array.
type photoAnalysis struct {
	ID              int          `json:"id"              db:"id"`
	AthleteID       int          `json:"athlete_id"      db:"athlete_id"`
	AnalysedAt      time.Time    `json:"analysed_at"     db:"analysed_at"`
	PhotoPath       string       `json:"photo_path"      db:"photo_path"`
	DetectedFoods   []aiFoodItem `json:"detected_foods"  db:"detected_foods"`
	Calories        int          `json:"calories"        db:"calories"`
	ProteinG        float64      `json:"protein_g"       db:"protein_g"`
	CarbsG          float64      `json:"carbs_g"         db:"carbs_g"`
	FatG            float64      `json:"fat_g"           db:"fat_g"`
	Analysis        *string      `json:"analysis"        db:"analysis"`
	Recommendations *string      `json:"recommendations" db:"recommendations"`
}

// dailyNutritionSummary totals the photo analyses of one day.
type dailyNutritionSummary struct {
	Date          DateOnly `json:"date"           db:"day"`
	TotalCalories int      `json:"total_calories" db:"total_calories"`
	TotalProteinG float64  `json:"total_protein_g" db:"total_protein_g"`
	TotalCarbsG   float64  `json:"total_carbs_g"  db:"total_carbs_g"`
	TotalFatG     float64  `json:"total_fat_g"    db:"total_fat_g"`
	MealCount     int      `json:"meal_count"     db:"meal_count"`
}

/* ─── Request bodies ─────────────────────────────────────────────────── */

// patchProfileRequest is the request body for PATCH /api/profile.
// All fields are pointers; only non-nil fields get written to the database.
type patchProfileRequest struct {
	Age                *int     `json:"age"`
	HeightM            *float64 `json:"height_m"`
	WeightKG           *float64 `json:"weight_kg"`
	Sex                *string  `json:"sex"`
	ActivityLevel      *string  `json:"activity_level"`
	Goal               *string  `json:"goal"`
	Allergies          *string  `json:"allergies"`
	DietaryPreferences *string  `json:"dietary_preferences"`
	HealthIssues       *string  `json:"health_issues"`
}

// createBiometricRequest is the request body for POST /api/biometrics.
// MeasuredAt defaults to now.
type createBiometricRequest struct {
	MeasuredAt     *time.Time `json:"measured_at"`
	WeightKG       float64    `json:"weight_kg"`
	BodyFatPercent *float64   `json:"body_fat_percent"`
	WaistCM        *float64   `json:"waist_cm"`
}

// saveTrainingSessionRequest is the request body for POST /api/training/sessions.
type saveTrainingSessionRequest struct {
	ProgrammeID        int                      `json:"programme_id"`
	ProgrammeSessionID int                      `json:"programme_session_id"`
	CompletedAt        time.Time                `json:"completed_at"`
	DurationMinutes    int                      `json:"duration_minutes"`
	Notes              *string                  `json:"notes"`
	Exercises          []trainingExerciseRecord `json:"exercises"`
}

type trainingExerciseRecord struct {
	ExerciseID int                 `json:"exercise_id"`
	OrderIndex int                 `json:"order_index"`
	Sets       []trainingSetRecord `json:"sets"`
}

type trainingSetRecord struct {
	SetNumber int      `json:"set_number"`
	Reps      int      `json:"reps"`
	WeightKG  *float64 `json:"weight_kg"`
	Completed bool     `json:"completed"`
	Notes     *string  `json:"notes"`
}

// createProgrammeRequest is the request body for POST /api/programmes.
type createProgrammeRequest struct {
	Title         string   `json:"title"`
	DurationWeeks int      `json:"duration_weeks"`
	IsPublic      bool     `json:"is_public"`
	Sessions      []string `json:"sessions"`
}

// updateProgrammeRequest is the request body for PATCH /api/programmes/:id.
// Nil fields are left unchanged.
type updateProgrammeRequest struct {
	Title         *string `json:"title"`
	DurationWeeks *int    `json:"duration_weeks"`
	IsPublic      *bool   `json:"is_public"`
}

// plannedExerciseRequest prescribes one exercise in a programme session.
type plannedExerciseRequest struct {
	ExerciseID        int      `json:"exercise_id"`
	Sets              int      `json:"sets"`
	Reps              int      `json:"reps"`
	SuggestedWeightKG *float64 `json:"suggested_weight_kg"`
}

// programmeSessionRequest is the body for adding or updating a programme
// session. On update, a nil Exercises keeps the current prescription and a
// non-nil one replaces it.
type programmeSessionRequest struct {
	Name      *string                   `json:"name"`
	DayIndex  *int                      `json:"day_index"`
	Exercises *[]plannedExerciseRequest `json:"exercises"`
}

// assignProgrammeRequest is the request body for POST /api/coach/assign-program.
type assignProgrammeRequest struct {
	AthleteID   int `json:"athlete_id"`
	ProgrammeID int `json:"programme_id"`
}
