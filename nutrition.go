package main

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"yallafit/go-api/internal/fitness"
)

/* ─── Macro calculator ───────────────────────────────────────────────── */

// calculateMacrosRequest is the request body for POST /api/nutrition/calculate-macros.
type calculateMacrosRequest struct {
	WeightKG      float64 `json:"weight_kg"`
	HeightM       float64 `json:"height_m"`
	Age           int     `json:"age"`
	Sex           string  `json:"sex"`
	ActivityLevel string  `json:"activity_level"`
	Goal          string  `json:"goal"`
}

// calculateMacrosResponse adds a readable summary to the calculator output.
type calculateMacrosResponse struct {
	fitness.MacroResult
	ActivityLevel string `json:"activity_level"`
	Goal          string `json:"goal"`
	Explanation   string `json:"explanation"`
}

// macroExplanation summarises how the goals were derived.
func macroExplanation(res fitness.MacroResult, level fitness.ActivityLevel, goal fitness.Goal) string {
	return fmt.Sprintf("BMR %.0f kcal × %s activity = %.0f kcal maintenance; %s target %d kcal.",
		res.BMR, level, res.TDEE, goal, res.Goals.Calories)
}

// calculateMacros runs the local calculator on the request body.
// POST /api/nutrition/calculate-macros. Unknown activity/goal tokens fall
// back to moderate/maintain; missing body data is a 422.
func (h *Handler) calculateMacros(c *gin.Context) {
	var body calculateMacrosRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.WeightKG < 0 || body.HeightM < 0 || body.Age < 0 || body.HeightM > 3 {
		apiError(c, http.StatusBadRequest, "weight_kg, height_m and age must be positive (height in metres)")
		return
	}

	profile := fitness.Profile{
		Age:           &body.Age,
		HeightM:       &body.HeightM,
		Sex:           &body.Sex,
		ActivityLevel: &body.ActivityLevel,
		Goal:          &body.Goal,
	}
	res, ok := fitness.CalculateForProfile(profile, body.WeightKG)
	if !ok {
		apiError(c, http.StatusUnprocessableEntity, "insufficient_data")
		return
	}

	level := fitness.ParseActivityLevel(body.ActivityLevel)
	goal := fitness.ParseGoal(body.Goal)
	c.JSON(http.StatusOK, calculateMacrosResponse{
		MacroResult:   res,
		ActivityLevel: level.String(),
		Goal:          goal.String(),
		Explanation:   macroExplanation(res, level, goal),
	})
}

/* ─── Meal plans ─────────────────────────────────────────────────────── */

// generateMealPlanRequest is the request body for POST /api/nutrition/generate-plan.
// Targets left nil default to the athlete's computed macro goals.
type generateMealPlanRequest struct {
	NumberOfMeals  int  `json:"number_of_meals"`
	CaloriesTarget *int `json:"calories_target"`
	ProteinTarget  *int `json:"protein_target_g"`
	CarbsTarget    *int `json:"carbs_target_g"`
	FatTarget      *int `json:"fat_target_g"`
}

// resolveMealPlanTargets fills missing targets from computed goals. ok=false
// when a target is missing and no goals could be computed.
func resolveMealPlanTargets(req generateMealPlanRequest, goals *fitness.MacroGoals) (mealPlanInput, bool) {
	in := mealPlanInput{NumberOfMeals: req.NumberOfMeals}
	if in.NumberOfMeals == 0 {
		in.NumberOfMeals = 3
	}

	pick := func(explicit *int, computed float64) (int, bool) {
		if explicit != nil {
			return *explicit, true
		}
		if goals == nil {
			return 0, false
		}
		return int(math.Round(computed)), true
	}
	var cal, pro, carb, fat float64
	if goals != nil {
		cal, pro, carb, fat = float64(goals.Calories), goals.ProteinG, goals.CarbsG, goals.FatsG
	}

	var ok1, ok2, ok3, ok4 bool
	in.CaloriesTarget, ok1 = pick(req.CaloriesTarget, cal)
	in.ProteinTarget, ok2 = pick(req.ProteinTarget, pro)
	in.CarbsTarget, ok3 = pick(req.CarbsTarget, carb)
	in.FatTarget, ok4 = pick(req.FatTarget, fat)
	return in, ok1 && ok2 && ok3 && ok4
}

func validateMealPlanRequest(req generateMealPlanRequest) string {
	if req.NumberOfMeals < 0 || req.NumberOfMeals > 6 {
		return "number_of_meals must be between 1 and 6"
	}
	for _, t := range []*int{req.CaloriesTarget, req.ProteinTarget, req.CarbsTarget, req.FatTarget} {
		if t != nil && (*t <= 0 || *t > 10000) {
			return "targets must be between 1 and 10000"
		}
	}
	return ""
}

// generateMealPlan asks the AI for a plan and stores it as the athlete's
// active plan. POST /api/nutrition/generate-plan.
func (h *Handler) generateMealPlan(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body generateMealPlanRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateMealPlanRequest(body); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}

	p, err := h.fetchProfile(c, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "profile not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		}
		return
	}
	weight, hasWeight, err := h.currentWeightKG(c, p)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch weight")
		return
	}

	var goals *fitness.MacroGoals
	var weightPtr *float64
	if hasWeight {
		weightPtr = &weight
		if res, ok := fitness.CalculateForProfile(p.calculatorProfile(), weight); ok {
			goals = &res.Goals
		}
	}
	in, ok := resolveMealPlanTargets(body, goals)
	if !ok {
		apiError(c, http.StatusUnprocessableEntity, "insufficient_data")
		return
	}
	in.Profile = p
	in.WeightKG = weightPtr

	plan, err := h.ai.generateMealPlan(c.Request.Context(), in)
	if err != nil {
		log.Printf("[generateMealPlan] AI error: %v", err)
		apiError(c, http.StatusBadGateway, "meal plan generation failed")
		return
	}

	planID, err := h.saveMealPlan(c, userID, in, plan)
	if err != nil {
		log.Printf("[generateMealPlan] save: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to save meal plan")
		return
	}

	detail, err := h.loadNutritionPlan(c, userID, planID)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch meal plan")
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// saveMealPlan deactivates older plans and writes the new plan with its meals
// and foods in one transaction.
func (h *Handler) saveMealPlan(c *gin.Context, userID int, in mealPlanInput, plan aiMealPlan) (int, error) {
	tx, err := h.db.Begin(c)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(c)

	if _, err := tx.Exec(c, "UPDATE nutrition_plans SET is_active = false WHERE athlete_id = $1 AND is_active", userID); err != nil {
		return 0, fmt.Errorf("deactivate plans: %w", err)
	}

	var planID int
	err = tx.QueryRow(c,
		`INSERT INTO nutrition_plans (athlete_id, calories_target, protein_target_g, carbs_target_g, fat_target_g,
		                              overall_analysis, personalized_advice)
		 VALUES (@userID, @cal, @pro, @carb, @fat, @analysis, @advice)
		 RETURNING id`,
		pgx.NamedArgs{
			"userID":   userID,
			"cal":      in.CaloriesTarget,
			"pro":      in.ProteinTarget,
			"carb":     in.CarbsTarget,
			"fat":      in.FatTarget,
			"analysis": nullIfEmpty(plan.OverallAnalysis),
			"advice":   nullIfEmpty(plan.PersonalizedAdvice),
		}).Scan(&planID)
	if err != nil {
		return 0, fmt.Errorf("insert plan: %w", err)
	}

	for _, m := range plan.Meals {
		var mealID int
		err := tx.QueryRow(c,
			`INSERT INTO meals (plan_id, name, scheduled_time, explanation, nutritional_benefits)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			planID, m.Name, m.Time, nullIfEmpty(m.Explanation), nullIfEmpty(m.NutritionalBenefits)).Scan(&mealID)
		if err != nil {
			return 0, fmt.Errorf("insert meal %q: %w", m.Name, err)
		}
		for _, f := range m.Foods {
			if _, err := tx.Exec(c,
				`INSERT INTO meal_foods (meal_id, name, quantity, calories, protein_g, carbs_g, fat_g)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				mealID, f.Name, f.Quantity, roundCalories(f.Calories), f.ProteinG, f.CarbsG, f.FatG); err != nil {
				return 0, fmt.Errorf("insert food %q: %w", f.Name, err)
			}
		}
	}

	return planID, tx.Commit(c)
}

func nullIfEmpty(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

// getNutritionPlans lists the athlete's plans, newest first.
// GET /api/nutrition/plans.
func (h *Handler) getNutritionPlans(c *gin.Context) {
	userID := c.GetInt("user_id")

	plans, err := queryMany[nutritionPlan](h.db, c,
		nutritionPlanSelect+`
		 WHERE np.athlete_id = @userID
		 ORDER BY np.generated_at DESC`,
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch plans")
		return
	}

	c.JSON(http.StatusOK, plans)
}

const nutritionPlanSelect = `SELECT np.id, np.athlete_id, np.generated_at, np.calories_target,
	np.protein_target_g, np.carbs_target_g, np.fat_target_g, np.is_active,
	np.overall_analysis, np.personalized_advice,
	(SELECT COUNT(*) FROM meals m WHERE m.plan_id = np.id)::int AS meal_count
	FROM nutrition_plans np`

// mealRow is one meal_foods row joined to its meal; meals without foods
// come back once with a nil food.
type mealRow struct {
	MealID              int      `db:"meal_id"`
	MealName            string   `db:"meal_name"`
	ScheduledTime       string   `db:"scheduled_time"`
	Explanation         *string  `db:"explanation"`
	NutritionalBenefits *string  `db:"nutritional_benefits"`
	FoodName            *string  `db:"food_name"`
	Quantity            *string  `db:"quantity"`
	Calories            *int     `db:"calories"`
	ProteinG            *float64 `db:"protein_g"`
	CarbsG              *float64 `db:"carbs_g"`
	FatG                *float64 `db:"fat_g"`
}

type mealDetail struct {
	ID                  int          `json:"id"`
	Name                string       `json:"meal"`
	Time                string       `json:"time"`
	Explanation         *string      `json:"explanation"`
	NutritionalBenefits *string      `json:"nutritional_benefits"`
	Foods               []aiFoodItem `json:"foods"`
	Totals              aiFoodItem   `json:"total_macros"`
}

type nutritionPlanDetail struct {
	nutritionPlan
	Meals []mealDetail `json:"meals"`
}

// groupMeals folds joined rows (ordered by meal) into meals with totals.
func groupMeals(rows []mealRow) []mealDetail {
	meals := []mealDetail{}
	index := map[int]int{}
	for _, r := range rows {
		i, ok := index[r.MealID]
		if !ok {
			i = len(meals)
			index[r.MealID] = i
			meals = append(meals, mealDetail{
				ID:                  r.MealID,
				Name:                r.MealName,
				Time:                r.ScheduledTime,
				Explanation:         r.Explanation,
				NutritionalBenefits: r.NutritionalBenefits,
				Foods:               []aiFoodItem{},
				Totals:              aiFoodItem{Name: "total"},
			})
		}
		if r.FoodName == nil {
			continue
		}
		f := aiFoodItem{Name: *r.FoodName}
		if r.Quantity != nil {
			f.Quantity = *r.Quantity
		}
		if r.Calories != nil {
			f.Calories = float64(*r.Calories)
		}
		if r.ProteinG != nil {
			f.ProteinG = *r.ProteinG
		}
		if r.CarbsG != nil {
			f.CarbsG = *r.CarbsG
		}
		if r.FatG != nil {
			f.FatG = *r.FatG
		}
		m := &meals[i]
		m.Foods = append(m.Foods, f)
		m.Totals.Calories += f.Calories
		m.Totals.ProteinG += f.ProteinG
		m.Totals.CarbsG += f.CarbsG
		m.Totals.FatG += f.FatG
	}
	return meals
}

// loadNutritionPlan fetches one of the athlete's plans with meals and foods.
func (h *Handler) loadNutritionPlan(c *gin.Context, userID, planID int) (nutritionPlanDetail, error) {
	args := pgx.NamedArgs{"userID": userID, "planID": planID}
	plan, err := queryOne[nutritionPlan](h.db, c,
		nutritionPlanSelect+" WHERE np.id = @planID AND np.athlete_id = @userID", args)
	if err != nil {
		return nutritionPlanDetail{}, err
	}

	rows, err := queryMany[mealRow](h.db, c,
		`SELECT m.id AS meal_id, m.name AS meal_name, m.scheduled_time, m.explanation, m.nutritional_benefits,
		        f.name AS food_name, f.quantity, f.calories, f.protein_g, f.carbs_g, f.fat_g
		 FROM meals m
		 LEFT JOIN meal_foods f ON f.meal_id = m.id
		 WHERE m.plan_id = @planID
		 ORDER BY m.scheduled_time, m.id, f.id`, args)
	if err != nil {
		return nutritionPlanDetail{}, err
	}

	return nutritionPlanDetail{nutritionPlan: plan, Meals: groupMeals(rows)}, nil
}

// getNutritionPlan returns one plan with its meals.
// GET /api/nutrition/plans/:id. Plans of other athletes are reported as not found.
func (h *Handler) getNutritionPlan(c *gin.Context) {
	userID := c.GetInt("user_id")
	planID, err := strconv.Atoi(c.Param("id"))
	if err != nil || planID <= 0 {
		apiError(c, http.StatusBadRequest, "invalid plan id")
		return
	}

	detail, err := h.loadNutritionPlan(c, userID, planID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "plan not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch plan")
		}
		return
	}

	c.JSON(http.StatusOK, detail)
}
