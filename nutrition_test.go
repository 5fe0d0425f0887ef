package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"yallafit/go-api/internal/fitness"
)

func setupNutritionTest() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handler{}
	router := gin.New()
	// Skip auth middleware for tests; set a dummy user_id
	router.Use(func(c *gin.Context) {
		c.Set("user_id", 1)
		c.Next()
	})
	router.POST("/api/nutrition/calculate-macros", h.calculateMacros)
	return router
}

func doCalculateRequest(router *gin.Engine, body map[string]interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/nutrition/calculate-macros", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func intPtr(v int) *int { return &v }

/* ─── calculate-macros ───────────────────────────────────────────────── */

func TestCalculateMacros_ReferenceAthlete(t *testing.T) {
	w := doCalculateRequest(setupNutritionTest(), map[string]interface{}{
		"weight_kg":      70,
		"height_m":       1.75,
		"age":            30,
		"sex":            "male",
		"activity_level": "moderate",
		"goal":           "maintain",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp calculateMacrosResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BMR != 1648.75 {
		t.Errorf("expected bmr 1648.75, got %v", resp.BMR)
	}
	want := fitness.MacroGoals{Calories: 2556, ProteinG: 126, CarbsG: 337.2, FatsG: 78.1}
	if resp.Goals != want {
		t.Errorf("expected goals %+v, got %+v", want, resp.Goals)
	}
	if resp.ActivityLevel != "moderate" || resp.Goal != "maintain" {
		t.Errorf("expected moderate/maintain, got %s/%s", resp.ActivityLevel, resp.Goal)
	}
	if resp.Explanation == "" {
		t.Error("expected an explanation")
	}
}

func TestCalculateMacros_UnknownTokensFallBack(t *testing.T) {
	w := doCalculateRequest(setupNutritionTest(), map[string]interface{}{
		"weight_kg":      70,
		"height_m":       1.75,
		"age":            30,
		"sex":            "homme",
		"activity_level": "couch potato",
		"goal":           "???",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp calculateMacrosResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ActivityLevel != "moderate" || resp.Goal != "maintain" || resp.Goals.Calories != 2556 {
		t.Errorf("expected moderate/maintain fallback, got %+v", resp)
	}
}

func TestCalculateMacros_MissingSex(t *testing.T) {
	w := doCalculateRequest(setupNutritionTest(), map[string]interface{}{
		"weight_kg": 70,
		"height_m":  1.75,
		"age":       30,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCalculateMacros_HeightInCentimetres(t *testing.T) {
	w := doCalculateRequest(setupNutritionTest(), map[string]interface{}{
		"weight_kg": 70,
		"height_m":  175,
		"age":       30,
		"sex":       "male",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCalculateMacros_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/nutrition/calculate-macros", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	setupNutritionTest().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

/* ─── Meal plan targets ──────────────────────────────────────────────── */

func TestResolveMealPlanTargets(t *testing.T) {
	goals := &fitness.MacroGoals{Calories: 2556, ProteinG: 126, CarbsG: 337.2, FatsG: 78.1}

	t.Run("computed defaults", func(t *testing.T) {
		in, ok := resolveMealPlanTargets(generateMealPlanRequest{}, goals)
		if !ok {
			t.Fatal("expected ok")
		}
		if in.NumberOfMeals != 3 || in.CaloriesTarget != 2556 || in.ProteinTarget != 126 ||
			in.CarbsTarget != 337 || in.FatTarget != 78 {
			t.Errorf("unexpected targets: %+v", in)
		}
	})

	t.Run("explicit values win", func(t *testing.T) {
		req := generateMealPlanRequest{NumberOfMeals: 5, CaloriesTarget: intPtr(2000), FatTarget: intPtr(60)}
		in, ok := resolveMealPlanTargets(req, goals)
		if !ok {
			t.Fatal("expected ok")
		}
		if in.NumberOfMeals != 5 || in.CaloriesTarget != 2000 || in.FatTarget != 60 || in.ProteinTarget != 126 {
			t.Errorf("unexpected targets: %+v", in)
		}
	})

	t.Run("no goals, all explicit", func(t *testing.T) {
		req := generateMealPlanRequest{
			CaloriesTarget: intPtr(1800), ProteinTarget: intPtr(120),
			CarbsTarget: intPtr(200), FatTarget: intPtr(55),
		}
		if _, ok := resolveMealPlanTargets(req, nil); !ok {
			t.Error("expected ok with every target supplied")
		}
	})

	t.Run("no goals, missing target", func(t *testing.T) {
		req := generateMealPlanRequest{CaloriesTarget: intPtr(1800)}
		if _, ok := resolveMealPlanTargets(req, nil); ok {
			t.Error("expected insufficient data")
		}
	})
}

func TestValidateMealPlanRequest(t *testing.T) {
	cases := []struct {
		name  string
		req   generateMealPlanRequest
		valid bool
	}{
		{"empty", generateMealPlanRequest{}, true},
		{"six meals", generateMealPlanRequest{NumberOfMeals: 6}, true},
		{"seven meals", generateMealPlanRequest{NumberOfMeals: 7}, false},
		{"negative meals", generateMealPlanRequest{NumberOfMeals: -1}, false},
		{"zero calories", generateMealPlanRequest{CaloriesTarget: intPtr(0)}, false},
		{"huge protein", generateMealPlanRequest{ProteinTarget: intPtr(20000)}, false},
	}
	for _, tc := range cases {
		msg := validateMealPlanRequest(tc.req)
		if (msg == "") != tc.valid {
			t.Errorf("%s: expected valid=%v, got %q", tc.name, tc.valid, msg)
		}
	}
}

/* ─── Plan details ───────────────────────────────────────────────────── */

func TestGroupMeals(t *testing.T) {
	str := func(s string) *string { return &s }
	flt := func(f float64) *float64 { return &f }

	rows := []mealRow{
		{MealID: 1, MealName: "Breakfast", ScheduledTime: "07:00", FoodName: str("Oats"), Quantity: str("80g"),
			Calories: intPtr(296), ProteinG: flt(10.5), CarbsG: flt(51.5), FatG: flt(5.5)},
		{MealID: 1, MealName: "Breakfast", ScheduledTime: "07:00", FoodName: str("Milk"), Quantity: str("200ml"),
			Calories: intPtr(130), ProteinG: flt(6.5), CarbsG: flt(9.5), FatG: flt(7)},
		{MealID: 2, MealName: "Snack", ScheduledTime: "16:00"},
	}
	meals := groupMeals(rows)
	if len(meals) != 2 {
		t.Fatalf("expected 2 meals, got %d", len(meals))
	}

	b := meals[0]
	if len(b.Foods) != 2 || b.Foods[1].Quantity != "200ml" {
		t.Errorf("unexpected breakfast foods: %+v", b.Foods)
	}
	if b.Totals.Calories != 426 || b.Totals.ProteinG != 17 || b.Totals.CarbsG != 61 || b.Totals.FatG != 12.5 {
		t.Errorf("unexpected breakfast totals: %+v", b.Totals)
	}

	s := meals[1]
	if s.Name != "Snack" || len(s.Foods) != 0 || s.Foods == nil {
		t.Errorf("expected snack with an empty (non-nil) food list, got %+v", s)
	}
}

func TestGroupMeals_Empty(t *testing.T) {
	meals := groupMeals(nil)
	if meals == nil || len(meals) != 0 {
		t.Errorf("expected empty slice, got %v", meals)
	}
}
