package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// setupAITest starts a mock chat completions server. The returned pointer
// receives the decoded body of the last request.
func setupAITest(t *testing.T, status int, content string) (*aiClient, *map[string]interface{}) {
	t.Helper()
	var lastReq map[string]interface{}

	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &lastReq)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(chatResponse(content))
	}))
	t.Cleanup(mock.Close)

	client := newAIClient(config{
		AIBaseURL:     mock.URL,
		AIAPIKey:      "test-key",
		AITextModel:   "text-model",
		AIVisionModel: "vision-model",
	})
	return client, &lastReq
}

// chatResponse wraps content in the chat completions response shape
// (choices[0].message.content).
func chatResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": content}},
		},
	}
}

/* ─── extractJSONObject ──────────────────────────────────────────────── */

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"chatter", `Sure! Here is your plan: {"a":{"b":2}} Enjoy.`, `{"a":{"b":2}}`, false},
		{"no object", "I cannot help with that", "", true},
		{"reversed braces", "} oops {", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractJSONObject(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

/* ─── Meal plans ─────────────────────────────────────────────────────── */

const mockMealPlan = "```json\n" + `{
  "meals": [
    {"meal": "Breakfast", "time": "07:00", "explanation": "Slow carbs", "nutritional_benefits": "Fibre",
     "foods": [{"name": "Oats", "quantity": "80g", "calories": 296, "protein_g": 10.7, "carbs_g": 51.8, "fat_g": 5.4}]},
    {"meal": "Lunch", "time": "12:30", "explanation": "Lean protein", "nutritional_benefits": "Iron",
     "foods": [{"name": "Chicken", "quantity": "150g", "calories": 248, "protein_g": 46, "carbs_g": 0, "fat_g": 5.4}]}
  ],
  "overall_analysis": "Balanced",
  "personalized_advice": "Drink water"
}` + "\n```"

func TestGenerateMealPlan_Success(t *testing.T) {
	client, lastReq := setupAITest(t, http.StatusOK, mockMealPlan)

	age := 30
	in := mealPlanInput{
		Profile:        athleteProfile{Age: &age},
		NumberOfMeals:  2,
		CaloriesTarget: 2556,
		ProteinTarget:  126,
		CarbsTarget:    337,
		FatTarget:      78,
	}
	plan, err := client.generateMealPlan(context.Background(), in)
	if err != nil {
		t.Fatalf("generateMealPlan: %v", err)
	}
	if len(plan.Meals) != 2 {
		t.Fatalf("expected 2 meals, got %d", len(plan.Meals))
	}
	if plan.Meals[1].Foods[0].Name != "Chicken" || plan.Meals[1].Foods[0].ProteinG != 46 {
		t.Errorf("unexpected lunch: %+v", plan.Meals[1])
	}
	if plan.OverallAnalysis != "Balanced" || plan.PersonalizedAdvice != "Drink water" {
		t.Errorf("analysis/advice not parsed: %+v", plan)
	}

	if (*lastReq)["model"] != "text-model" {
		t.Errorf("expected text model, got %v", (*lastReq)["model"])
	}
	msgs := (*lastReq)["messages"].([]interface{})
	prompt := msgs[1].(map[string]interface{})["content"].(string)
	for _, want := range []string{"Calories: 2556 kcal", "Protein: 126g", "Create exactly 2 meals", "Age: 30 years", "Sex: not specified"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerateMealPlan_NoMeals(t *testing.T) {
	client, _ := setupAITest(t, http.StatusOK, `{"meals": []}`)
	if _, err := client.generateMealPlan(context.Background(), mealPlanInput{NumberOfMeals: 3}); err == nil {
		t.Fatal("expected error for empty meal list")
	}
}

func TestGenerateMealPlan_UpstreamError(t *testing.T) {
	client, _ := setupAITest(t, http.StatusTooManyRequests, "")
	_, err := client.generateMealPlan(context.Background(), mealPlanInput{NumberOfMeals: 3})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status 429 error, got %v", err)
	}
}

func TestAIClient_MissingKey(t *testing.T) {
	client := newAIClient(config{AIBaseURL: "http://127.0.0.1:0"})
	_, err := client.generateMealPlan(context.Background(), mealPlanInput{})
	if !errors.Is(err, errAIUnavailable) {
		t.Fatalf("expected errAIUnavailable, got %v", err)
	}
}

/* ─── Photo analysis ─────────────────────────────────────────────────── */

func TestAnalyzeFoodImage_SendsDataURL(t *testing.T) {
	content := `{"foods":[{"name":"Rice","quantity":"200g","calories":260,"protein_g":5,"carbs_g":56,"fat_g":0.6}],
		"total_calories":260,"total_protein_g":5,"total_carbs_g":56,"total_fat_g":0.6,
		"analysis":"Mostly carbs","recommendations":"Add protein"}`
	client, lastReq := setupAITest(t, http.StatusOK, content)

	res, err := client.analyzeFoodImage(context.Background(), []byte("fake-image"), "image/png")
	if err != nil {
		t.Fatalf("analyzeFoodImage: %v", err)
	}
	if res.TotalCalories != 260 || len(res.Foods) != 1 || res.Recommendations != "Add protein" {
		t.Errorf("unexpected result: %+v", res)
	}

	if (*lastReq)["model"] != "vision-model" {
		t.Errorf("expected vision model, got %v", (*lastReq)["model"])
	}
	msgs := (*lastReq)["messages"].([]interface{})
	parts := msgs[0].(map[string]interface{})["content"].([]interface{})
	if len(parts) != 2 {
		t.Fatalf("expected text + image parts, got %d", len(parts))
	}
	image := parts[1].(map[string]interface{})
	url := image["image_url"].(map[string]interface{})["url"].(string)
	if url != "data:image/png;base64,ZmFrZS1pbWFnZQ==" {
		t.Errorf("unexpected data URL %q", url)
	}
}

func TestAnalyzeFoodImage_FillsMissingTotals(t *testing.T) {
	content := `{"foods":[
		{"name":"Egg","quantity":"2","calories":150,"protein_g":12,"carbs_g":1,"fat_g":10},
		{"name":"Toast","quantity":"1 slice","calories":80,"protein_g":3,"carbs_g":15,"fat_g":1}]}`
	client, _ := setupAITest(t, http.StatusOK, content)

	res, err := client.analyzeFoodImage(context.Background(), []byte("x"), "image/jpeg")
	if err != nil {
		t.Fatalf("analyzeFoodImage: %v", err)
	}
	if res.TotalCalories != 230 || res.TotalProteinG != 15 || res.TotalCarbsG != 16 || res.TotalFatG != 11 {
		t.Errorf("totals not summed: %+v", res)
	}
}

func TestAnalyzeFoodImage_FractionalCalories(t *testing.T) {
	content := `{"foods":[
		{"name":"Banana","quantity":"1 medium","calories":105.4,"protein_g":1.3,"carbs_g":27,"fat_g":0.4},
		{"name":"Yoghurt","quantity":"150g","calories":90.1,"protein_g":15,"carbs_g":6,"fat_g":0}],
		"total_calories":195.5}`
	client, _ := setupAITest(t, http.StatusOK, content)

	res, err := client.analyzeFoodImage(context.Background(), []byte("x"), "image/jpeg")
	if err != nil {
		t.Fatalf("analyzeFoodImage: %v", err)
	}
	if res.TotalCalories != 195.5 {
		t.Errorf("expected 195.5 kcal, got %v", res.TotalCalories)
	}
	if res.Foods[0].Calories != 105.4 {
		t.Errorf("expected 105.4 kcal for first food, got %v", res.Foods[0].Calories)
	}
	if got := roundCalories(res.TotalCalories); got != 196 {
		t.Errorf("expected stored value 196, got %d", got)
	}
}

func TestFillTotals_KeepsReportedTotals(t *testing.T) {
	r := aiPhotoAnalysis{
		Foods: []aiFoodItem{
			{Calories: 150, ProteinG: 12, CarbsG: 1, FatG: 10},
			{Calories: 80, ProteinG: 3, CarbsG: 15, FatG: 1},
		},
		TotalProteinG: 20,
		TotalFatG:     9,
	}
	r.fillTotals()

	if r.TotalCalories != 230 {
		t.Errorf("expected summed calories 230, got %v", r.TotalCalories)
	}
	if r.TotalCarbsG != 16 {
		t.Errorf("expected summed carbs 16, got %v", r.TotalCarbsG)
	}
	if r.TotalProteinG != 20 || r.TotalFatG != 9 {
		t.Errorf("expected reported protein 20 and fat 9 to be kept, got %v and %v", r.TotalProteinG, r.TotalFatG)
	}
}

func TestRoundCalories(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{195.4, 195},
		{195.5, 196},
		{260, 260},
	}
	for _, tc := range cases {
		if got := roundCalories(tc.in); got != tc.want {
			t.Errorf("roundCalories(%v): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}
