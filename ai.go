package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// errAIUnavailable is returned when no API key is configured.
var errAIUnavailable = errors.New("AI_API_KEY not set")

/* ─── Response types ─────────────────────────────────────────────────── */

// aiFoodItem is one food entry, used both in generated meals and in photo
// analyses (stored as JSONB in photo_analyses.detected_foods).
type aiFoodItem struct {
	Name     string  `json:"name"`
	Quantity string  `json:"quantity"`
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// aiMeal is one meal of a generated plan.
type aiMeal struct {
	Name                string       `json:"meal"`
	Time                string       `json:"time"`
	Explanation         string       `json:"explanation"`
	NutritionalBenefits string       `json:"nutritional_benefits"`
	Foods               []aiFoodItem `json:"foods"`
}

// aiMealPlan is the JSON object the text model is asked to return.
type aiMealPlan struct {
	Meals              []aiMeal `json:"meals"`
	OverallAnalysis    string   `json:"overall_analysis"`
	PersonalizedAdvice string   `json:"personalized_advice"`
}

// aiPhotoAnalysis is the JSON object the vision model is asked to return.
type aiPhotoAnalysis struct {
	Foods           []aiFoodItem `json:"foods"`
	TotalCalories   float64      `json:"total_calories"`
	TotalProteinG   float64      `json:"total_protein_g"`
	TotalCarbsG     float64      `json:"total_carbs_g"`
	TotalFatG       float64      `json:"total_fat_g"`
	Analysis        string       `json:"analysis"`
	Recommendations string       `json:"recommendations"`
}

/* ─── Prompt constants ───────────────────────────────────────────────── */

const mealPlanSystemPrompt = `You are a certified sports nutritionist specializing in personalized meal planning. Always return valid JSON.`

// mealPlanPromptTemplate is filled by buildMealPlanPrompt.
const mealPlanPromptTemplate = `Create a personalized meal plan for this athlete.

PROFILE:
- Age: %s
- Sex: %s
- Weight: %s
- Height: %s
- Activity level: %s
- Goal: %s
- Health issues: %s
- Allergies: %s
- Dietary preferences: %s

DAILY TARGETS:
- Calories: %d kcal
- Protein: %dg
- Carbs: %dg
- Fat: %dg

REQUIREMENTS:
1. Create exactly %d meals
2. Hit the macro targets within 5%%
3. Use common foods with practical portions
4. Respect every allergy and restriction
5. Explain each meal and its nutritional benefits

Return only a JSON object, no markdown:
{
  "meals": [
    {
      "meal": "Breakfast",
      "time": "07:00",
      "explanation": "string",
      "nutritional_benefits": "string",
      "foods": [
        {"name": "Oats", "quantity": "80g", "calories": 296, "protein_g": 10.7, "carbs_g": 51.8, "fat_g": 5.4}
      ]
    }
  ],
  "overall_analysis": "string",
  "personalized_advice": "string"
}`

const foodPhotoPrompt = `You are a nutrition assistant. Identify every food visible in the photo and estimate its portion and nutrition.
Return only a JSON object, no markdown:
{
  "foods": [{"name": "string", "quantity": "string", "calories": 0, "protein_g": 0, "carbs_g": 0, "fat_g": 0}],
  "total_calories": 0,
  "total_protein_g": 0,
  "total_carbs_g": 0,
  "total_fat_g": 0,
  "analysis": "short assessment of the meal",
  "recommendations": "short advice for the athlete"
}
If the photo contains no food, return {"foods": []}.`

/* ─── Chat completions client ────────────────────────────────────────── */

// aiClient talks to an OpenAI-compatible chat completions endpoint.
type aiClient struct {
	baseURL     string
	apiKey      string
	textModel   string
	visionModel string
	http        *http.Client
}

func newAIClient(cfg config) *aiClient {
	return &aiClient{
		baseURL:     cfg.AIBaseURL,
		apiKey:      cfg.AIAPIKey,
		textModel:   cfg.AITextModel,
		visionModel: cfg.AIVisionModel,
		http:        &http.Client{Timeout: 60 * time.Second},
	}
}

// chatMessage is a single message. Content is either a string or a slice of
// chatContentPart for multimodal requests.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chat sends a chat completions request and returns the content string of
// the first choice. Uses raw net/http to avoid pulling in a vendor SDK.
func (a *aiClient) chat(ctx context.Context, req chatRequest) (string, error) {
	if a.apiKey == "" {
		return "", errAIUnavailable
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai returned status %d: %s", resp.StatusCode, string(respBytes))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

// extractJSONObject strips markdown fences and any chatter around the first
// top-level JSON object in s. Models ignore "no markdown" often enough.
func extractJSONObject(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", errors.New("no JSON object in model output")
	}
	return s[start : end+1], nil
}

// decodeModelJSON extracts and unmarshals the JSON object in a model reply.
func decodeModelJSON(content string, v any) error {
	raw, err := extractJSONObject(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("unmarshal model JSON: %w", err)
	}
	return nil
}

/* ─── Meal plans ─────────────────────────────────────────────────────── */

// mealPlanInput is everything the meal plan prompt needs.
type mealPlanInput struct {
	Profile        athleteProfile
	WeightKG       *float64
	NumberOfMeals  int
	CaloriesTarget int
	ProteinTarget  int
	CarbsTarget    int
	FatTarget      int
}

// orUnknown renders optional profile values for prompts.
func orUnknown[T any](v *T, format string) string {
	if v == nil {
		return "not specified"
	}
	return fmt.Sprintf(format, *v)
}

func buildMealPlanPrompt(in mealPlanInput) string {
	p := in.Profile
	return fmt.Sprintf(mealPlanPromptTemplate,
		orUnknown(p.Age, "%d years"),
		orUnknown(p.Sex, "%s"),
		orUnknown(in.WeightKG, "%.1f kg"),
		orUnknown(p.HeightM, "%.2f m"),
		orUnknown(p.ActivityLevel, "%s"),
		orUnknown(p.Goal, "%s"),
		orUnknown(p.HealthIssues, "%s"),
		orUnknown(p.Allergies, "%s"),
		orUnknown(p.DietaryPreferences, "%s"),
		in.CaloriesTarget, in.ProteinTarget, in.CarbsTarget, in.FatTarget,
		in.NumberOfMeals,
	)
}

// generateMealPlan asks the text model for a plan and parses its reply.
func (a *aiClient) generateMealPlan(ctx context.Context, in mealPlanInput) (aiMealPlan, error) {
	content, err := a.chat(ctx, chatRequest{
		Model: a.textModel,
		Messages: []chatMessage{
			{Role: "system", Content: mealPlanSystemPrompt},
			{Role: "user", Content: buildMealPlanPrompt(in)},
		},
		Temperature: 0.7,
		MaxTokens:   3000,
	})
	if err != nil {
		return aiMealPlan{}, err
	}

	var plan aiMealPlan
	if err := decodeModelJSON(content, &plan); err != nil {
		return aiMealPlan{}, err
	}
	if len(plan.Meals) == 0 {
		return aiMealPlan{}, errors.New("model returned no meals")
	}
	return plan, nil
}

/* ─── Photo analysis ─────────────────────────────────────────────────── */

// analyzeFoodImage sends the image as a base64 data URL to the vision model.
func (a *aiClient) analyzeFoodImage(ctx context.Context, image []byte, mimeType string) (aiPhotoAnalysis, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	content, err := a.chat(ctx, chatRequest{
		Model: a.visionModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContentPart{
				{Type: "text", Text: foodPhotoPrompt},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
			},
		}},
		Temperature: 0.2,
		MaxTokens:   1500,
	})
	if err != nil {
		return aiPhotoAnalysis{}, err
	}

	var res aiPhotoAnalysis
	if err := decodeModelJSON(content, &res); err != nil {
		return aiPhotoAnalysis{}, err
	}
	res.fillTotals()
	return res, nil
}

// fillTotals sums the detected foods into every total the model left at zero.
// Totals the model did report are kept as-is.
func (r *aiPhotoAnalysis) fillTotals() {
	if len(r.Foods) == 0 {
		return
	}
	var cal, protein, carbs, fat float64
	for _, f := range r.Foods {
		cal += f.Calories
		protein += f.ProteinG
		carbs += f.CarbsG
		fat += f.FatG
	}
	if r.TotalCalories == 0 {
		r.TotalCalories = cal
	}
	if r.TotalProteinG == 0 {
		r.TotalProteinG = protein
	}
	if r.TotalCarbsG == 0 {
		r.TotalCarbsG = carbs
	}
	if r.TotalFatG == 0 {
		r.TotalFatG = fat
	}
}

// roundCalories converts a model-reported calorie value to the whole kcal
// stored in INT columns.
func roundCalories(kcal float64) int {
	return int(math.Round(kcal))
}
