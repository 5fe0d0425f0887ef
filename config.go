package main

import (
	"os"
	"strings"
)

// config is read once at startup from the environment (after godotenv has
// loaded .env). Zero values are filled with development defaults.
type config struct {
	DBURL          string
	Port           string
	JWTSecret      string
	AIAPIKey       string
	AIBaseURL      string
	AITextModel    string
	AIVisionModel  string
	UploadDir      string
	AllowedOrigins []string
}

func loadConfig() config {
	return config{
		DBURL:          os.Getenv("DB_URL"),
		Port:           getEnv("PORT", "3000"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AIAPIKey:       os.Getenv("AI_API_KEY"),
		AIBaseURL:      strings.TrimRight(getEnv("AI_BASE_URL", "https://openrouter.ai/api"), "/"),
		AITextModel:    getEnv("AI_TEXT_MODEL", "mistralai/mistral-small"),
		AIVisionModel:  getEnv("AI_VISION_MODEL", "google/gemini-2.0-flash-001"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
