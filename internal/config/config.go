package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// UnmatchedEventPolicy controls what the workflow does with an
// APPLICATION_EVENT email that matches no existing application.
const (
	UnmatchedPolicyCreate = "create" // create the application and attach the event
	UnmatchedPolicySkip   = "skip"   // keep the email unlinked, flag for review
)

type Config struct {
	DatabaseURL          string
	RedisURL             string
	HTTPAddr             string
	MaxRetries           int
	ShutdownTimeout      int // seconds
	ClassifierTimeout    int // seconds, per classifier call
	UnmatchedEventPolicy string
	LLMAPIKey            string
	LLMAPIURL            string
	LLMModel             string
	GoogleClientID       string
	GoogleClientSecret   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	llmAPIKey := os.Getenv("LLM_API_KEY")
	if llmAPIKey == "" {
		fmt.Println("Warning: LLM_API_KEY not set, email classification will not work")
	}

	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")
	googleClientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if googleClientID == "" || googleClientSecret == "" {
		fmt.Println("Warning: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, Gmail push ingestion will not work")
	}

	policy := os.Getenv("UNMATCHED_EVENT_POLICY")
	switch policy {
	case "":
		policy = UnmatchedPolicyCreate
	case UnmatchedPolicyCreate, UnmatchedPolicySkip:
	default:
		return nil, fmt.Errorf("UNMATCHED_EVENT_POLICY must be %q or %q, got %q",
			UnmatchedPolicyCreate, UnmatchedPolicySkip, policy)
	}

	return &Config{
		DatabaseURL:          dbURL,
		RedisURL:             os.Getenv("REDIS_URL"),
		HTTPAddr:             envOrDefault("HTTP_ADDR", ":8080"),
		MaxRetries:           envIntOrDefault("MAX_RETRIES", 3),
		ShutdownTimeout:      30,
		ClassifierTimeout:    envIntOrDefault("LLM_TIMEOUT_SECONDS", 120),
		UnmatchedEventPolicy: policy,
		LLMAPIKey:            llmAPIKey,
		LLMAPIURL:            envOrDefault("LLM_API_URL", "https://openrouter.ai/api/v1/chat/completions"),
		LLMModel:             os.Getenv("LLM_MODEL"),
		GoogleClientID:       googleClientID,
		GoogleClientSecret:   googleClientSecret,
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
