package config

import (
	"log"
	"os"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	DatabaseURL     string
	Env             string

	// LLM provider (OpenAI-compatible chat completions).
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// Bocha web search.
	BochaAPIKey  string
	BochaBaseURL string

	// Volcengine TTS.
	TTSAppID       string
	TTSAccessToken string
	TTSCluster     string
	TTSBaseURL     string

	// Streaming persistence debounce for partial record saves.
	StreamSaveInterval time.Duration

	// Synthesized-audio cache.
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,
		Env:             env,

		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMBaseURL: getEnv("LLM_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		LLMModel:   getEnv("LLM_MODEL", ""),

		BochaAPIKey:  getEnv("BOCHA_API_KEY", ""),
		BochaBaseURL: getEnv("BOCHA_BASE_URL", "https://api.bochaai.com"),

		TTSAppID:       getEnv("TTS_APP_ID", ""),
		TTSAccessToken: getEnv("TTS_ACCESS_TOKEN", ""),
		TTSCluster:     getEnv("TTS_CLUSTER", "volcano_tts"),
		TTSBaseURL:     getEnv("TTS_BASE_URL", "https://openspeech.bytedance.com"),

		StreamSaveInterval: getDuration("STREAM_SAVE_INTERVAL", 500*time.Millisecond),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using default %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "none", "off":
		return "none"
	default:
		return "local"
	}
}
