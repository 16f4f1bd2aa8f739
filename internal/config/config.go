package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/fablecast/fablecast/internal/language"
	"github.com/fablecast/fablecast/internal/llm"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string
	Timezone string

	// Database
	DatabaseURL string

	// Kafka
	KafkaBrokers       []string
	KafkaConsumerGroup string
	KafkaTopicRuns     string
	KafkaTopicEvents   string

	// S3/Storage
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3PublicURL string

	// LLM agents. Each role reads <ROLE>_LLM_* variables and falls back
	// to the shared LLM_* settings, so a single local endpoint works out
	// of the box while any agent can be pointed at its own model.
	Planner    llm.Config
	Generator1 llm.Config
	Generator2 llm.Config
	Evaluator  llm.Config

	// TTS
	TTSBaseURL      string
	TTSAPIKey       string
	TTSModel        string
	TTSSpeed        float64
	TTSMaxRetries   int
	TTSVoiceMapPath string

	// Workflow defaults
	QualityThreshold int
	MaxIterations    int
	DefaultLanguage  string
	DefaultSize      string
	OutputDir        string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TZ", "UTC"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KafkaBrokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "fablecast-worker-main"),
		KafkaTopicRuns:     getEnv("KAFKA_TOPIC_RUNS", "fablecast.runs.v1"),
		KafkaTopicEvents:   getEnv("KAFKA_TOPIC_EVENTS", "fablecast.events.v1"),

		S3Endpoint:  getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", "fablecast-assets"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),

		Planner:    loadAgentLLM("PLANNER"),
		Generator1: loadAgentLLM("GENERATOR1"),
		Generator2: loadAgentLLM("GENERATOR2"),
		Evaluator:  loadAgentLLM("EVALUATOR"),

		TTSBaseURL:      getEnv("TTS_BASE_URL", "http://localhost:8880/v1"),
		TTSAPIKey:       getEnv("TTS_API_KEY", "not-needed"),
		TTSModel:        getEnv("TTS_MODEL", "kokoro"),
		TTSSpeed:        getEnvFloat("TTS_SPEED", 0.85),
		TTSMaxRetries:   clampMin(getEnvInt("TTS_MAX_RETRIES", 3), 1),
		TTSVoiceMapPath: getEnv("TTS_VOICE_MAP_PATH", ""),

		QualityThreshold: getEnvInt("QUALITY_THRESHOLD", 70),
		MaxIterations:    clampMin(getEnvInt("MAX_ITERATIONS", 3), 1),
		DefaultLanguage:  getEnv("DEFAULT_LANGUAGE", language.Spanish),
		DefaultSize:      getEnv("DEFAULT_SIZE", language.SizeMedium),
		OutputDir:        getEnv("OUTPUT_DIR", "output"),
	}
}

// loadAgentLLM resolves one agent's LLM settings. Role-prefixed variables
// win, shared LLM_* variables fill the gaps, then local-endpoint defaults.
func loadAgentLLM(role string) llm.Config {
	return llm.Config{
		Provider:  getAgentEnv(role, "LLM_PROVIDER", llm.ProviderOpenAI),
		BaseURL:   getAgentEnv(role, "LLM_BASE_URL", "http://localhost:11434/v1"),
		APIKey:    getAgentEnv(role, "LLM_API_KEY", "not-needed"),
		Model:     getAgentEnv(role, "LLM_MODEL", "qwen2.5:7b"),
		MaxTokens: getEnvInt(role+"_LLM_MAX_TOKENS", getEnvInt("LLM_MAX_TOKENS", 4096)),
	}
}

func getAgentEnv(role, key, defaultValue string) string {
	if value := os.Getenv(role + "_" + key); value != "" {
		return value
	}
	return getEnv(key, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
