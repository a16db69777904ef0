package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration read from the environment.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	StateTable       string
	HistoryLimit     int
	MaxMessageLength int
	ParamPrefix      string

	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAIMaxTokens   int
	OpenAITemperature float64
	ModerationEnabled bool
	BedrockModelID    string
	GenerationTimeout time.Duration

	KnowledgeSource string

	LeadWebhookURLs  []string
	LeadQueueURL     string
	ReceiptBucket    string
	ReceiptEmailFrom string
	SendGridAPIKey   string
	SinkTimeout      time.Duration
	LeadReplyDelay   time.Duration

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	TurnLockTTL   time.Duration

	CORSAllowedOrigins []string
	AdminJWTSecret     string
	RateLimitRPS       float64
	RateLimitBurst     int

	CompanyName  string
	ContactName  string
	ContactEmail string
	ContactPhone string
	CompanySite  string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:           getEnv("AWS_REGION", "eu-north-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		StateTable:       getEnv("STATE_TABLE", ""),
		HistoryLimit:     getEnvAsInt("HISTORY_LIMIT", 50),
		MaxMessageLength: getEnvAsInt("MAX_MESSAGE_LENGTH", 2000),
		ParamPrefix:      strings.TrimRight(getEnv("PARAM_PREFIX", ""), "/"),

		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIMaxTokens:   getEnvAsInt("OPENAI_MAX_TOKENS", 1000),
		OpenAITemperature: getEnvAsFloat("OPENAI_TEMPERATURE", 0.7),
		ModerationEnabled: getEnvAsBool("MODERATION_ENABLED", false),
		BedrockModelID:    getEnv("BEDROCK_MODEL_ID", ""),
		GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", 30*time.Second),

		KnowledgeSource: getEnv("KNOWLEDGE_SOURCE", "embedded"),

		LeadWebhookURLs:  getEnvAsList("LEAD_WEBHOOK_URLS"),
		LeadQueueURL:     getEnv("LEAD_QUEUE_URL", ""),
		ReceiptBucket:    getEnv("RECEIPT_BUCKET", ""),
		ReceiptEmailFrom: getEnv("RECEIPT_EMAIL_FROM", ""),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		SinkTimeout:      getEnvAsDuration("SINK_TIMEOUT", 10*time.Second),
		LeadReplyDelay:   getEnvAsDuration("LEAD_REPLY_DELAY", time.Second),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		TurnLockTTL:   getEnvAsDuration("TURN_LOCK_TTL", 2*time.Minute),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),

		CompanyName:  getEnv("COMPANY_NAME", "Axie Studio"),
		ContactName:  getEnv("CONTACT_NAME", "Stefan"),
		ContactEmail: getEnv("CONTACT_EMAIL", "stefan@axiestudio.se"),
		ContactPhone: getEnv("CONTACT_PHONE", "+46 735 132 620"),
		CompanySite:  getEnv("COMPANY_SITE", "axiestudio.se"),
	}
}

// Offline reports whether no language model can be reached with this
// configuration.
func (c *Config) Offline() bool {
	return c.ParamPrefix == "" && c.BedrockModelID == ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
