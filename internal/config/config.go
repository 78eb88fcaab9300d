package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"go.uber.org/zap"
)

const (
	// Connection constants
	DefaultConnectionTimeout = 30 * time.Second

	// Realtime defaults
	DefaultRealtimeModel = "gpt-realtime"
	DefaultRealtimeVoice = "verse"

	// Source tag attached to everything created by the voice channel
	SourceTwilioVoice = "twilio_voice"

	// Env prefix for per-tenant Twilio credentials, e.g. TWILIO_BUSINESS_ACME
	tenantTwilioEnvPrefix = "TWILIO_BUSINESS_"
)

// TwilioCredential holds a premium tenant's own Twilio account credentials.
type TwilioCredential struct {
	AccountSID  string `json:"accountSid"`
	AuthToken   string `json:"authToken"`
	PhoneNumber string `json:"phoneNumber"`
}

// Config holds the voice scheduler service configuration. It is loaded once at
// process start; components receive it by reference and never read ambient
// environment state themselves.
type Config struct {
	Port      string
	PublicURL string

	// OpenAI Realtime configuration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	RealtimeModel string
	RealtimeVoice string

	// Database configuration
	DatabaseURL string

	// Redis configuration (optional, session monitoring only)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Auth configuration
	JWTSecret string

	// Instance identifier for session monitoring
	InstanceID string

	// Per-tenant Twilio credentials, swept from TWILIO_BUSINESS_<ID> env vars
	// at startup. Keyed by tenant ID.
	TenantTwilio map[string]TwilioCredential

	EnableCORS bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	cfg := &Config{
		Port:      getEnv("PORT", "5050"),
		PublicURL: getEnv("PUBLIC_URL", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		RealtimeModel: getEnv("REALTIME_MODEL", DefaultRealtimeModel),
		RealtimeVoice: getEnv("REALTIME_VOICE", DefaultRealtimeVoice),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		InstanceID: getInstanceID(),

		TenantTwilio: loadTenantTwilioCredentials(),

		EnableCORS: getEnvAsBool("ENABLE_CORS", true),
	}
	return cfg
}

// loadTenantTwilioCredentials sweeps the environment once for per-tenant
// Twilio credential variables and decodes them into an explicit map.
func loadTenantTwilioCredentials() map[string]TwilioCredential {
	creds := make(map[string]TwilioCredential)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, tenantTwilioEnvPrefix) {
			continue
		}
		tenantID := strings.TrimPrefix(name, tenantTwilioEnvPrefix)
		if tenantID == "" || value == "" {
			continue
		}
		var cred TwilioCredential
		if err := json.Unmarshal([]byte(value), &cred); err != nil {
			logger.Base().Warn("failed to parse tenant twilio credential",
				zap.String("tenant_id", tenantID), zap.Error(err))
			continue
		}
		creds[tenantID] = cred
	}
	if len(creds) > 0 {
		logger.Base().Info("loaded tenant twilio credentials", zap.Int("count", len(creds)))
	}
	return creds
}

// getInstanceID returns a unique identifier for this service instance,
// preferring the hostname (pod name in K8s).
func getInstanceID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "voice-scheduler-" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
