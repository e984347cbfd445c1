package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI        string
	DBName          string
	JWTSecret       string
	JWTExpiresIn    string
	Port            string
	GinMode         string
	CORSOrigins     []string
	RateLimitReqs   int
	RateLimitWindow int

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Admin login
	AdminUser         string
	AdminPasswordHash string

	// Pod scheduling
	ScriptsDir          string
	BlueprintsDir       string
	InstructorName      string
	FirstNameFallback   string
	DefaultNiche        string
	DeliveryPollSeconds int
	DeliveryBatchSize   int
	DeliveryRatePerSec  float64
	DeliveryQueue       string
	AdvanceCron         string
	UseAsyncDelivery    bool

	// Telemetry
	OTLPEndpoint  string
	TracingEnable bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017/masterclass_pods"),
		DBName:          getEnv("DB_NAME", "masterclass_pods"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiresIn:    getEnv("JWT_EXPIRES_IN", "12h"),
		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		CORSOrigins:     strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AdminUser:         getEnv("ADMIN_USER", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		ScriptsDir:          getEnv("SCRIPTS_DIR", "./data/scripts"),
		BlueprintsDir:       getEnv("BLUEPRINTS_DIR", "./data/blueprints"),
		InstructorName:      getEnv("INSTRUCTOR_NAME", "Sarah"),
		FirstNameFallback:   getEnv("FIRST_NAME_FALLBACK", "there"),
		DefaultNiche:        getEnv("DEFAULT_NICHE", "default"),
		DeliveryPollSeconds: getEnvInt("DELIVERY_POLL_INTERVAL", 30),
		DeliveryBatchSize:   getEnvInt("DELIVERY_BATCH_SIZE", 200),
		DeliveryRatePerSec:  getEnvFloat64("DELIVERY_RATE_PER_SEC", 50),
		DeliveryQueue:       getEnv("DELIVERY_QUEUE", "default"),
		AdvanceCron:         getEnv("ADVANCE_CRON", "*/10 * * * *"),
		UseAsyncDelivery:    getEnvBool("ASYNC_DELIVERY", true),

		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnable: getEnvBool("TRACING_ENABLED", false),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	if cfg.AdminPasswordHash == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD_HASH is required - set it in .env file")
	}

	if cfg.DeliveryPollSeconds < 1 {
		return nil, fmt.Errorf("DELIVERY_POLL_INTERVAL must be at least 1 second")
	}

	return cfg, nil
}

// PollInterval is the delay between two due-message scans.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.DeliveryPollSeconds) * time.Second
}

// TokenTTL parses JWT_EXPIRES_IN, falling back to 12h.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiresIn)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
