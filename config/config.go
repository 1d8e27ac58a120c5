package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port   string
	DBName string
	JWTKey string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL string

	PassPercentage           float64
	MaxAttemptsPerDay        int
	DefaultFreePreviewVideos int

	// learner client
	APIBaseURL          string
	SyncRetryDelay      time.Duration
	SyncMaxRetryDelay   time.Duration
	SyncRefreshInterval time.Duration // periodic snapshot refetch while watching
	RefreshDelay        time.Duration
	RequestTimeout      time.Duration
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:   getEnv("PORT", "3000"),
		DBName: getEnv("DB_NAME", "learnhub"),
		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		PassPercentage:           float64(getEnvInt("PASS_PERCENTAGE", 70)),
		MaxAttemptsPerDay:        getEnvInt("MAX_ATTEMPTS_PER_DAY", 3),
		DefaultFreePreviewVideos: getEnvInt("DEFAULT_FREE_PREVIEW_VIDEOS", 3),

		APIBaseURL:          getEnv("API_BASE_URL", "http://localhost:3000"),
		SyncRetryDelay:      getEnvDuration("SYNC_RETRY_DELAY", 5*time.Second),
		SyncMaxRetryDelay:   getEnvDuration("SYNC_MAX_RETRY_DELAY", time.Minute),
		SyncRefreshInterval: getEnvDuration("SYNC_REFRESH_INTERVAL", 30*time.Second),
		RefreshDelay:        getEnvDuration("REFRESH_DELAY", 2*time.Second),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.PassPercentage <= 0 || AppConfig.PassPercentage > 100 {
		log.Printf("Warning: PASS_PERCENTAGE %.0f out of range, using 70", AppConfig.PassPercentage)
		AppConfig.PassPercentage = 70
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

// getEnvDuration parses values like "5s" or "1m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Error converting environment variable %s to duration: %v", key, err)
		return defaultValue
	}
	return d
}
