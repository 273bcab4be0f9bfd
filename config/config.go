package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port        string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	MongoURI    string
	Environment string

	// Scheduler endpoint credential. CronSecretHash (bcrypt) takes
	// precedence over the plain CronSecret when both are set.
	CronSecret     string
	CronSecretHash string

	// Price fetch batching
	FetchChunkSize  int
	FetchChunkDelay time.Duration

	// FCM service account
	FCMProjectID   string
	FCMClientEmail string
	FCMPrivateKey  string

	// In-process scheduler (external Cloud Scheduler is the default trigger)
	EnableInternalScheduler bool
}

var AppConfig *Config
var DB *gorm.DB

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "stockwatch_db"),
		MongoURI:    getEnv("MONGODB_URI", ""),
		Environment: getEnv("ENVIRONMENT", "development"),

		CronSecret:     getEnv("CRON_SECRET", ""),
		CronSecretHash: getEnv("CRON_SECRET_HASH", ""),

		FetchChunkSize:  getEnvInt("ALERT_FETCH_CHUNK_SIZE", 5),
		FetchChunkDelay: time.Duration(getEnvInt("ALERT_FETCH_CHUNK_DELAY_MS", 100)) * time.Millisecond,

		FCMProjectID:   getEnv("FCM_PROJECT_ID", ""),
		FCMClientEmail: getEnv("FCM_CLIENT_EMAIL", ""),
		FCMPrivateKey:  getEnv("FCM_PRIVATE_KEY", ""),

		EnableInternalScheduler: getEnv("ENABLE_INTERNAL_SCHEDULER", "false") == "true",
	}

	if config.FetchChunkSize < 1 {
		log.Printf("Invalid ALERT_FETCH_CHUNK_SIZE, falling back to 5")
		config.FetchChunkSize = 5
	}

	AppConfig = config
	return config, nil
}

// InitDB initializes database connection
func InitDB() (*gorm.DB, error) {
	// Log connection info (masked for security)
	log.Printf("Connecting to database: host=%s port=%s user=%s dbname=%s",
		maskHost(AppConfig.DBHost),
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBName,
	)

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=require TimeZone=Asia/Seoul",
		AppConfig.DBHost,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBPort,
	)

	var logLevel logger.LogLevel
	if AppConfig.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})

	if err != nil {
		log.Printf("Database connection error: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Failed to get underlying database: %v", err)
		return nil, fmt.Errorf("failed to get database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		log.Printf("Database ping failed: %v", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Printf("Database connection verified successfully")
	DB = db
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
