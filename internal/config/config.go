package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sharpwatch/sharpwatch/internal/classifier"
	"github.com/sharpwatch/sharpwatch/internal/secrets"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Polymarket APIs
	GammaAPIBaseURL    string
	DataAPIBaseURL     string
	GammaAPIRPS        float64
	DataAPIHoldersRPS  float64
	DataAPIProfilesRPS float64

	// Sharpness thresholds
	MinPnL    float64
	MinROI    float64
	MinVolume float64

	// Alert thresholds
	MinPositionValue float64
	RecencyWindow    time.Duration

	// Staleness and tracking
	ProfileMaxAge    time.Duration
	TrackedMinVolume float64

	// Cycle shape
	BatchSize                 int
	MaxProfileRefreshPerCycle int
	MaxAlertsPerCycle         int
	LeaderboardSize           int
	MarketWorkers             int
	MarketCategories          []string

	// Timing
	ScanInterval  time.Duration
	DispatchDelay time.Duration
	FeedTimeout   time.Duration

	// Alerts
	AlertMode         string // log, telegram, discord (comma-separated)
	TelegramBotToken  string
	TelegramChatID    string
	DiscordWebhookURL string
	LeaderboardCron   string

	// Metrics/Health
	MetricsPort int
	HealthPort  int
}

// Load reads configuration from environment variables, with fallback to a
// .env file for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		DatabaseDSN:         secrets.GetOptionalSecret("DATABASE_DSN", "sharpwatch:sharpwatch@tcp(mysql:3306)/sharpwatch?parseTime=true"),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMaxIdleTime: time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,

		GammaAPIBaseURL:    getEnv("GAMMA_API_BASE_URL", "https://gamma-api.polymarket.com"),
		DataAPIBaseURL:     getEnv("DATA_API_BASE_URL", "https://data-api.polymarket.com"),
		GammaAPIRPS:        getEnvFloat("GAMMA_API_RPS", 5.0),
		DataAPIHoldersRPS:  getEnvFloat("DATA_API_HOLDERS_RPS", 2.0),
		DataAPIProfilesRPS: getEnvFloat("DATA_API_PROFILES_RPS", 1.0),

		MinPnL:    getEnvFloat("MIN_PNL", 10000.0),
		MinROI:    getEnvFloat("MIN_ROI", 10.0),
		MinVolume: getEnvFloat("MIN_VOLUME", 50000.0),

		MinPositionValue: getEnvFloat("MIN_POSITION_VALUE", 5000.0),
		RecencyWindow:    time.Duration(getEnvInt("RECENCY_WINDOW_HOURS", 24)) * time.Hour,

		ProfileMaxAge:    time.Duration(getEnvInt("PROFILE_MAX_AGE_HOURS", 6)) * time.Hour,
		TrackedMinVolume: getEnvFloat("TRACKED_MIN_VOLUME", 100000.0),

		BatchSize:                 getEnvInt("BATCH_SIZE", 10),
		MaxProfileRefreshPerCycle: getEnvInt("MAX_PROFILE_REFRESH_PER_CYCLE", 25),
		MaxAlertsPerCycle:         getEnvInt("MAX_ALERTS_PER_CYCLE", 10),
		LeaderboardSize:           getEnvInt("LEADERBOARD_SIZE", 50),
		MarketWorkers:             getEnvInt("MARKET_WORKERS", 5),
		MarketCategories:          parseCSV(getEnv("MARKET_CATEGORIES", "mlb,nfl,nba,nhl,ncaa-basketball")),

		ScanInterval:  time.Duration(getEnvInt("SCAN_INTERVAL_MINUTES", 30)) * time.Minute,
		DispatchDelay: time.Duration(getEnvInt("DISPATCH_DELAY_SEC", 5)) * time.Second,
		FeedTimeout:   time.Duration(getEnvInt("FEED_TIMEOUT_SEC", 30)) * time.Second,

		AlertMode:         getEnv("ALERT_MODE", "log"),
		TelegramBotToken:  secrets.GetOptionalSecret("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
		DiscordWebhookURL: secrets.GetOptionalSecret("DISCORD_WEBHOOK_URL", ""),
		LeaderboardCron:   getEnv("LEADERBOARD_CRON", "0 12 * * *"),

		MetricsPort: getEnvInt("METRICS_PORT", 9090),
		HealthPort:  getEnvInt("HEALTH_PORT", 8080),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Sharpness returns the classifier thresholds configured for this run
func (c *Config) Sharpness() classifier.Thresholds {
	return classifier.Thresholds{
		MinPnL:    c.MinPnL,
		MinROI:    c.MinROI,
		MinVolume: c.MinVolume,
	}
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.MinVolume <= 0 {
		return fmt.Errorf("MIN_VOLUME must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if c.MarketWorkers <= 0 {
		return fmt.Errorf("MARKET_WORKERS must be positive")
	}
	if len(c.MarketCategories) == 0 {
		return fmt.Errorf("MARKET_CATEGORIES must name at least one category")
	}

	hasTelegram := false
	hasDiscord := false
	for _, mode := range strings.Split(c.AlertMode, ",") {
		switch strings.TrimSpace(mode) {
		case "log":
		case "telegram":
			hasTelegram = true
		case "discord":
			hasDiscord = true
		default:
			return fmt.Errorf("invalid ALERT_MODE value: %s (valid values: log, telegram, discord)", mode)
		}
	}
	if hasTelegram && (c.TelegramBotToken == "" || c.TelegramChatID == "") {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required when telegram is in ALERT_MODE")
	}
	if hasDiscord && c.DiscordWebhookURL == "" {
		return fmt.Errorf("DISCORD_WEBHOOK_URL is required when discord is in ALERT_MODE")
	}

	return nil
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

func parseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
