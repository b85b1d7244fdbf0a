package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BotModeLongPoll = "longpoll"
	BotModeWebhook  = "webhook"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	Port        string
	LogLevel    string

	// PublicAppURL is the customer-facing base URL used for gateway
	// redirect targets.
	PublicAppURL string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Bot     BotConfig
	Payment PaymentConfig
}

// BotConfig configures the admin verification channel. An empty token or
// admin chat ID leaves the channel disabled instead of failing startup.
type BotConfig struct {
	Token          string
	AdminChatID    int64
	Mode           string
	WebhookBaseURL string
	WebhookSecret  string
}

func (b BotConfig) Enabled() bool {
	return strings.TrimSpace(b.Token) != "" && b.AdminChatID != 0
}

// PaymentConfig carries the booking-fee defaults baked into the QR payload.
type PaymentConfig struct {
	PrepaidAmount int64
	PayeeVPA      string
	PayeeName     string
	Currency      string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	mode := strings.ToLower(strings.TrimSpace(getenv("BOT_MODE", BotModeLongPoll)))
	if mode != BotModeWebhook {
		mode = BotModeLongPoll
	}

	return Config{
		AppName:      getenv("APP_SERVICE", "bookpay"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		Port:         getenv("PORT", "8080"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		PublicAppURL: strings.TrimRight(getenv("PUBLIC_APP_URL", "http://localhost:8080"), "/"),

		DBType:            getenv("DB_TYPE", "postgres"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "bookpay"),
		DBUser:            getenv("DB_USER", "bookpay"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 60),

		Bot: BotConfig{
			Token:          strings.TrimSpace(getenv("BOT_TOKEN", "")),
			AdminChatID:    getenvInt64("BOT_ADMIN_CHAT_ID", 0),
			Mode:           mode,
			WebhookBaseURL: strings.TrimRight(getenv("BOT_WEBHOOK_BASE_URL", ""), "/"),
			WebhookSecret:  strings.TrimSpace(getenv("BOT_WEBHOOK_SECRET", "")),
		},
		Payment: PaymentConfig{
			PrepaidAmount: getenvInt64("PREPAID_AMOUNT", 600),
			PayeeVPA:      strings.TrimSpace(getenv("PAYEE_VPA", "")),
			PayeeName:     getenv("PAYEE_NAME", "BookPay"),
			Currency:      getenv("PAYMENT_CURRENCY", "INR"),
		},
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
