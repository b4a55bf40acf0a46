package config

import (
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                      string
	VerifyToken               string
	WhatsAppToken             string
	PhoneNumberID             string
	WhatsAppBusinessAccountID string
	WhatsAppAPIURL            string
	TelegramBotToken          string
	APIKey                    string

	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBLogLevel string

	RedisURI string
	OfferTTL time.Duration

	BusinessTZ      string
	DefaultLocale   string
	CampaignName    string
	InterestKeyword string
	BitCode         string
	WgCode          string

	SecondReminderRequiresConfirm bool
	SweepSendDelay                time.Duration
	CronEnabled                   bool
	TemplateCatalog               string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:                      getEnv("PORT", "8080"),
		VerifyToken:               getEnv("VERIFY_TOKEN", ""),
		WhatsAppToken:             getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:             getEnv("PHONE_NUMBER_ID", ""),
		WhatsAppBusinessAccountID: getEnv("WABA_ID", ""),
		WhatsAppAPIURL:            getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0"),
		TelegramBotToken:          getEnv("TELEGRAM_BOT_TOKEN", ""),
		APIKey:                    getEnv("API_KEY", ""),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./leadfunnel.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "leadfunnel"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBLogLevel: getEnv("DB_LOG_LEVEL", "warn"),

		RedisURI: getEnv("REDIS_URI", ""),
		OfferTTL: getDuration("OFFER_TTL", 24*time.Hour),

		BusinessTZ:      getEnv("BUSINESS_TZ", "Asia/Kolkata"),
		DefaultLocale:   getEnv("DEFAULT_LOCALE", "en_US"),
		CampaignName:    getEnv("CAMPAIGN_NAME", "global dropshipping project"),
		InterestKeyword: getEnv("INTEREST_KEYWORD", "interested"),
		BitCode:         getEnv("BIT_CODE", "bit2025"),
		WgCode:          getEnv("WG_CODE", "mike"),

		SecondReminderRequiresConfirm: getBool("SECOND_REMINDER_REQUIRES_CONFIRM", false),
		SweepSendDelay:                getDuration("SWEEP_SEND_DELAY", 500*time.Millisecond),
		CronEnabled:                   getBool("CRON_ENABLED", false),
		TemplateCatalog:               getEnv("TEMPLATE_CATALOG", ""),
	}
}

// Location resolves BUSINESS_TZ. Cutoffs and meeting times are defined in it.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.BusinessTZ)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid bool for %s: %q", key, value)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s: %q", key, value)
		return fallback
	}
	return d
}
