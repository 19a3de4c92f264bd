package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel  string
	LogFormat string
	Debug     bool

	PreferIPv4     bool
	HTTPTimeout    time.Duration
	RequestTimeout time.Duration
	MaxConcurrent  int

	WebAddr       string
	ExposeAPIKeys bool

	TelegramToken string

	TextAPIKey      string
	TextBaseURL     string
	TextModel       string
	TextTemperature float64

	ImageProvider string // "deepai" | "gemini"
	ImageAPIKey   string
	ImageURL      string

	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiAPIVersion string

	SearchProxyURL string
	SearchURL      string

	ConfigURL      string
	ConfigInterval time.Duration
	ConfigAttempts int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FreeLimit      int
	HistoryLimit   int
	VariationCount int

	AuthProvider            string // "mock" | "firebase"
	FirebaseProjectID       string
	FirebaseCredentialsFile string
	FirebaseAPIKey          string
	FirebaseAuthDomain      string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string

	SaveAdURL string
}

func Load() (Config, error) {
	cfg := Config{
		LogLevel:       strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		LogFormat:      strings.ToLower(strings.TrimSpace(getEnv("LOG_FORMAT", "json"))),
		Debug:          getEnvBool("DEBUG", false),
		PreferIPv4:     getEnvBool("PREFER_IPV4", true),
		HTTPTimeout:    time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 120)) * time.Second,
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		MaxConcurrent:  getEnvInt("MAX_CONCURRENT", 4),

		WebAddr:       getEnv("WEB_ADDR", ":8080"),
		ExposeAPIKeys: getEnvBool("EXPOSE_API_KEYS", false),

		TextBaseURL:     getEnv("TEXT_BASE_URL", "https://api.openai.com/v1"),
		TextModel:       getEnv("TEXT_MODEL", "gpt-4o-mini"),
		TextTemperature: getEnvFloat("TEXT_TEMPERATURE", 0.8),

		ImageProvider: strings.ToLower(getEnv("IMAGE_PROVIDER", "deepai")),
		ImageURL:      getEnv("IMAGE_URL", "https://api.deepai.org/api/text2img"),

		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIVersion: getEnv("GEMINI_API_VERSION", "v1beta"),

		SearchProxyURL: getEnv("SEARCH_PROXY_URL", "https://api.allorigins.win/raw"),
		SearchURL:      getEnv("SEARCH_URL", "https://www.bing.com/images/search"),

		ConfigURL:      getEnv("CONFIG_URL", ""),
		ConfigInterval: time.Duration(getEnvInt("CONFIG_POLL_MS", 100)) * time.Millisecond,
		ConfigAttempts: getEnvInt("CONFIG_POLL_ATTEMPTS", 50),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		FreeLimit:      getEnvInt("FREE_PLAN_LIMIT", 4),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 50),
		VariationCount: getEnvInt("VARIATION_COUNT", 3),

		AuthProvider:            strings.ToLower(getEnv("AUTH_PROVIDER", "mock")),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseAPIKey:          getEnv("FIREBASE_API_KEY", ""),
		FirebaseAuthDomain:      getEnv("FIREBASE_AUTH_DOMAIN", ""),

		RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: strings.TrimSpace(os.Getenv("RAZORPAY_KEY_SECRET")),
		RazorpayBaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),

		SaveAdURL: getEnv("SAVE_AD_URL", ""),
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.TextAPIKey = strings.TrimSpace(os.Getenv("TEXT_API_KEY"))
	cfg.ImageAPIKey = strings.TrimSpace(os.Getenv("IMAGE_API_KEY"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	switch cfg.ImageProvider {
	case "deepai", "gemini":
	default:
		return Config{}, errors.New("IMAGE_PROVIDER must be deepai or gemini")
	}
	switch cfg.AuthProvider {
	case "mock":
	case "firebase":
		if cfg.FirebaseProjectID == "" {
			return Config{}, errors.New("FIREBASE_PROJECT_ID is required when AUTH_PROVIDER=firebase")
		}
	default:
		return Config{}, errors.New("AUTH_PROVIDER must be mock or firebase")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.FreeLimit < 1 {
		cfg.FreeLimit = 4
	}
	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 50
	}
	if cfg.VariationCount < 1 {
		cfg.VariationCount = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}
	if cfg.ConfigInterval <= 0 {
		cfg.ConfigInterval = 100 * time.Millisecond
	}
	if cfg.ConfigAttempts < 1 {
		cfg.ConfigAttempts = 50
	}

	return cfg, nil
}

// RequireBot checks the values only the Telegram binary needs.
func (c Config) RequireBot() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// ImageKey returns the credential of the selected image provider.
func (c Config) ImageKey() string {
	if c.ImageProvider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.ImageAPIKey
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
