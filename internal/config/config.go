package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration. Values come from an optional
// env-style file and the process environment; the environment wins.
type Config struct {
	Port          string `mapstructure:"PORT"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
	DataDir       string `mapstructure:"DATA_DIR"`
	CORSOrigins   string `mapstructure:"CORS_ORIGINS"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	RequireAdminSession bool `mapstructure:"REQUIRE_ADMIN_SESSION"`

	PostgresDSN     string `mapstructure:"POSTGRES_DSN"`
	DBResetOnStart  bool   `mapstructure:"DB_RESET_ON_START"`
	BulkLoadOnStart bool   `mapstructure:"BULK_LOAD_ON_START"`
	WaterNameSource string `mapstructure:"WATER_NAME_SOURCE"`
	MongoURI        string `mapstructure:"MONGO_URI"`
	MongoDB         string `mapstructure:"MONGO_DB"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	MinioEndpoint   string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey  string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey  string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket     string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL     bool   `mapstructure:"MINIO_USE_SSL"`

	LLMBaseURL       string `mapstructure:"LLM_BASE_URL"`
	LLMAPIKey        string `mapstructure:"LLM_API_KEY"`
	ZhipuAPIKey      string `mapstructure:"ZHIPU_API_KEY"`
	LLMChatModel     string `mapstructure:"LLM_CHAT_MODEL"`
	LLMVisionModel   string `mapstructure:"LLM_VISION_MODEL"`
	ChatHistoryLimit int    `mapstructure:"CHAT_HISTORY_LIMIT"`

	WeatherBaseURL     string        `mapstructure:"WEATHER_BASE_URL"`
	MarketBaseURL      string        `mapstructure:"MARKET_BASE_URL"`
	MarketThrottle     time.Duration `mapstructure:"MARKET_THROTTLE"`
	MarketTrendTimeout time.Duration `mapstructure:"MARKET_TREND_TIMEOUT"`

	TrackerServiceURL string        `mapstructure:"TRACKER_SERVICE_URL"`
	VideoJobTimeout   time.Duration `mapstructure:"VIDEO_JOB_TIMEOUT"`
	ExportTTL         time.Duration `mapstructure:"EXPORT_TTL"`
}

var defaults = map[string]any{
	"PORT":                  "5000",
	"PUBLIC_BASE_URL":       "http://localhost:5000",
	"DATA_DIR":              "data",
	"CORS_ORIGINS":          "http://localhost:5173,http://localhost:3000",
	"LOG_LEVEL":             "info",
	"REQUIRE_ADMIN_SESSION": false,
	"POSTGRES_DSN":          "",
	"DB_RESET_ON_START":     true,
	"BULK_LOAD_ON_START":    true,
	"WATER_NAME_SOURCE":     "db",
	"MONGO_URI":             "",
	"MONGO_DB":              "fishery",
	"REDIS_ADDR":            "redis:6379",
	"REDIS_PASSWORD":        "",
	"MINIO_ENDPOINT":        "minio:9000",
	"MINIO_ACCESS_KEY":      "",
	"MINIO_SECRET_KEY":      "",
	"MINIO_BUCKET":          "fishery-files",
	"MINIO_USE_SSL":         false,
	"LLM_BASE_URL":          "https://open.bigmodel.cn/api/paas/v4/",
	"LLM_API_KEY":           "",
	"ZHIPU_API_KEY":         "",
	"LLM_CHAT_MODEL":        "glm-4-flash-250414",
	"LLM_VISION_MODEL":      "glm-4v-flash",
	"CHAT_HISTORY_LIMIT":    20,
	"WEATHER_BASE_URL":      "https://api.open-meteo.com/v1/forecast",
	"MARKET_BASE_URL":       "http://www.xinfadi.com.cn",
	"MARKET_THROTTLE":       "500ms",
	"MARKET_TREND_TIMEOUT":  "2m",
	"TRACKER_SERVICE_URL":   "http://tracker-service:8002",
	"VIDEO_JOB_TIMEOUT":     "30m",
	"EXPORT_TTL":            "20s",
}

// Load reads configuration from filePath (skipped when empty) and the
// environment.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if filePath != "" {
		v.SetConfigFile(filePath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = cfg.ZhipuAPIKey
	}
	if cfg.WaterNameSource != "db" && cfg.WaterNameSource != "files" {
		return nil, fmt.Errorf("WATER_NAME_SOURCE must be db or files, got %q", cfg.WaterNameSource)
	}
	return cfg, nil
}

// AllowedOrigins splits CORSOrigins into a list for the CORS middleware.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
