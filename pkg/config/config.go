package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Plagiarism   PlagiarismConfig
	Certificates CertificatesConfig
	Dispatcher   DispatcherConfig
	Cache        CacheConfig
	Reports      ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	QueryTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PlagiarismConfig carries the gating thresholds. Scores are percentages in
// [0,100]; a score at a threshold does not exceed it. CategoryOverrides maps a
// submission category to its own auto threshold, e.g. "thesis:10,column:25".
type PlagiarismConfig struct {
	AutoThreshold       float64
	EscalationThreshold float64
	CategoryOverrides   map[string]float64
}

// CertificatesConfig points at the external certificate issuer.
type CertificatesConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DispatcherConfig tunes the notification delivery worker.
type DispatcherConfig struct {
	Enabled      bool
	PollInterval time.Duration
	Workers      int
	BatchSize    int
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

// CacheConfig governs read-path caching.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ReportsConfig gates the submission export endpoints.
type ReportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		QueryTimeout: parseDuration(v.GetString("DB_QUERY_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Plagiarism = PlagiarismConfig{
		AutoThreshold:       v.GetFloat64("PLAGIARISM_AUTO_THRESHOLD"),
		EscalationThreshold: v.GetFloat64("PLAGIARISM_ESCALATION_THRESHOLD"),
		CategoryOverrides:   parseOverrides(v.GetString("PLAGIARISM_CATEGORY_OVERRIDES")),
	}

	cfg.Certificates = CertificatesConfig{
		BaseURL: v.GetString("CERTIFICATES_BASE_URL"),
		Timeout: parseDuration(v.GetString("CERTIFICATES_TIMEOUT"), 10*time.Second),
	}

	cfg.Dispatcher = DispatcherConfig{
		Enabled:      v.GetBool("ENABLE_DISPATCHER"),
		PollInterval: parseDuration(v.GetString("DISPATCHER_POLL_INTERVAL"), 30*time.Second),
		Workers:      v.GetInt("DISPATCHER_WORKERS"),
		BatchSize:    v.GetInt("DISPATCHER_BATCH_SIZE"),
		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetInt("SMTP_PORT"),
		SMTPUser:     v.GetString("SMTP_USER"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		SMTPFrom:     v.GetString("SMTP_FROM"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Enabled: v.GetBool("ENABLE_REPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "editorial")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_QUERY_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "editorial-api")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PLAGIARISM_AUTO_THRESHOLD", 15)
	v.SetDefault("PLAGIARISM_ESCALATION_THRESHOLD", 40)
	v.SetDefault("PLAGIARISM_CATEGORY_OVERRIDES", "")

	v.SetDefault("CERTIFICATES_BASE_URL", "http://localhost:8090")
	v.SetDefault("CERTIFICATES_TIMEOUT", "10s")

	v.SetDefault("ENABLE_DISPATCHER", false)
	v.SetDefault("DISPATCHER_POLL_INTERVAL", "30s")
	v.SetDefault("DISPATCHER_WORKERS", 1)
	v.SetDefault("DISPATCHER_BATCH_SIZE", 50)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("ENABLE_REPORTS", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseOverrides reads "category:threshold" pairs separated by commas.
// Malformed pairs are skipped rather than failing startup.
func parseOverrides(raw string) map[string]float64 {
	if raw == "" {
		return nil
	}

	overrides := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pieces := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(pieces) != 2 {
			continue
		}
		category := strings.ToLower(strings.TrimSpace(pieces[0]))
		threshold, err := strconv.ParseFloat(strings.TrimSpace(pieces[1]), 64)
		if err != nil || category == "" {
			continue
		}
		overrides[category] = threshold
	}
	if len(overrides) == 0 {
		return nil
	}
	return overrides
}
