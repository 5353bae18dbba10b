package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Tracing    TracingConfig `mapstructure:"tracing"`
	Redis      RedisConfig
	AI         AIConfig
	Generation GenerationConfig `mapstructure:"generation"`
	Mastery    MasteryConfig    `mapstructure:"mastery"`
	Upload     UploadConfig     `mapstructure:"upload"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`

	// Runtime flags, set from the command line rather than the config file.
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
	DecayOnce    bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// AIConfig selects and configures the content generation backend.
type AIConfig struct {
	Provider string        `mapstructure:"provider"` // openai, anthropic, gemini, mock
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// AttemptTimeout bounds a single backend call; the whole request,
	// including the retry, is bounded by Timeout.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	RetryWait      time.Duration `mapstructure:"retry_wait"`
}

type GenerationConfig struct {
	MaxQuestions     int     `mapstructure:"max_questions"`
	DefaultDueDays   int     `mapstructure:"default_due_days"`
	MaxSourceChars   int     `mapstructure:"max_source_chars"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature"`
	MaxTopicSuggests int     `mapstructure:"max_topic_suggestions"`
}

type MasteryConfig struct {
	DefaultSkills []string    `mapstructure:"default_skills"`
	Decay         DecayConfig `mapstructure:"decay"`
}

type DecayConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	GraceWindow time.Duration `mapstructure:"grace_window"`
	HalfLife    time.Duration `mapstructure:"half_life"`
	Floor       float64       `mapstructure:"floor"`
	BatchSize   int           `mapstructure:"batch_size"`
	Workers     int           `mapstructure:"workers"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

type UploadConfig struct {
	MaxBytes        int64         `mapstructure:"max_bytes"`
	ExtractTimeout  time.Duration `mapstructure:"extract_timeout"`
	PdfToTextBinary string        `mapstructure:"pdftotext_binary"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string // mysql, postgres, sqlite
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	Path      string // sqlite file path
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioSecure   bool   `mapstructure:"minio_secure"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
	Insecure          bool   `mapstructure:"insecure"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.attempt_timeout", 30*time.Second)
	v.SetDefault("ai.retry_wait", time.Second)

	v.SetDefault("generation.max_questions", 20)
	v.SetDefault("generation.default_due_days", 7)
	v.SetDefault("generation.max_source_chars", 12000)
	v.SetDefault("generation.max_tokens", 4096)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_topic_suggestions", 15)

	v.SetDefault("mastery.default_skills", []string{"Number Sense", "Fractions", "Reading Comprehension"})
	v.SetDefault("mastery.decay.enabled", true)
	v.SetDefault("mastery.decay.interval", 24*time.Hour)
	v.SetDefault("mastery.decay.grace_window", 72*time.Hour)
	v.SetDefault("mastery.decay.half_life", 30*24*time.Hour)
	v.SetDefault("mastery.decay.floor", 0.0)
	v.SetDefault("mastery.decay.batch_size", 200)
	v.SetDefault("mastery.decay.workers", 4)
	v.SetDefault("mastery.decay.lock_ttl", 30*time.Minute)

	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("upload.extract_timeout", 2*time.Minute)
	v.SetDefault("upload.pdftotext_binary", "pdftotext")

	v.SetDefault("rate_limit.max_requests", 100000)
	v.SetDefault("rate_limit.window_minutes", 1)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("TUTORHUB")
	v.AutomaticEnv()

	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")
	v.BindEnv("database.path", "DATABASE_PATH")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// AI
	v.BindEnv("ai.provider", "AI_PROVIDER")
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "AI_API_KEY")
	v.BindEnv("ai.model", "AI_MODEL")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate checks values that would otherwise break the engine at runtime.
func (c *Config) Validate() error {
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Generation.MaxQuestions <= 0 {
		return fmt.Errorf("generation.max_questions must be positive, got %d", c.Generation.MaxQuestions)
	}
	d := c.Mastery.Decay
	if d.Floor < 0 || d.Floor > 1 {
		return fmt.Errorf("mastery.decay.floor must be within [0,1], got %v", d.Floor)
	}
	if d.HalfLife <= 0 {
		return fmt.Errorf("mastery.decay.half_life must be positive")
	}
	if d.GraceWindow < 0 {
		return fmt.Errorf("mastery.decay.grace_window must not be negative")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	return nil
}
