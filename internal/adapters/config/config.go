package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"agora/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	Business      BusinessConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Model         ModelConfig
	Embedding     EmbeddingConfig
	Discussion    DiscussionConfig
	Chat          ChatConfig
	RateLimit     RateLimitConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"agora"`
	Version  string `envconfig:"APP_VERSION" default:"1.0.0"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type HTTPConfig struct {
	Port         int           `envconfig:"HTTP_PORT" default:"8080"`
	CORSOrigins  []string      `envconfig:"HTTP_CORS_ORIGINS" default:"*"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"5m"`
}

// PostgresConfig is the agent database: conversation turns and the knowledge store.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" default:"agent"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return dsn(c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// BusinessConfig describes the read-only business databases the db agent inspects.
// All databases share one server and one set of credentials.
type BusinessConfig struct {
	Host      string   `envconfig:"BUSINESS_POSTGRES_HOST" default:"localhost"`
	Port      int      `envconfig:"BUSINESS_POSTGRES_PORT" default:"5432"`
	User      string   `envconfig:"BUSINESS_POSTGRES_USER"`
	Password  string   `envconfig:"BUSINESS_POSTGRES_PASSWORD"`
	Databases []string `envconfig:"BUSINESS_POSTGRES_DATABASES"`
	SSLMode   string   `envconfig:"BUSINESS_POSTGRES_SSL_MODE" default:"disable"`
	MaxConns  int      `envconfig:"BUSINESS_POSTGRES_MAX_CONNS" default:"5"`
	RowLimit  int      `envconfig:"BUSINESS_QUERY_ROW_LIMIT" default:"1000"`
}

// DSN returns the connection string for one of the configured databases.
func (c BusinessConfig) DSN(database string) string {
	return dsn(c.Host, c.Port, c.User, c.Password, database, c.SSLMode)
}

func dsn(host string, port int, user, password, database, sslMode string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, database, sslMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig enables completion events when at least one broker is set.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_TOPIC_PREFIX" default:"agora"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// ModelConfig points at an OpenAI-compatible chat completion endpoint.
type ModelConfig struct {
	APIKey       string        `envconfig:"MODEL_API_KEY" required:"true"`
	BaseURL      string        `envconfig:"MODEL_API_BASE_URL" default:"https://api.deepseek.com/v1"`
	Name         string        `envconfig:"MODEL_NAME" default:"deepseek-v3.2-exp"`
	Temperature  float64       `envconfig:"MODEL_TEMPERATURE" default:"0.7"`
	MaxTokens    int           `envconfig:"MODEL_MAX_TOKENS" default:"4096"`
	Timeout      time.Duration `envconfig:"MODEL_TIMEOUT" default:"120s"`
	ReqPerMinute float64       `envconfig:"MODEL_REQ_PER_MINUTE" default:"120"`
}

type EmbeddingConfig struct {
	APIKey     string `envconfig:"EMBEDDING_API_KEY"`
	BaseURL    string `envconfig:"EMBEDDING_API_BASE_URL" default:"https://api.openai.com/v1"`
	Model      string `envconfig:"EMBEDDING_MODEL_NAME" default:"text-embedding-v2"`
	Dimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`
}

type DiscussionConfig struct {
	MaxRounds      int           `envconfig:"DISCUSSION_MAX_ROUNDS" default:"3"`
	ScoreThreshold float64       `envconfig:"DISCUSSION_SCORE_THRESHOLD" default:"7.0"`
	CallTimeout    time.Duration `envconfig:"DISCUSSION_CALL_TIMEOUT" default:"0"`
}

type ChatConfig struct {
	HistoryTurns int `envconfig:"CHAT_HISTORY_TURNS" default:"5"`
}

// RateLimitConfig throttles /api requests per client address.
type RateLimitConfig struct {
	Enabled      bool `envconfig:"API_RATE_LIMIT_ENABLED" default:"true"`
	ReqPerMinute int  `envconfig:"API_RATE_LIMIT_PER_MINUTE" default:"60"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.Discussion.MaxRounds < 1 {
		return errors.NewValidationError("DISCUSSION_MAX_ROUNDS", "must be at least 1", c.Discussion.MaxRounds)
	}
	if c.Discussion.ScoreThreshold < 0 || c.Discussion.ScoreThreshold > 10 {
		return errors.NewValidationError("DISCUSSION_SCORE_THRESHOLD", "must be within 0..10", c.Discussion.ScoreThreshold)
	}
	if c.Discussion.CallTimeout < 0 {
		return errors.NewValidationError("DISCUSSION_CALL_TIMEOUT", "must not be negative", c.Discussion.CallTimeout)
	}
	if c.ErrorTracking.Enabled && c.ErrorTracking.SentryDSN == "" {
		return errors.NewValidationError("SENTRY_DSN", "required when error tracking is enabled", "")
	}
	return nil
}
