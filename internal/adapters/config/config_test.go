package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/pkg/errors"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_USER", "agent")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("MODEL_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Discussion.MaxRounds)
	assert.Equal(t, 7.0, cfg.Discussion.ScoreThreshold)
	assert.Equal(t, time.Duration(0), cfg.Discussion.CallTimeout)
	assert.Equal(t, "deepseek-v3.2-exp", cfg.Model.Name)
	assert.Equal(t, "text-embedding-v2", cfg.Embedding.Model)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DISCUSSION_MAX_ROUNDS", "5")
	t.Setenv("DISCUSSION_SCORE_THRESHOLD", "8.5")
	t.Setenv("DISCUSSION_CALL_TIMEOUT", "45s")
	t.Setenv("BUSINESS_POSTGRES_DATABASES", "sales,inventory")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Discussion.MaxRounds)
	assert.Equal(t, 8.5, cfg.Discussion.ScoreThreshold)
	assert.Equal(t, 45*time.Second, cfg.Discussion.CallTimeout)
	assert.Equal(t, []string{"sales", "inventory"}, cfg.Business.Databases)
	assert.True(t, cfg.Kafka.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(c *Config)
		field string
	}{
		{"zero rounds", func(c *Config) { c.Discussion.MaxRounds = 0 }, "DISCUSSION_MAX_ROUNDS"},
		{"threshold above scale", func(c *Config) { c.Discussion.ScoreThreshold = 11 }, "DISCUSSION_SCORE_THRESHOLD"},
		{"negative timeout", func(c *Config) { c.Discussion.CallTimeout = -time.Second }, "DISCUSSION_CALL_TIMEOUT"},
		{"sentry without dsn", func(c *Config) { c.ErrorTracking.Enabled = true }, "SENTRY_DSN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Discussion: DiscussionConfig{MaxRounds: 3, ScoreThreshold: 7}}
			tt.mut(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))

			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestBusinessDSN(t *testing.T) {
	c := BusinessConfig{Host: "db", Port: 5433, User: "ro", Password: "pw", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=ro password=pw dbname=sales sslmode=disable", c.DSN("sales"))
}
