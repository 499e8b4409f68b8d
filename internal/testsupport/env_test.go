package testsupport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDatabaseConfigsFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_USER", "user")
	t.Setenv("POSTGRES_PASSWORD", "pass")
	t.Setenv("POSTGRES_DB", "agent")
	t.Setenv("POSTGRES_PORT", "5543")
	t.Setenv("BUSINESS_POSTGRES_DATABASES", "sales, hr ,")

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")

	cfg := LoadDatabaseConfigsFromEnv(t)

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5543, cfg.Postgres.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)

	assert.Equal(t, []string{"sales", "hr"}, cfg.Business.Databases)
	assert.Equal(t, "user", cfg.Business.User)
	assert.Equal(t, 5543, cfg.Business.Port)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestBusinessDatabasesDefaultToAgentDatabase(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_USER", "user")
	t.Setenv("POSTGRES_PASSWORD", "pass")
	t.Setenv("POSTGRES_DB", "agent")
	t.Setenv("BUSINESS_POSTGRES_DATABASES", "")
	t.Setenv("REDIS_HOST", "")

	cfg := LoadDatabaseConfigsFromEnv(t)

	assert.Equal(t, []string{"agent"}, cfg.Business.Databases)
	assert.False(t, cfg.Redis.Enabled)
}

func TestUniqueName(t *testing.T) {
	a := UniqueName("collection")
	b := UniqueName("collection")

	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "collection_")
	assert.Greater(t, NextSequence(), uint64(0))
}
