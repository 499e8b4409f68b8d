package testsupport

import (
	"os"
	"strconv"
	"strings"
	"testing"

	"agora/internal/adapters/config"
)

// DatabaseConfigs bundles config sections required for integration tests.
type DatabaseConfigs struct {
	Postgres config.PostgresConfig
	Business config.BusinessConfig
	Redis    config.RedisConfig
}

// LoadDatabaseConfigsFromEnv reads minimal configuration for integration tests.
// Tests are skipped when the agent database variables are missing.
func LoadDatabaseConfigsFromEnv(t *testing.T) DatabaseConfigs {
	t.Helper()

	required := []string{"POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"}

	missing := make([]string, 0)
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		t.Skipf("integration environment missing, set %v to run", missing)
	}

	pg := config.PostgresConfig{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     intValue("POSTGRES_PORT", 5432),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: os.Getenv("POSTGRES_DB"),
		SSLMode:  valueWithDefault("POSTGRES_SSL_MODE", "disable"),
		MaxConns: 10,
	}

	// business databases default to the agent database itself
	business := config.BusinessConfig{
		Host:      valueWithDefault("BUSINESS_POSTGRES_HOST", pg.Host),
		Port:      intValue("BUSINESS_POSTGRES_PORT", pg.Port),
		User:      valueWithDefault("BUSINESS_POSTGRES_USER", pg.User),
		Password:  valueWithDefault("BUSINESS_POSTGRES_PASSWORD", pg.Password),
		Databases: listValue("BUSINESS_POSTGRES_DATABASES", pg.Database),
		SSLMode:   pg.SSLMode,
		MaxConns:  2,
		RowLimit:  100,
	}

	return DatabaseConfigs{
		Postgres: pg,
		Business: business,
		Redis: config.RedisConfig{
			Enabled:  os.Getenv("REDIS_HOST") != "",
			Host:     os.Getenv("REDIS_HOST"),
			Port:     intValue("REDIS_PORT", 6379),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intValue("REDIS_DB", 0),
		},
	}
}

func valueWithDefault(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func intValue(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}

	return fallback
}

func listValue(key string, fallback string) []string {
	val := os.Getenv(key)
	if val == "" {
		return []string{fallback}
	}

	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
