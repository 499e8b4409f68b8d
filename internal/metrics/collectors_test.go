package metrics_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"agora/internal/metrics"
	"agora/internal/repository/postgres"
	"agora/internal/testsupport"
)

func TestStoreCollector(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t, func(db *sqlx.DB) error {
		_, err := postgres.Migrate(context.Background(), db)
		return err
	})

	c := metrics.NewStoreCollector(testDB.DB())

	// turns and sessions are always reported; knowledge adds one series per collection
	assert.GreaterOrEqual(t, testutil.CollectAndCount(c), 2)
	assert.Equal(t, 1, testutil.CollectAndCount(c, "agora_conversation_turns"))
}
