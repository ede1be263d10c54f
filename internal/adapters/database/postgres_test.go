package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultPostgreSQLConfig(t *testing.T) {
	cfg := DefaultPostgreSQLConfig("postgres://localhost/tsys")

	assert.Equal(t, "postgres://localhost/tsys", cfg.DatabaseURL)
	assert.Equal(t, int32(10), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, 2*time.Second, cfg.QueryTimeout)
}

func TestNewPostgreSQLAdapter_InvalidURL(t *testing.T) {
	_, err := NewPostgreSQLAdapter(context.Background(), DefaultPostgreSQLConfig("not-a-valid-url"), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse database URL")
}

// Requires TEST_DATABASE_URL
func TestNewPostgreSQLAdapter(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	adapter, err := NewPostgreSQLAdapter(ctx, DefaultPostgreSQLConfig(databaseURL), zap.NewNop())
	require.NoError(t, err)
	defer adapter.Close()

	assert.NotNil(t, adapter.Pool())
	assert.NoError(t, adapter.HealthCheck(ctx))
	assert.NotNil(t, adapter.Stats())

	qctx, cancel := adapter.QueryContext(ctx)
	defer cancel()
	deadline, ok := qctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
}
