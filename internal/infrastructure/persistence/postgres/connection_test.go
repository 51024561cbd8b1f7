package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

func TestConfigDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=adaptive user=postgres password=secret sslmode=disable connect_timeout=10",
		cfg.DSN())

	cfg.URL = "postgres://u:p@db:5432/x"
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}

func TestPoolConfigKeepsDefaultsForZeroValues(t *testing.T) {
	cfg := Config{URL: "postgres://u:p@db:5432/x?pool_max_conns=7", MaxConnLifetime: 5 * time.Minute}

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(7), pc.MaxConns)
	assert.Equal(t, 5*time.Minute, pc.MaxConnLifetime)
}

func TestStorageErr(t *testing.T) {
	assert.NoError(t, storageErr("op", nil))

	err := storageErr("op", errors.New("connection reset"))
	assert.True(t, shared.IsStorageUnavailable(err))

	assert.Same(t, shared.ErrProfileNotFound, storageErr("op", shared.ErrProfileNotFound))
}

func TestErrorClassifiers(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	check := &pgconn.PgError{Code: "23514"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(check))
	assert.True(t, IsCheckViolation(check))
}

func TestMigrationsAreOrdered(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
}

func TestHealthStatusErr(t *testing.T) {
	ok := &HealthStatus{Healthy: true, AcquiredConns: 3, MaxConns: 10}
	assert.NoError(t, ok.Err())

	down := &HealthStatus{Error: "connection refused"}
	assert.ErrorContains(t, down.Err(), "connection refused")

	full := &HealthStatus{Healthy: true, AcquiredConns: 10, MaxConns: 10}
	assert.ErrorIs(t, full.Err(), ErrPoolExhausted)
}

func TestHealthCheckOnClosedConnection(t *testing.T) {
	c := &Connection{closed: true}
	err := c.HealthCheck(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.True(t, shared.IsStorageUnavailable(err))
}
