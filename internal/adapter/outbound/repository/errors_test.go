package repository

import (
	"arxivshorts/internal/config"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		expected  error
		retryable bool
	}{
		{name: "no rows", err: pgx.ErrNoRows, expected: ErrNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, expected: ErrAlreadyExists},
		{name: "check violation", err: &pgconn.PgError{Code: "23514"}, expected: ErrConstraintViolation},
		{name: "connection exception", err: &pgconn.PgError{Code: "08006"}, expected: ErrConnectionFailed, retryable: true},
		{name: "admin shutdown", err: &pgconn.PgError{Code: "57P01"}, expected: ErrConnectionFailed, retryable: true},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, retryable: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapError(tt.err, "op")

			require.Error(t, wrapped)
			assert.Contains(t, wrapped.Error(), "op failed")
			if tt.expected != nil {
				assert.ErrorIs(t, wrapped, tt.expected)
			}
			assert.Equal(t, tt.retryable, IsRetryableError(tt.err))
		})
	}

	assert.NoError(t, WrapError(nil, "op"))
	assert.False(t, IsRetryableError(errors.New("syntax error")))
}

func TestDatabaseConfig(t *testing.T) {
	cfg := DatabaseConfigFrom(config.DatabaseConfig{
		Host:               "db",
		Port:               5432,
		User:               "arxiv",
		Password:           "secret",
		Name:               "arxivshorts",
		MaxConnections:     10,
		MaxIdleConnections: 2,
	})

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "host=db port=5432 dbname=arxivshorts user=arxiv password=secret sslmode=disable", cfg.ConnString())

	tests := []struct {
		name   string
		mutate func(*DatabaseConfig)
	}{
		{name: "missing host", mutate: func(c *DatabaseConfig) { c.Host = "" }},
		{name: "bad port", mutate: func(c *DatabaseConfig) { c.Port = 70000 }},
		{name: "missing database", mutate: func(c *DatabaseConfig) { c.Database = "" }},
		{name: "missing user", mutate: func(c *DatabaseConfig) { c.Username = "" }},
		{name: "min above max", mutate: func(c *DatabaseConfig) { c.MinConnections = 20 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invalid := cfg
			tt.mutate(&invalid)
			assert.Error(t, invalid.Validate())
		})
	}
}
