package repository

import (
	"arxivshorts/internal/config"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pingTimeout        = 5 * time.Second
	defaultMaxConns    = 10
	defaultApplication = "arxivshorts"
)

// DatabaseConfig represents database connection configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	MaxConnections  int
	MinConnections  int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	SSLMode         string
	// ApplicationName is reported to the server in pg_stat_activity.
	ApplicationName string
}

// DatabaseConfigFrom maps application configuration onto pool settings.
func DatabaseConfigFrom(cfg config.DatabaseConfig) DatabaseConfig {
	return DatabaseConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Database:       cfg.Name,
		Username:       cfg.User,
		Password:       cfg.Password,
		MaxConnections: cfg.MaxConnections,
		MinConnections: cfg.MaxIdleConnections,
		SSLMode:        cfg.SSLMode,
	}
}

// Validate validates the database configuration.
func (c DatabaseConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.MinConnections > c.MaxConnections && c.MaxConnections > 0 {
		return errors.New("min connections cannot exceed max connections")
	}
	return nil
}

// ConnString returns the pgx connection string.
func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, sslMode,
	)
}

// NewDatabaseConnection creates a connection pool and verifies it with a ping.
func NewDatabaseConnection(ctx context.Context, config DatabaseConfig) (*pgxpool.Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	appName := config.ApplicationName
	if appName == "" {
		appName = defaultApplication
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	poolConfig.MaxConns = defaultMaxConns
	if config.MaxConnections > 0 {
		poolConfig.MaxConns = int32(config.MaxConnections)
	}
	if config.MinConnections > 0 {
		poolConfig.MinConns = int32(config.MinConnections)
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if pingErr := pool.Ping(pingCtx); pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", WrapError(pingErr, "ping"))
	}

	return pool, nil
}
