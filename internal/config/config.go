package config

import (
	"arxivshorts/internal/application/common/retry"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Driver names.
const (
	QueueDriverNATS   = "nats"
	QueueDriverPubSub = "pubsub"

	BlobDriverNATS   = "nats"
	BlobDriverSQLite = "sqlite"

	StoreDriverPostgres  = "postgres"
	StoreDriverSQLite    = "sqlite"
	StoreDriverFirestore = "firestore"

	GeminiBackendAPI    = "gemini"
	GeminiBackendVertex = "vertex"
)

// Config holds the complete application configuration.
type Config struct {
	Log          LogConfig         `mapstructure:"log"`
	Pipeline     PipelineConfig    `mapstructure:"pipeline"`
	Queue        QueueConfig       `mapstructure:"queue"`
	PubSub       PubSubConfig      `mapstructure:"pubsub"`
	NATS         NATSConfig        `mapstructure:"nats"`
	Blob         BlobConfig        `mapstructure:"blob"`
	Store        StoreConfig       `mapstructure:"store"`
	Database     DatabaseConfig    `mapstructure:"database"`
	SQLite       SQLiteConfig      `mapstructure:"sqlite"`
	Firestore    FirestoreConfig   `mapstructure:"firestore"`
	Gemini       GeminiConfig      `mapstructure:"gemini"`
	Poller       PollerConfig      `mapstructure:"poller"`
	Loader       LoaderConfig      `mapstructure:"loader"`
	Enqueue      EnqueueConfig     `mapstructure:"enqueue"`
	CounterRetry retry.RetryConfig `mapstructure:"counter_retry"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PipelineConfig holds the batch threshold and per-item processing settings.
type PipelineConfig struct {
	Threshold            int           `mapstructure:"threshold"`
	FetchConcurrency     int           `mapstructure:"fetch_concurrency"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	PromptMaxTokens      int           `mapstructure:"prompt_max_tokens"`
	PlaceholderMaxTokens int           `mapstructure:"placeholder_max_tokens"`
	PromptFile           string        `mapstructure:"prompt_file"`
	AnthropicVersion     string        `mapstructure:"anthropic_version"`
	UserAgent            string        `mapstructure:"user_agent"`
}

// QueueConfig holds work-item queue configuration shared by both drivers.
type QueueConfig struct {
	Driver      string        `mapstructure:"driver"`
	Subject     string        `mapstructure:"subject"`
	Stream      string        `mapstructure:"stream"`
	DurableName string        `mapstructure:"durable_name"`
	FetchBatch  int           `mapstructure:"fetch_batch"`
	FetchWait   time.Duration `mapstructure:"fetch_wait"`
	AckWait     time.Duration `mapstructure:"ack_wait"`
	MaxDeliver  int           `mapstructure:"max_deliver"`
}

// PubSubConfig holds Google Cloud Pub/Sub configuration.
type PubSubConfig struct {
	ProjectID              string        `mapstructure:"project_id"`
	TopicID                string        `mapstructure:"topic_id"`
	SubscriptionID         string        `mapstructure:"subscription_id"`
	CredentialsFile        string        `mapstructure:"credentials_file"`
	MaxOutstandingMessages int           `mapstructure:"max_outstanding_messages"`
	Linger                 time.Duration `mapstructure:"linger"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// BlobConfig selects the artifact store.
type BlobConfig struct {
	Driver string `mapstructure:"driver"`
	Bucket string `mapstructure:"bucket"`
}

// StoreConfig selects the counter, result and submission store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	SSLMode            string `mapstructure:"sslmode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// MigrationURL returns the connection URL for the pgx migration driver.
func (d DatabaseConfig) MigrationURL() string {
	u := url.URL{
		Scheme: "pgx5",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
	}
	return u.String()
}

// SQLiteConfig holds the local store configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// FirestoreConfig holds Firestore configuration.
type FirestoreConfig struct {
	ProjectID             string `mapstructure:"project_id"`
	CredentialsFile       string `mapstructure:"credentials_file"`
	CountersCollection    string `mapstructure:"counters_collection"`
	ResultsCollection     string `mapstructure:"results_collection"`
	SubmissionsCollection string `mapstructure:"submissions_collection"`
}

// GeminiConfig holds the bulk inference executor configuration.
type GeminiConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Backend  string        `mapstructure:"backend"`
	Project  string        `mapstructure:"project"`
	Location string        `mapstructure:"location"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PollerConfig holds job poller configuration.
type PollerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	BatchSize     int           `mapstructure:"batch_size"`
}

// LoaderConfig holds output loader configuration.
type LoaderConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	ScanOnStart bool `mapstructure:"scan_on_start"`
}

// EnqueueConfig holds the listing producer configuration.
type EnqueueConfig struct {
	ListingURL string `mapstructure:"listing_url"`
	MaxItems   int    `mapstructure:"max_items"`
	Timezone   string `mapstructure:"timezone"`
}

// New creates a new Config instance from Viper.
func New(v *viper.Viper) *Config {
	var config Config

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	return &config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Pipeline.Threshold < 1 {
		return errors.New("pipeline.threshold must be at least 1")
	}
	if c.Pipeline.FetchConcurrency < 1 {
		return errors.New("pipeline.fetch_concurrency must be at least 1")
	}
	if c.Pipeline.FetchTimeout <= 0 {
		return errors.New("pipeline.fetch_timeout must be positive")
	}
	if c.Pipeline.PromptMaxTokens < 1 || c.Pipeline.PlaceholderMaxTokens < 1 {
		return errors.New("pipeline max token settings must be at least 1")
	}

	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}

	switch c.Blob.Driver {
	case BlobDriverNATS, BlobDriverSQLite:
	default:
		return fmt.Errorf("blob.driver must be %q or %q, got %q", BlobDriverNATS, BlobDriverSQLite, c.Blob.Driver)
	}
	if c.Blob.Bucket == "" {
		return errors.New("blob.bucket is required")
	}

	switch c.Gemini.Backend {
	case GeminiBackendAPI, GeminiBackendVertex:
	default:
		return fmt.Errorf("gemini.backend must be %q or %q, got %q", GeminiBackendAPI, GeminiBackendVertex, c.Gemini.Backend)
	}

	if c.Enqueue.MaxItems < 1 {
		return errors.New("enqueue.max_items must be at least 1")
	}
	if c.Loader.Concurrency < 1 {
		return errors.New("loader.concurrency must be at least 1")
	}

	if err := c.CounterRetry.Validate(); err != nil {
		return fmt.Errorf("counter_retry: %w", err)
	}
	if c.CounterRetry.MaxRetries < 1 {
		return errors.New("counter_retry.max_retries must be at least 1")
	}

	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Driver {
	case QueueDriverNATS:
		if c.Queue.Subject == "" || c.Queue.Stream == "" {
			return errors.New("queue.subject and queue.stream are required for the nats driver")
		}
	case QueueDriverPubSub:
		if c.PubSub.ProjectID == "" {
			return errors.New("pubsub.project_id is required for the pubsub driver")
		}
		if c.PubSub.SubscriptionID == "" {
			return errors.New("pubsub.subscription_id is required for the pubsub driver")
		}
	default:
		return fmt.Errorf("queue.driver must be %q or %q, got %q", QueueDriverNATS, QueueDriverPubSub, c.Queue.Driver)
	}
	if c.Queue.FetchBatch < 1 {
		return errors.New("queue.fetch_batch must be at least 1")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.User == "" {
			return errors.New("database.user is required")
		}
		if c.Database.Name == "" {
			return errors.New("database.name is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return errors.New("database.port must be between 1 and 65535")
		}
	case StoreDriverSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required for the sqlite store")
		}
	case StoreDriverFirestore:
		if c.Firestore.ProjectID == "" {
			return errors.New("firestore.project_id is required for the firestore store")
		}
	default:
		return fmt.Errorf("store.driver must be one of postgres, sqlite, firestore, got %q", c.Store.Driver)
	}
	if c.Blob.Driver == BlobDriverSQLite && c.SQLite.Path == "" {
		return errors.New("sqlite.path is required for the sqlite blob store")
	}
	return nil
}
