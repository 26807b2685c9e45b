package config

import "github.com/spf13/viper"

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("pipeline.threshold", 100)
	v.SetDefault("pipeline.fetch_concurrency", 8)
	v.SetDefault("pipeline.fetch_timeout", "10s")
	v.SetDefault("pipeline.prompt_max_tokens", 350)
	v.SetDefault("pipeline.placeholder_max_tokens", 10)
	v.SetDefault("pipeline.user_agent", "arxivshorts/1.0")

	// Queue defaults
	v.SetDefault("queue.driver", QueueDriverNATS)
	v.SetDefault("queue.subject", "arxiv.items")
	v.SetDefault("queue.stream", "ARXIV_ITEMS")
	v.SetDefault("queue.durable_name", "arxiv-item-processor")
	v.SetDefault("queue.fetch_batch", 10)
	v.SetDefault("queue.fetch_wait", "5s")
	v.SetDefault("queue.ack_wait", "2m")
	v.SetDefault("queue.max_deliver", 5)

	v.SetDefault("pubsub.topic_id", "arxiv-items")
	v.SetDefault("pubsub.subscription_id", "arxiv-items-processor")
	v.SetDefault("pubsub.max_outstanding_messages", 100)
	v.SetDefault("pubsub.linger", "2s")

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Storage defaults
	v.SetDefault("blob.driver", BlobDriverNATS)
	v.SetDefault("blob.bucket", "arxiv-artifacts")
	v.SetDefault("store.driver", StoreDriverPostgres)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "arxivshorts")
	v.SetDefault("database.name", "arxivshorts")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_connections", 5)

	v.SetDefault("sqlite.path", "arxivshorts.db")

	v.SetDefault("firestore.counters_collection", "batch_counters")
	v.SetDefault("firestore.results_collection", "result_records")
	v.SetDefault("firestore.submissions_collection", "job_submissions")

	// Inference defaults
	v.SetDefault("gemini.backend", GeminiBackendAPI)
	v.SetDefault("gemini.location", "us-central1")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.timeout", "60s")

	v.SetDefault("poller.interval", "1m")
	v.SetDefault("poller.max_concurrent", 2)
	v.SetDefault("poller.batch_size", 20)

	v.SetDefault("loader.concurrency", 4)
	v.SetDefault("loader.scan_on_start", false)

	v.SetDefault("enqueue.listing_url", "https://arxiv.org/catchup/cs.AI/{{date}}?abs=True")
	v.SetDefault("enqueue.max_items", 100)
	v.SetDefault("enqueue.timezone", "America/New_York")

	// Counter update retries
	v.SetDefault("counter_retry.max_retries", 5)
	v.SetDefault("counter_retry.initial_delay", "100ms")
	v.SetDefault("counter_retry.max_delay", "5s")
	v.SetDefault("counter_retry.backoff_factor", 2.0)
	v.SetDefault("counter_retry.jitter", true)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
