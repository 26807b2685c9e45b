package cmd

import (
	"arxivshorts/internal/adapter/outbound/blobstore"
	"arxivshorts/internal/adapter/outbound/firestore"
	"arxivshorts/internal/adapter/outbound/gemini"
	"arxivshorts/internal/adapter/outbound/localstore"
	outmessaging "arxivshorts/internal/adapter/outbound/messaging"
	"arxivshorts/internal/adapter/outbound/repository"
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/application/service"
	"arxivshorts/internal/config"
	"arxivshorts/internal/port/outbound"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

// stores groups the repositories selected by store.driver.
type stores struct {
	counters    outbound.CounterRepository
	results     outbound.ResultRepository
	submissions outbound.SubmissionRepository
}

// runtime owns the connections a command opens and closes them in reverse
// order. Connections are opened on first use and shared.
type runtime struct {
	cfg     *config.Config
	name    string
	closers []func()

	js     nats.JetStreamContext
	sqlite *gorm.DB
	bucket nats.ObjectStore
}

func newRuntime(cfg *config.Config, name string) *runtime {
	return &runtime{cfg: cfg, name: name}
}

func (r *runtime) onClose(fn func()) {
	r.closers = append(r.closers, fn)
}

// Close releases every opened connection.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func (r *runtime) jetStream() (nats.JetStreamContext, error) {
	if r.js != nil {
		return r.js, nil
	}
	conn, js, err := outmessaging.ConnectNATS(r.cfg.NATS, r.name)
	if err != nil {
		return nil, err
	}
	r.js = js
	r.onClose(func() {
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
	})
	return js, nil
}

func (r *runtime) sqliteDB(ctx context.Context) (*gorm.DB, error) {
	if r.sqlite != nil {
		return r.sqlite, nil
	}
	db, err := localstore.Open(r.cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	if err := localstore.Migrate(ctx, db); err != nil {
		_ = localstore.Close(db)
		return nil, fmt.Errorf("failed to migrate sqlite store: %w", err)
	}
	r.sqlite = db
	r.onClose(func() {
		if err := localstore.Close(db); err != nil {
			slogger.ErrorNoCtx("Failed to close sqlite store", slogger.Field("error", err.Error()))
		}
	})
	return db, nil
}

func (r *runtime) pubsubClient(ctx context.Context) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if r.cfg.PubSub.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(r.cfg.PubSub.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, r.cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	r.onClose(func() { _ = client.Close() })
	return client, nil
}

// openStores builds the counter, result and submission repositories.
func (r *runtime) openStores(ctx context.Context) (*stores, error) {
	switch r.cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := repository.NewDatabaseConnection(ctx, repository.DatabaseConfigFrom(r.cfg.Database))
		if err != nil {
			return nil, err
		}
		r.onClose(pool.Close)
		return &stores{
			counters:    repository.NewPostgreSQLCounterRepository(pool),
			results:     repository.NewPostgreSQLResultRepository(pool),
			submissions: repository.NewPostgreSQLSubmissionRepository(pool),
		}, nil

	case config.StoreDriverSQLite:
		db, err := r.sqliteDB(ctx)
		if err != nil {
			return nil, err
		}
		return &stores{
			counters:    localstore.NewCounterStore(db),
			results:     localstore.NewResultStore(db),
			submissions: localstore.NewSubmissionStore(db),
		}, nil

	case config.StoreDriverFirestore:
		client, err := firestore.NewClient(ctx, r.cfg.Firestore)
		if err != nil {
			return nil, err
		}
		r.onClose(func() { _ = client.Close() })
		collections := firestore.CollectionsFrom(r.cfg.Firestore)
		return &stores{
			counters:    firestore.NewCounterStore(client, collections),
			results:     firestore.NewResultStore(client, collections),
			submissions: firestore.NewSubmissionStore(client, collections),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", r.cfg.Store.Driver)
	}
}

// openBlobStore builds the artifact store selected by blob.driver.
func (r *runtime) openBlobStore(ctx context.Context) (outbound.BlobStore, error) {
	switch r.cfg.Blob.Driver {
	case config.BlobDriverNATS:
		bucket, err := r.objectBucket()
		if err != nil {
			return nil, err
		}
		return blobstore.NewObjectStore(bucket)
	case config.BlobDriverSQLite:
		db, err := r.sqliteDB(ctx)
		if err != nil {
			return nil, err
		}
		return localstore.NewBlobStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", r.cfg.Blob.Driver)
	}
}

func (r *runtime) objectBucket() (nats.ObjectStore, error) {
	if r.bucket != nil {
		return r.bucket, nil
	}
	js, err := r.jetStream()
	if err != nil {
		return nil, err
	}
	bucket, err := blobstore.OpenBucket(js, r.cfg.Blob.Bucket)
	if err != nil {
		return nil, err
	}
	r.bucket = bucket
	return bucket, nil
}

// openPublisher builds the work-item publisher selected by queue.driver.
func (r *runtime) openPublisher(ctx context.Context) (outbound.WorkItemPublisher, error) {
	switch r.cfg.Queue.Driver {
	case config.QueueDriverNATS:
		js, err := r.jetStream()
		if err != nil {
			return nil, err
		}
		if err := outmessaging.EnsureStream(js, r.cfg.Queue); err != nil {
			return nil, err
		}
		return outmessaging.NewNATSPublisher(js, r.cfg.Queue.Subject)
	case config.QueueDriverPubSub:
		client, err := r.pubsubClient(ctx)
		if err != nil {
			return nil, err
		}
		publisher, err := outmessaging.NewPubSubPublisher(ctx, client, r.cfg.PubSub.TopicID)
		if err != nil {
			return nil, err
		}
		r.onClose(publisher.Stop)
		return publisher, nil
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", r.cfg.Queue.Driver)
	}
}

// newExecutor builds the Gemini batch job executor. Job input is read from blobs.
func (r *runtime) newExecutor(ctx context.Context, blobs outbound.BlobStore) (*gemini.BatchJobExecutor, error) {
	clientCfg := gemini.ClientConfigFrom(r.cfg.Gemini)
	client, err := gemini.NewGenAIClient(ctx, clientCfg)
	if err != nil {
		return nil, err
	}
	return gemini.NewBatchJobExecutor(client.Batches, blobs, clientCfg)
}

func newPromptBuilder(cfg *config.Config) (*service.PromptBuilder, error) {
	tmpl, err := config.LoadPromptTemplate(cfg.Pipeline.PromptFile)
	if err != nil {
		return nil, err
	}
	return service.NewPromptBuilder(service.PromptBuilderConfig{
		Instruction:          tmpl.Instruction,
		MaxTokens:            cfg.Pipeline.PromptMaxTokens,
		PlaceholderMaxTokens: cfg.Pipeline.PlaceholderMaxTokens,
		AnthropicVersion:     cfg.Pipeline.AnthropicVersion,
	}), nil
}

func newMetrics() (*service.PipelineMetrics, error) {
	return service.NewPipelineMetrics(otel.GetMeterProvider())
}

// waitForSignal blocks until SIGINT or SIGTERM and returns a context bounded
// by the shutdown timeout.
func waitForSignal() (context.Context, context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	slogger.InfoNoCtx("Received shutdown signal, initiating graceful shutdown", slogger.Fields{
		"signal": sig.String(),
	})
	return context.WithTimeout(context.Background(), shutdownTimeout)
}
