// Package notification turns new-object events from the artifact bucket into
// output loader runs.
package notification

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/port/inbound"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

// WatchableBucket is the subset of nats.ObjectStore that emits object events.
type WatchableBucket interface {
	Watch(opts ...nats.WatchOpt) (nats.ObjectWatcher, error)
}

// WatcherConfig holds object watcher settings.
type WatcherConfig struct {
	// Concurrency bounds the number of artifacts loaded at once.
	Concurrency int
	// ScanOnStart replays objects already in the bucket before live updates.
	ScanOnStart bool
}

// ObjectWatcher loads every output artifact written to the bucket. Distinct
// artifacts load in parallel; the lines of one artifact load sequentially.
type ObjectWatcher struct {
	bucket  WatchableBucket
	loader  inbound.OutputLoader
	config  WatcherConfig
	watcher nats.ObjectWatcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewObjectWatcher creates a watcher feeding loader.
func NewObjectWatcher(bucket WatchableBucket, loader inbound.OutputLoader, cfg WatcherConfig) (*ObjectWatcher, error) {
	if bucket == nil {
		return nil, errors.New("bucket cannot be nil")
	}
	if loader == nil {
		return nil, errors.New("output loader cannot be nil")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &ObjectWatcher{bucket: bucket, loader: loader, config: cfg}, nil
}

// Name implements inbound.Consumer.
func (w *ObjectWatcher) Name() string {
	return "object-watcher"
}

// Start opens the bucket watch and begins dispatching loads.
func (w *ObjectWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("object watcher already running")
	}

	var opts []nats.WatchOpt
	if !w.config.ScanOnStart {
		opts = append(opts, nats.UpdatesOnly())
	}
	watcher, err := w.bucket.Watch(opts...)
	if err != nil {
		return fmt.Errorf("failed to watch artifact bucket: %w", err)
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.running = true
	w.wg.Add(1)
	go w.run(ctx, watcher.Updates())

	slogger.Info(ctx, "Object watcher started", slogger.Fields2(
		"concurrency", w.config.Concurrency,
		"scan_on_start", w.config.ScanOnStart,
	))
	return nil
}

// Stop ends the watch and waits for in-flight loads.
func (w *ObjectWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	err := w.watcher.Stop()
	w.wg.Wait()

	if err != nil && !errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("failed to stop bucket watch: %w", err)
	}
	slogger.Info(ctx, "Object watcher stopped", nil)
	return nil
}

func (w *ObjectWatcher) run(ctx context.Context, updates <-chan *nats.ObjectInfo) {
	defer w.wg.Done()

	var g errgroup.Group
	g.SetLimit(w.config.Concurrency)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case info, ok := <-updates:
			if !ok {
				return
			}
			// nil marks the end of the initial replay.
			if info == nil {
				slogger.Debug(ctx, "Initial artifact scan complete", nil)
				continue
			}
			if info.Deleted || !entity.IsOutputArtifactKey(info.Name) {
				continue
			}
			key := info.Name
			g.Go(func() error {
				w.load(ctx, key)
				return nil
			})
		}
	}
}

func (w *ObjectWatcher) load(ctx context.Context, key string) {
	summary, err := w.loader.Load(ctx, key)
	if err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to load output artifact", slogger.Field("key", key))
		return
	}
	slogger.Debug(ctx, "Output artifact handled", slogger.Fields2("key", key, "loaded", summary.Loaded))
}
