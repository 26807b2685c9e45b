package cmd

import (
	"arxivshorts/internal/adapter/inbound/notification"
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/application/service"
	"arxivshorts/internal/config"
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/port/inbound"
	"arxivshorts/internal/port/outbound"
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLoaderCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "loader",
		Short: "Load bulk job output artifacts into the result store",
		Long: `Load output artifacts into the result store.

With the nats blob driver the loader watches the object bucket and loads every
output artifact as it appears. With the sqlite driver it scans the stored
output artifacts once and exits. --key loads a single artifact.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoader(cmd.Context(), GetConfig(), key)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Load only this output artifact key")
	return cmd
}

func runLoader(ctx context.Context, cfg *config.Config, key string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt := newRuntime(cfg, "arxivshorts-loader")
	defer rt.Close()

	st, err := rt.openStores(ctx)
	if err != nil {
		return err
	}
	blobs, err := rt.openBlobStore(ctx)
	if err != nil {
		return err
	}
	metrics, err := newMetrics()
	if err != nil {
		return err
	}
	loader := service.NewOutputLoader(blobs, st.results, metrics)

	switch {
	case key != "":
		return loadOne(ctx, loader, key)
	case cfg.Blob.Driver == config.BlobDriverNATS:
		return watchOutputs(ctx, rt, loader)
	default:
		return loadAll(ctx, blobs, loader)
	}
}

func loadOne(ctx context.Context, loader inbound.OutputLoader, key string) error {
	summary, err := loader.Load(ctx, key)
	if err != nil {
		return err
	}
	slogger.Info(ctx, "Output artifact loaded", slogger.Fields{
		"key":          summary.Key,
		"loaded":       summary.Loaded,
		"placeholders": summary.Placeholders,
		"malformed":    summary.Malformed,
	})
	return nil
}

// loadAll loads every stored output artifact. One unreadable artifact does not
// stop the scan.
func loadAll(ctx context.Context, blobs outbound.BlobStore, loader inbound.OutputLoader) error {
	keys, err := blobs.List(ctx, entity.OutputArtifactRoot+"/")
	if err != nil {
		return fmt.Errorf("list output artifacts: %w", err)
	}
	failed := 0
	for _, key := range keys {
		if !entity.IsOutputArtifactKey(key) {
			continue
		}
		if err := loadOne(ctx, loader, key); err != nil {
			failed++
			slogger.ErrorWithError(ctx, err, "Failed to load output artifact", slogger.Field("key", key))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d output artifacts could not be loaded", failed)
	}
	return nil
}

func watchOutputs(ctx context.Context, rt *runtime, loader inbound.OutputLoader) error {
	bucket, err := rt.objectBucket()
	if err != nil {
		return err
	}
	watcher, err := notification.NewObjectWatcher(bucket, loader, notification.WatcherConfig{
		Concurrency: rt.cfg.Loader.Concurrency,
		ScanOnStart: rt.cfg.Loader.ScanOnStart,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := watcher.Start(runCtx); err != nil {
		return err
	}

	stopCtx, stopCancel := waitForSignal()
	defer stopCancel()
	cancel()
	return watcher.Stop(stopCtx)
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newLoaderCmd())
}
