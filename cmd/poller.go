package cmd

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/application/service"
	"arxivshorts/internal/application/worker"
	"arxivshorts/internal/config"
	"arxivshorts/internal/port/inbound"
	"context"

	"github.com/spf13/cobra"
)

func newPollerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poller",
		Short: "Poll submitted bulk jobs and write their output artifacts",
		Long: `Poll the submission store for active bulk jobs.

Finished jobs are marked succeeded, failed or cancelled. The results of a
succeeded job are written as an output artifact under inferred-outputs/.
With the sqlite blob driver there is no store notification, so the poller
also loads each artifact it writes.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPoller(GetConfig())
		},
	}
}

func runPoller(cfg *config.Config) error {
	rt := newRuntime(cfg, "arxivshorts-poller")
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller, err := createJobPoller(ctx, rt)
	if err != nil {
		slogger.ErrorNoCtx("Failed to create job poller", slogger.Field("error", err.Error()))
		return err
	}
	if err := poller.Start(ctx); err != nil {
		return err
	}

	_, stopCancel := waitForSignal()
	defer stopCancel()
	cancel()
	poller.Stop()
	return nil
}

func createJobPoller(ctx context.Context, rt *runtime) (*worker.JobPoller, error) {
	st, err := rt.openStores(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := rt.openBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	metrics, err := newMetrics()
	if err != nil {
		return nil, err
	}
	executor, err := rt.newExecutor(ctx, blobs)
	if err != nil {
		return nil, err
	}

	var loader inbound.OutputLoader
	if rt.cfg.Blob.Driver == config.BlobDriverSQLite {
		loader = service.NewOutputLoader(blobs, st.results, metrics)
	}

	return worker.NewJobPoller(st.submissions, executor, blobs, loader, metrics, worker.JobPollerConfig{
		PollInterval:  rt.cfg.Poller.Interval,
		MaxConcurrent: rt.cfg.Poller.MaxConcurrent,
		BatchSize:     rt.cfg.Poller.BatchSize,
	}), nil
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newPollerCmd())
}
