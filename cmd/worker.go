package cmd

import (
	"arxivshorts/internal/adapter/inbound/messaging"
	"arxivshorts/internal/adapter/outbound/fetcher"
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/application/service"
	"arxivshorts/internal/config"
	"arxivshorts/internal/port/inbound"
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// newWorkerCmd creates and returns the worker command.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the item processing worker",
		Long: `Start the worker that consumes work items from the queue.

For every item the worker:
- Fetches the article page and extracts its sections
- Writes the prepared prompt as an item artifact
- Adds the item's success or failure to the batch counter
- Compiles and dispatches the batch once its counter reaches the threshold

The queue driver (nats or pubsub) is selected by queue.driver.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWorkerService(GetConfig())
		},
	}
}

func runWorkerService(cfg *config.Config) error {
	slogger.InfoNoCtx("Starting worker service", slogger.Fields3(
		"queue_driver", cfg.Queue.Driver,
		"threshold", cfg.Pipeline.Threshold,
		"fetch_concurrency", cfg.Pipeline.FetchConcurrency,
	))

	rt := newRuntime(cfg, "arxivshorts-worker")
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer, err := createConsumer(ctx, rt)
	if err != nil {
		slogger.ErrorNoCtx("Failed to create worker", slogger.Field("error", err.Error()))
		return err
	}

	if err := consumer.Start(ctx); err != nil {
		slogger.ErrorNoCtx("Failed to start consumer", slogger.Fields2("consumer", consumer.Name(), "error", err.Error()))
		return err
	}
	slogger.InfoNoCtx("Worker service started successfully", slogger.Field("consumer", consumer.Name()))

	stopCtx, stopCancel := waitForSignal()
	defer stopCancel()
	cancel()

	if err := consumer.Stop(stopCtx); err != nil {
		slogger.ErrorNoCtx("Failed to stop consumer gracefully", slogger.Field("error", err.Error()))
		return err
	}
	slogger.InfoNoCtx("Worker service stopped", nil)
	return nil
}

// createProcessor wires the item processor with its compile and dispatch trigger.
func createProcessor(ctx context.Context, rt *runtime) (*service.ItemProcessorService, error) {
	cfg := rt.cfg

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
	prompts, err := newPromptBuilder(cfg)
	if err != nil {
		return nil, err
	}
	compiler, err := service.NewBatchCompiler(blobs, prompts, cfg.Pipeline.Threshold, metrics)
	if err != nil {
		return nil, err
	}
	executor, err := rt.newExecutor(ctx, blobs)
	if err != nil {
		return nil, err
	}

	trigger := service.NewBatchTrigger(compiler, service.NewJobDispatcher(executor, st.submissions, metrics), metrics)
	articles := fetcher.NewArticleFetcher(fetcher.Config{
		Timeout:   cfg.Pipeline.FetchTimeout,
		UserAgent: cfg.Pipeline.UserAgent,
	})

	return service.NewItemProcessor(articles, blobs, st.counters, prompts, trigger, metrics, service.ItemProcessorConfig{
		Threshold:    cfg.Pipeline.Threshold,
		Concurrency:  cfg.Pipeline.FetchConcurrency,
		FetchTimeout: cfg.Pipeline.FetchTimeout,
		CounterRetry: &cfg.CounterRetry,
	}), nil
}

func createConsumer(ctx context.Context, rt *runtime) (inbound.Consumer, error) {
	processor, err := createProcessor(ctx, rt)
	if err != nil {
		return nil, err
	}

	switch rt.cfg.Queue.Driver {
	case config.QueueDriverNATS:
		js, err := rt.jetStream()
		if err != nil {
			return nil, err
		}
		return messaging.NewNATSConsumer(rt.cfg.Queue, js, processor)
	case config.QueueDriverPubSub:
		client, err := rt.pubsubClient(ctx)
		if err != nil {
			return nil, err
		}
		return messaging.NewPubSubConsumer(client, messaging.PubSubConsumerConfig{
			SubscriptionID:         rt.cfg.PubSub.SubscriptionID,
			SetSize:                rt.cfg.Queue.FetchBatch,
			Linger:                 rt.cfg.PubSub.Linger,
			MaxOutstandingMessages: rt.cfg.PubSub.MaxOutstandingMessages,
		}, processor)
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", rt.cfg.Queue.Driver)
	}
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newWorkerCmd())
}
