package cmd

import (
	"arxivshorts/internal/adapter/outbound/fetcher"
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/application/service"
	"arxivshorts/internal/config"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newEnqueueCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Publish the day's arXiv listing as work items",
		Long: `Fetch the arXiv listing page and publish one work item per article.

The batch id is the listing date (YYYY-MM-DD) in enqueue.timezone. --date
publishes under an explicit batch id instead of today's.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnqueue(cmd.Context(), cmd.OutOrStdout(), GetConfig(), date)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Batch date (YYYY-MM-DD); defaults to today")
	return cmd
}

func runEnqueue(ctx context.Context, out io.Writer, cfg *config.Config, date string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if date != "" {
		if _, err := time.Parse(service.BatchDateLayout, date); err != nil {
			return fmt.Errorf("invalid --date %q: %w", date, err)
		}
	}

	location, err := time.LoadLocation(cfg.Enqueue.Timezone)
	if err != nil {
		return fmt.Errorf("invalid enqueue timezone %q: %w", cfg.Enqueue.Timezone, err)
	}
	source, err := fetcher.NewListingSource(cfg.Enqueue.ListingURL, fetcher.Config{
		Timeout:   cfg.Pipeline.FetchTimeout,
		UserAgent: cfg.Pipeline.UserAgent,
	})
	if err != nil {
		return err
	}

	rt := newRuntime(cfg, "arxivshorts-enqueue")
	defer rt.Close()

	publisher, err := rt.openPublisher(ctx)
	if err != nil {
		return err
	}

	summary, err := service.NewListingEnqueuer(source, publisher, cfg.Enqueue.MaxItems, location).Enqueue(ctx, date)
	if summary != nil {
		fmt.Fprintf(out, "batch %s: listed=%d published=%d failed=%d\n",
			summary.BatchID, summary.Listed, summary.Published, summary.Failed)
	}
	if err != nil {
		slogger.ErrorWithError(ctx, err, "Enqueue failed", slogger.Field("date", date))
		return err
	}
	return nil
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newEnqueueCmd())
}
