package service

import (
	"arxivshorts/internal/application/common/logging"
	"arxivshorts/internal/application/common/retry"
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/messaging"
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/inbound"
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrNoUsableContent = errors.New("no usable content extracted")

// DefaultFetchTimeout bounds a single content fetch.
const DefaultFetchTimeout = 10 * time.Second

// BatchTrigger compiles and dispatches a batch that reached the threshold.
type BatchTrigger interface {
	Trigger(ctx context.Context, batchID string) error
}

// ItemProcessorConfig holds processor settings.
type ItemProcessorConfig struct {
	Threshold    int
	Concurrency  int
	FetchTimeout time.Duration
	CounterRetry *retry.RetryConfig
}

// ItemProcessorService implements inbound.ItemProcessor.
type ItemProcessorService struct {
	fetcher  outbound.ContentFetcher
	blobs    outbound.BlobStore
	counters outbound.CounterRepository
	prompts  *PromptBuilder
	trigger  BatchTrigger
	metrics  *PipelineMetrics
	config   ItemProcessorConfig
}

// NewItemProcessor creates the queue message processor.
func NewItemProcessor(
	fetcher outbound.ContentFetcher,
	blobs outbound.BlobStore,
	counters outbound.CounterRepository,
	prompts *PromptBuilder,
	trigger BatchTrigger,
	metrics *PipelineMetrics,
	config ItemProcessorConfig,
) *ItemProcessorService {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}
	if config.CounterRetry == nil {
		config.CounterRetry = retry.DefaultRetryConfig()
	}
	return &ItemProcessorService{
		fetcher:  fetcher,
		blobs:    blobs,
		counters: counters,
		prompts:  prompts,
		trigger:  trigger,
		metrics:  metrics,
		config:   config,
	}
}

// itemOutcome is the result of one delivery. accounted is false when the
// message carried no usable batch id, so no counter can receive it.
type itemOutcome struct {
	batchID     string
	itemID      string
	disposition valueobject.Disposition
	accounted   bool
	ackFailed   bool
}

// Process handles a set of deliveries. Items are processed concurrently, every
// delivery is acknowledged, then each batch present in the set receives one
// counter update.
func (p *ItemProcessorService) Process(ctx context.Context, deliveries []inbound.Delivery) inbound.ProcessSummary {
	summary := inbound.ProcessSummary{
		Received: len(deliveries),
		Counters: make(map[string]*entity.BatchCounter),
	}
	if len(deliveries) == 0 {
		return summary
	}

	outcomes := make([]itemOutcome, len(deliveries))
	var g errgroup.Group
	g.SetLimit(p.config.Concurrency)
	for i, delivery := range deliveries {
		g.Go(func() error {
			outcomes[i] = p.processDelivery(ctx, delivery)
			return nil
		})
	}
	_ = g.Wait()

	batchOrder := make([]string, 0, 1)
	byBatch := make(map[string][]entity.ItemDisposition)
	for _, outcome := range outcomes {
		if outcome.ackFailed {
			summary.AckFailures++
		}
		if !outcome.accounted {
			summary.Unaccounted++
			continue
		}
		if outcome.disposition.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		if _, ok := byBatch[outcome.batchID]; !ok {
			batchOrder = append(batchOrder, outcome.batchID)
		}
		byBatch[outcome.batchID] = append(byBatch[outcome.batchID], entity.ItemDisposition{
			ItemID:      outcome.itemID,
			Disposition: outcome.disposition,
		})
	}

	for _, batchID := range batchOrder {
		batchCtx := logging.WithBatchID(ctx, batchID)
		counter, err := p.updateCounter(batchCtx, batchID, byBatch[batchID])
		if err != nil {
			slogger.ErrorWithError(batchCtx, err, "Batch counter update failed after retries", slogger.Fields{
				"items": len(byBatch[batchID]),
			})
			continue
		}
		summary.Counters[batchID] = counter

		if !counter.Reached(p.config.Threshold) {
			continue
		}
		slogger.Info(batchCtx, "Batch reached threshold", slogger.Fields3(
			"success_count", counter.SuccessCount(),
			"failure_count", counter.FailureCount(),
			"threshold", p.config.Threshold,
		))
		if p.trigger == nil {
			continue
		}
		if err := p.trigger.Trigger(batchCtx, batchID); err != nil {
			slogger.ErrorWithError(batchCtx, err, "Batch trigger failed", nil)
			continue
		}
		summary.Triggered = append(summary.Triggered, batchID)
	}

	slogger.Info(ctx, "Processed delivery set", slogger.Fields{
		"received":     summary.Received,
		"succeeded":    summary.Succeeded,
		"failed":       summary.Failed,
		"unaccounted":  summary.Unaccounted,
		"ack_failures": summary.AckFailures,
		"batches":      len(batchOrder),
	})
	return summary
}

func (p *ItemProcessorService) updateCounter(
	ctx context.Context,
	batchID string,
	dispositions []entity.ItemDisposition,
) (*entity.BatchCounter, error) {
	var counter *entity.BatchCounter
	err := retry.WithRetryAndChecker(ctx, p.config.CounterRetry, retry.RetryAllChecker{}, func(ctx context.Context) error {
		updated, err := p.counters.RecordDispositions(ctx, batchID, dispositions)
		if err != nil {
			p.metrics.RecordCounterFailure(ctx)
			return err
		}
		counter = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counter, nil
}

// processDelivery never returns an error: every failure becomes a failure
// disposition and the delivery is acknowledged regardless.
func (p *ItemProcessorService) processDelivery(ctx context.Context, delivery inbound.Delivery) itemOutcome {
	outcome := p.handleMessage(ctx, delivery)

	logCtx := ctx
	if outcome.batchID != "" {
		logCtx = logging.WithItemID(logging.WithBatchID(ctx, outcome.batchID), outcome.itemID)
	}
	if err := delivery.Ack(ctx); err != nil {
		outcome.ackFailed = true
		slogger.Warn(logCtx, "Failed to acknowledge message", slogger.Fields2(
			"message_id", delivery.ID(),
			"error", err.Error(),
		))
	}
	if outcome.accounted {
		p.metrics.RecordItem(ctx, outcome.disposition)
	}
	return outcome
}

func (p *ItemProcessorService) handleMessage(ctx context.Context, delivery inbound.Delivery) itemOutcome {
	msg, err := messaging.DecodeWorkItemMessage(delivery.Data())
	if err != nil {
		slogger.Warn(ctx, "Skipping malformed message", slogger.Fields2(
			"message_id", delivery.ID(),
			"error", err.Error(),
		))
		return itemOutcome{}
	}
	if msg.BatchID == "" {
		slogger.Warn(ctx, "Skipping message without batch id", slogger.Field("message_id", delivery.ID()))
		return itemOutcome{}
	}
	if msg.ResolvedItemID() == "" {
		msg.ItemID = delivery.ID()
	}

	outcome := itemOutcome{
		batchID:     msg.BatchID,
		itemID:      msg.ResolvedItemID(),
		disposition: valueobject.DispositionFailure,
		accounted:   true,
	}
	itemCtx := logging.WithItemID(logging.WithBatchID(ctx, outcome.batchID), outcome.itemID)

	if err := p.buildArtifact(itemCtx, msg); err != nil {
		slogger.Warn(itemCtx, "Item failed", slogger.Field("error", err.Error()))
		return outcome
	}
	outcome.disposition = valueobject.DispositionSuccess
	return outcome
}

func (p *ItemProcessorService) buildArtifact(ctx context.Context, msg *messaging.WorkItemMessage) error {
	item, err := msg.ToWorkItem()
	if err != nil {
		return fmt.Errorf("invalid work item: %w", err)
	}

	sections, err := p.fetch(ctx, item.SourceLocator())
	if err != nil {
		return err
	}

	artifact := entity.NewItemArtifact(item, p.prompts.Build(item, *sections))
	data, err := artifact.Encode()
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := p.blobs.Put(ctx, artifact.Key(), data); err != nil {
		return fmt.Errorf("persist artifact %s: %w", artifact.Key(), err)
	}

	slogger.Debug(ctx, "Item artifact persisted", slogger.Field("key", artifact.Key()))
	return nil
}

func (p *ItemProcessorService) fetch(ctx context.Context, locator string) (*outbound.Sections, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout)
	defer cancel()

	start := time.Now()
	sections, err := p.fetcher.Fetch(fetchCtx, locator)
	p.metrics.RecordFetch(ctx, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	if sections == nil || sections.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrNoUsableContent, locator)
	}
	return sections, nil
}
