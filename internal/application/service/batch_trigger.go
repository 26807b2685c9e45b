package service

import (
	"arxivshorts/internal/application/common/slogger"
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BatchTriggerService compiles a batch and dispatches the resulting job.
// It may run more than once for the same batch.
type BatchTriggerService struct {
	compiler   *BatchCompiler
	dispatcher *JobDispatcher
	metrics    *PipelineMetrics
	tracer     trace.Tracer
}

// NewBatchTrigger creates the compile and dispatch step.
func NewBatchTrigger(compiler *BatchCompiler, dispatcher *JobDispatcher, metrics *PipelineMetrics) *BatchTriggerService {
	return &BatchTriggerService{
		compiler:   compiler,
		dispatcher: dispatcher,
		metrics:    metrics,
		tracer:     otel.Tracer("arxivshorts/batch-trigger"),
	}
}

// Trigger implements BatchTrigger.
func (t *BatchTriggerService) Trigger(ctx context.Context, batchID string) (err error) {
	ctx, span := t.tracer.Start(ctx, "BatchTrigger.Trigger", trace.WithAttributes(attribute.String("batch_id", batchID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		t.metrics.RecordBatchTriggered(ctx, err == nil)
	}()

	compiled, err := t.compiler.Compile(ctx, batchID)
	if err != nil {
		return fmt.Errorf("compile batch %s: %w", batchID, err)
	}

	submission, err := t.dispatcher.Submit(ctx, compiled.InputKey, batchID)
	if err != nil {
		return fmt.Errorf("dispatch batch %s: %w", batchID, err)
	}

	span.SetAttributes(attribute.String("job_id", submission.JobID()))
	slogger.Info(ctx, "Batch dispatched", slogger.Fields3(
		"input_key", compiled.InputKey,
		"job_id", submission.JobID(),
		"placeholders", compiled.Placeholders,
	))
	return nil
}
