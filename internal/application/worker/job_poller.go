package worker

import (
	"arxivshorts/internal/application/common/logging"
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/application/service"
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/inbound"
	"arxivshorts/internal/port/outbound"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var ErrResultCountMismatch = errors.New("job returned a different number of results than inputs")

// JobPoller polls submitted bulk jobs and materializes the output artifact of
// each job that succeeds. Workers never wait on job completion themselves.
type JobPoller struct {
	submissions   outbound.SubmissionRepository
	executor      outbound.BatchJobExecutor
	blobs         outbound.BlobStore
	loader        inbound.OutputLoader
	metrics       *service.PipelineMetrics
	pollInterval  time.Duration
	maxConcurrent int
	batchSize     int
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

// JobPollerConfig holds configuration for the job poller.
type JobPollerConfig struct {
	PollInterval  time.Duration
	MaxConcurrent int
	BatchSize     int
}

// NewJobPoller creates a job poller. loader may be nil; when set, output
// artifacts are loaded right after they are written instead of waiting for a
// store notification.
func NewJobPoller(
	submissions outbound.SubmissionRepository,
	executor outbound.BatchJobExecutor,
	blobs outbound.BlobStore,
	loader inbound.OutputLoader,
	metrics *service.PipelineMetrics,
	config JobPollerConfig,
) *JobPoller {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Minute
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}

	return &JobPoller{
		submissions:   submissions,
		executor:      executor,
		blobs:         blobs,
		loader:        loader,
		metrics:       metrics,
		pollInterval:  config.PollInterval,
		maxConcurrent: config.MaxConcurrent,
		batchSize:     config.BatchSize,
	}
}

// Start begins the polling loop in a goroutine.
func (p *JobPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("job poller already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	slogger.Info(ctx, "Starting job poller", slogger.Fields3(
		"poll_interval", p.pollInterval.String(),
		"max_concurrent", p.maxConcurrent,
		"batch_size", p.batchSize,
	))

	p.wg.Add(1)
	go p.pollLoop(ctx, stopCh)
	return nil
}

// Stop stops the polling loop and waits for in-flight polls.
func (p *JobPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh := p.stopCh
	p.mu.Unlock()

	close(stopCh)
	p.wg.Wait()

	slogger.InfoNoCtx("Job poller stopped", nil)
}

func (p *JobPoller) pollLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	if err := p.PollOnce(ctx); err != nil {
		slogger.Error(ctx, "Initial poll failed", slogger.Field("error", err.Error()))
	}

	for {
		select {
		case <-ticker.C:
			if err := p.PollOnce(ctx); err != nil {
				slogger.Error(ctx, "Poll cycle failed", slogger.Field("error", err.Error()))
			}
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// PollOnce checks every active submission once. Per-job errors are logged and
// retried on the next cycle.
func (p *JobPoller) PollOnce(ctx context.Context) error {
	p.mu.Lock()
	stopCh := p.stopCh
	p.mu.Unlock()

	active, err := p.submissions.FindActive(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list active submissions: %w", err)
	}
	if len(active) == 0 {
		slogger.Debug(ctx, "No active jobs to poll", nil)
		return nil
	}

	sem := make(chan struct{}, p.maxConcurrent)
	var wg sync.WaitGroup
	var failed int
	var failedMu sync.Mutex

	for _, submission := range active {
		select {
		case <-stopCh:
			return errors.New("poller stopped")
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(s *entity.JobSubmission) {
			defer wg.Done()
			defer func() { <-sem }()

			jobCtx := logging.WithBatchID(ctx, s.BatchID())
			if err := p.pollSubmission(jobCtx, s); err != nil {
				slogger.Warn(jobCtx, "Job poll failed", slogger.Fields2("job_id", s.JobID(), "error", err.Error()))
				failedMu.Lock()
				failed++
				failedMu.Unlock()
			}
		}(submission)
	}
	wg.Wait()

	if failed > 0 {
		slogger.Warn(ctx, "Some job polls failed", slogger.Fields2("failed", failed, "total", len(active)))
	}
	return nil
}

func (p *JobPoller) pollSubmission(ctx context.Context, submission *entity.JobSubmission) error {
	status, err := p.executor.Status(ctx, submission.JobID())
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	switch status.State {
	case valueobject.JobStatusSubmitted:
		return nil
	case valueobject.JobStatusRunning:
		if submission.Status() == valueobject.JobStatusRunning {
			return nil
		}
		if err := submission.MarkRunning(); err != nil {
			return err
		}
		return p.submissions.Update(ctx, submission)
	case valueobject.JobStatusSucceeded:
		return p.handleSucceeded(ctx, submission)
	case valueobject.JobStatusFailed:
		reason := status.ErrorMessage
		if reason == "" {
			reason = "job failed"
		}
		return p.finish(ctx, submission, submission.MarkFailed(reason), valueobject.JobStatusFailed)
	case valueobject.JobStatusCancelled:
		return p.finish(ctx, submission, submission.MarkCancelled(), valueobject.JobStatusCancelled)
	default:
		slogger.Warn(ctx, "Unknown job state", slogger.Fields2("job_id", submission.JobID(), "state", status.State.String()))
		return nil
	}
}

func (p *JobPoller) finish(
	ctx context.Context,
	submission *entity.JobSubmission,
	transitionErr error,
	status valueobject.JobStatus,
) error {
	if transitionErr != nil {
		return transitionErr
	}
	if err := p.submissions.Update(ctx, submission); err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	p.metrics.RecordJobFinished(ctx, status)
	slogger.Info(ctx, "Job finished", slogger.Fields2("job_id", submission.JobID(), "status", status.String()))
	return nil
}

func (p *JobPoller) handleSucceeded(ctx context.Context, submission *entity.JobSubmission) error {
	outputKey := submission.ExpectedOutputKey()
	if err := p.writeOutput(ctx, submission, outputKey); err != nil {
		// The artifact can be rebuilt on the next poll, the job stays active.
		return err
	}
	if err := p.finish(ctx, submission, submission.MarkSucceeded(outputKey), valueobject.JobStatusSucceeded); err != nil {
		return err
	}

	if p.loader != nil {
		if _, err := p.loader.Load(ctx, outputKey); err != nil {
			slogger.ErrorWithError(ctx, err, "Inline output load failed", slogger.Field("key", outputKey))
		}
	}
	return nil
}

// writeOutput zips the compiled input records with the job results, in order,
// into the output artifact format.
func (p *JobPoller) writeOutput(ctx context.Context, submission *entity.JobSubmission, outputKey string) error {
	inputs, err := p.readInputs(ctx, submission.InputKey())
	if err != nil {
		return err
	}
	results, err := p.executor.Results(ctx, submission.JobID())
	if err != nil {
		return fmt.Errorf("get results: %w", err)
	}
	if len(results) != len(inputs) {
		return fmt.Errorf("%w: %d results for %d inputs", ErrResultCountMismatch, len(results), len(inputs))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, input := range inputs {
		modelInput := input.ModelInput
		out := entity.BatchOutputRecord{
			RecordID:   input.RecordID,
			ModelInput: &modelInput,
			ModelOutput: entity.ModelOutput{
				Content: []entity.ContentBlock{{Type: entity.ContentTypeText, Text: results[i].Text}},
			},
			Error: results[i].Error,
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode output %s: %w", input.RecordID, err)
		}
	}

	if err := p.blobs.Put(ctx, outputKey, buf.Bytes()); err != nil {
		return fmt.Errorf("write output artifact %s: %w", outputKey, err)
	}
	slogger.Info(ctx, "Output artifact written", slogger.Fields2("key", outputKey, "records", len(inputs)))
	return nil
}

func (p *JobPoller) readInputs(ctx context.Context, inputKey string) ([]entity.BatchRecord, error) {
	data, err := p.blobs.Get(ctx, inputKey)
	if err != nil {
		return nil, fmt.Errorf("read batch input %s: %w", inputKey, err)
	}

	var records []entity.BatchRecord
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		record, err := entity.DecodeBatchRecord([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("decode batch input %s: %w", inputKey, err)
		}
		records = append(records, record)
	}
	return records, nil
}
