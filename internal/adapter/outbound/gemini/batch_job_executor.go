package gemini

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/outbound"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/genai"
)

var (
	ErrEmptyInput      = errors.New("batch input has no records")
	ErrJobNotSucceeded = errors.New("batch job has not succeeded")
	ErrNoInlineOutput  = errors.New("batch job has no inlined responses")
)

// BatchesAPI is the subset of the GenAI Batches service the executor calls.
// *genai.Batches satisfies it.
type BatchesAPI interface {
	Create(ctx context.Context, model string, src *genai.BatchJobSource, config *genai.CreateBatchJobConfig) (*genai.BatchJob, error)
	Get(ctx context.Context, name string, config *genai.GetBatchJobConfig) (*genai.BatchJob, error)
}

// BatchJobExecutor implements outbound.BatchJobExecutor. Each compiled input
// record becomes one inlined generate request; responses come back in the
// same order.
type BatchJobExecutor struct {
	batches BatchesAPI
	blobs   outbound.BlobStore
	config  ClientConfig
}

var _ outbound.BatchJobExecutor = (*BatchJobExecutor)(nil)

// NewBatchJobExecutor creates an executor that reads compiled inputs from blobs.
func NewBatchJobExecutor(batches BatchesAPI, blobs outbound.BlobStore, cfg ClientConfig) (*BatchJobExecutor, error) {
	if batches == nil {
		return nil, errors.New("batches client cannot be nil")
	}
	if blobs == nil {
		return nil, errors.New("blob store cannot be nil")
	}
	return &BatchJobExecutor{batches: batches, blobs: blobs, config: cfg.withDefaults()}, nil
}

// Submit creates a batch job from the compiled input artifact. The job's
// display name is the request's unique job name.
func (e *BatchJobExecutor) Submit(ctx context.Context, req outbound.BatchJobRequest) (string, error) {
	data, err := e.blobs.Get(ctx, req.InputKey)
	if err != nil {
		return "", fmt.Errorf("read batch input %s: %w", req.InputKey, err)
	}
	records, err := decodeInput(data)
	if err != nil {
		return "", fmt.Errorf("decode batch input %s: %w", req.InputKey, err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyInput, req.InputKey)
	}

	source := &genai.BatchJobSource{InlinedRequests: inlinedRequests(records)}
	callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	job, err := e.batches.Create(callCtx, e.config.Model, source, &genai.CreateBatchJobConfig{
		DisplayName: req.JobName,
	})
	if err != nil {
		execErr := convertSDKError("create batch", err)
		slogger.ErrorWithError(ctx, execErr, "Failed to create batch job", slogger.Fields2(
			"job_name", req.JobName,
			"records", len(records),
		))
		return "", execErr
	}

	slogger.Info(ctx, "Batch job created", slogger.Fields{
		"job_id":   job.Name,
		"job_name": req.JobName,
		"model":    e.config.Model,
		"records":  len(records),
		"state":    string(job.State),
	})
	return job.Name, nil
}

// Status returns the job's state mapped onto the submission lifecycle.
func (e *BatchJobExecutor) Status(ctx context.Context, jobID string) (*outbound.BatchJobStatus, error) {
	job, err := e.get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	status := &outbound.BatchJobStatus{JobID: job.Name, State: convertJobState(job.State)}
	if job.Error != nil {
		status.ErrorMessage = job.Error.Message
	}
	return status, nil
}

// Results returns one result per input record, in input order.
func (e *BatchJobExecutor) Results(ctx context.Context, jobID string) ([]outbound.BatchJobResult, error) {
	job, err := e.get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if convertJobState(job.State) != valueobject.JobStatusSucceeded {
		return nil, fmt.Errorf("%w: %s is %s", ErrJobNotSucceeded, jobID, job.State)
	}
	if job.Dest == nil || len(job.Dest.InlinedResponses) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInlineOutput, jobID)
	}

	results := make([]outbound.BatchJobResult, len(job.Dest.InlinedResponses))
	for i, r := range job.Dest.InlinedResponses {
		results[i] = convertInlinedResponse(i, r)
	}
	slogger.Debug(ctx, "Batch job results retrieved", slogger.Fields2("job_id", jobID, "results", len(results)))
	return results, nil
}

func (e *BatchJobExecutor) get(ctx context.Context, jobID string) (*genai.BatchJob, error) {
	if jobID == "" {
		return nil, errors.New("job id cannot be empty")
	}
	callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	job, err := e.batches.Get(callCtx, jobID, nil)
	if err != nil {
		return nil, convertSDKError("get batch", err)
	}
	return job, nil
}

func decodeInput(data []byte) ([]entity.BatchRecord, error) {
	var records []entity.BatchRecord
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		record, err := entity.DecodeBatchRecord(line)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func inlinedRequests(records []entity.BatchRecord) []*genai.InlinedRequest {
	requests := make([]*genai.InlinedRequest, len(records))
	for i, record := range records {
		requests[i] = &genai.InlinedRequest{
			Contents: []*genai.Content{genai.NewContentFromText(record.ModelInput.PromptText(), genai.RoleUser)},
			Config: &genai.GenerateContentConfig{
				MaxOutputTokens: clampTokens(record.ModelInput.MaxTokens),
			},
		}
	}
	return requests
}

func clampTokens(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < 0 {
		return 0
	}
	return int32(n)
}

func convertInlinedResponse(index int, r *genai.InlinedResponse) outbound.BatchJobResult {
	result := outbound.BatchJobResult{Index: index}
	if r == nil {
		result.Error = "missing response"
		return result
	}
	if r.Error != nil {
		result.Error = r.Error.Message
	}
	if r.Response != nil {
		result.Text = r.Response.Text()
	}
	return result
}

func convertJobState(state genai.JobState) valueobject.JobStatus {
	switch state {
	case genai.JobStateRunning, genai.JobStateUpdating, genai.JobStatePaused:
		return valueobject.JobStatusRunning
	case genai.JobStateSucceeded, genai.JobStatePartiallySucceeded:
		return valueobject.JobStatusSucceeded
	case genai.JobStateFailed, genai.JobStateExpired:
		return valueobject.JobStatusFailed
	case genai.JobStateCancelled, genai.JobStateCancelling:
		return valueobject.JobStatusCancelled
	default:
		return valueobject.JobStatusSubmitted
	}
}
