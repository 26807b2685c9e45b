package outbound

import (
	"arxivshorts/internal/domain/valueobject"
	"context"
)

// BatchJobRequest describes one bulk inference job.
type BatchJobRequest struct {
	JobName      string
	BatchID      string
	InputKey     string
	OutputPrefix string
}

// BatchJobStatus is the executor's view of a job.
type BatchJobStatus struct {
	JobID        string
	State        valueobject.JobStatus
	ErrorMessage string
}

// BatchJobResult is the output of one input record, in input order.
type BatchJobResult struct {
	Index int
	Text  string
	Error string
}

// BatchJobExecutor is the asynchronous bulk inference service.
type BatchJobExecutor interface {
	// Submit starts a job over the compiled input artifact and returns the job id.
	// It does not wait for completion.
	Submit(ctx context.Context, req BatchJobRequest) (string, error)

	// Status returns the current state of a job
	Status(ctx context.Context, jobID string) (*BatchJobStatus, error)

	// Results returns the per-record outputs of a finished job in input order
	Results(ctx context.Context, jobID string) ([]BatchJobResult, error)
}
