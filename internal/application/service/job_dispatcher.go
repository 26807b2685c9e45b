package service

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/port/outbound"
	"context"
	"fmt"
)

// JobDispatcher submits compiled batches to the bulk job executor. It records
// the submission and returns without waiting for the job.
type JobDispatcher struct {
	executor    outbound.BatchJobExecutor
	submissions outbound.SubmissionRepository
	metrics     *PipelineMetrics
}

// NewJobDispatcher creates a job dispatcher.
func NewJobDispatcher(
	executor outbound.BatchJobExecutor,
	submissions outbound.SubmissionRepository,
	metrics *PipelineMetrics,
) *JobDispatcher {
	return &JobDispatcher{executor: executor, submissions: submissions, metrics: metrics}
}

// Submit starts a job over inputKey. Every call creates a new uniquely named
// job; duplicates for the same batch write distinct output artifacts.
func (d *JobDispatcher) Submit(ctx context.Context, inputKey, batchID string) (*entity.JobSubmission, error) {
	req := outbound.BatchJobRequest{
		JobName:      entity.NewJobName(batchID),
		BatchID:      batchID,
		InputKey:     inputKey,
		OutputPrefix: entity.OutputPrefix(batchID),
	}

	jobID, err := d.executor.Submit(ctx, req)
	d.metrics.RecordJobSubmitted(ctx, err == nil)
	if err != nil {
		return nil, fmt.Errorf("submit job %s: %w", req.JobName, err)
	}

	submission, err := entity.NewJobSubmission(batchID, jobID, req.JobName, inputKey, req.OutputPrefix)
	if err != nil {
		return nil, fmt.Errorf("build submission for job %s: %w", jobID, err)
	}
	if err := d.submissions.Save(ctx, submission); err != nil {
		return submission, fmt.Errorf("record submission for job %s: %w", jobID, err)
	}

	slogger.Info(ctx, "Bulk inference job submitted", slogger.Fields3(
		"job_id", jobID,
		"job_name", req.JobName,
		"output_prefix", req.OutputPrefix,
	))
	return submission, nil
}
