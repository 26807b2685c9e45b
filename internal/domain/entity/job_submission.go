package entity

import (
	"arxivshorts/internal/domain/valueobject"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobNamePrefix starts every bulk job name.
const JobNamePrefix = "batch-inference-"

var (
	ErrInvalidJobID            = errors.New("invalid job id")
	ErrInvalidJobName          = errors.New("invalid job name")
	ErrInvalidStatusTransition = errors.New("invalid job status transition")
)

// NewJobName returns a unique job name that embeds the batch id.
func NewJobName(batchID string) string {
	return JobNamePrefix + batchID + "-" + uuid.NewString()
}

// JobSubmission records one bulk job submitted for a batch. A batch may have
// several submissions when the threshold is observed by more than one worker.
type JobSubmission struct {
	id           uuid.UUID
	batchID      string
	jobID        string
	jobName      string
	inputKey     string
	outputPrefix string
	status       valueobject.JobStatus
	errorMessage *string
	outputKey    *string
	submittedAt  time.Time
	updatedAt    time.Time
}

// NewJobSubmission creates a submission in the submitted state.
func NewJobSubmission(batchID, jobID, jobName, inputKey, outputPrefix string) (*JobSubmission, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, valueobject.ErrEmptyBatchID
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrInvalidJobID
	}
	if !strings.HasPrefix(jobName, JobNamePrefix+batchID) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJobName, jobName)
	}

	now := time.Now()
	return &JobSubmission{
		id:           uuid.New(),
		batchID:      batchID,
		jobID:        jobID,
		jobName:      jobName,
		inputKey:     inputKey,
		outputPrefix: outputPrefix,
		status:       valueobject.JobStatusSubmitted,
		submittedAt:  now,
		updatedAt:    now,
	}, nil
}

// RestoreJobSubmission creates a JobSubmission from stored data.
func RestoreJobSubmission(
	id uuid.UUID,
	batchID, jobID, jobName, inputKey, outputPrefix string,
	status valueobject.JobStatus,
	errorMessage, outputKey *string,
	submittedAt, updatedAt time.Time,
) *JobSubmission {
	return &JobSubmission{
		id:           id,
		batchID:      batchID,
		jobID:        jobID,
		jobName:      jobName,
		inputKey:     inputKey,
		outputPrefix: outputPrefix,
		status:       status,
		errorMessage: errorMessage,
		outputKey:    outputKey,
		submittedAt:  submittedAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the submission id.
func (s *JobSubmission) ID() uuid.UUID { return s.id }

// BatchID returns the batch id.
func (s *JobSubmission) BatchID() string { return s.batchID }

// JobID returns the executor-assigned job id.
func (s *JobSubmission) JobID() string { return s.jobID }

// JobName returns the unique job name.
func (s *JobSubmission) JobName() string { return s.jobName }

// InputKey returns the blob key of the compiled batch input.
func (s *JobSubmission) InputKey() string { return s.inputKey }

// OutputPrefix returns the batch-scoped output prefix.
func (s *JobSubmission) OutputPrefix() string { return s.outputPrefix }

// Status returns the job status.
func (s *JobSubmission) Status() valueobject.JobStatus { return s.status }

// ErrorMessage returns the failure reason, if any.
func (s *JobSubmission) ErrorMessage() *string { return s.errorMessage }

// OutputKey returns the key of the materialized output artifact, if any.
func (s *JobSubmission) OutputKey() *string { return s.outputKey }

// SubmittedAt returns the submission time.
func (s *JobSubmission) SubmittedAt() time.Time { return s.submittedAt }

// UpdatedAt returns the last status change time.
func (s *JobSubmission) UpdatedAt() time.Time { return s.updatedAt }

// ExpectedOutputKey returns where this job's output artifact is written.
func (s *JobSubmission) ExpectedOutputKey() string {
	return OutputArtifactKey(s.outputPrefix, s.jobName)
}

// MarkRunning moves the submission to running.
func (s *JobSubmission) MarkRunning() error {
	if s.status == valueobject.JobStatusRunning {
		return nil
	}
	return s.transition(valueobject.JobStatusRunning)
}

// MarkSucceeded records the output artifact key and completes the submission.
func (s *JobSubmission) MarkSucceeded(outputKey string) error {
	if err := s.transition(valueobject.JobStatusSucceeded); err != nil {
		return err
	}
	s.outputKey = &outputKey
	return nil
}

// MarkFailed records the failure reason.
func (s *JobSubmission) MarkFailed(reason string) error {
	if err := s.transition(valueobject.JobStatusFailed); err != nil {
		return err
	}
	s.errorMessage = &reason
	return nil
}

// MarkCancelled marks the job as cancelled by the executor.
func (s *JobSubmission) MarkCancelled() error {
	return s.transition(valueobject.JobStatusCancelled)
}

func (s *JobSubmission) transition(target valueobject.JobStatus) error {
	if !s.status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, s.status, target)
	}
	s.status = target
	s.updatedAt = time.Now()
	return nil
}
