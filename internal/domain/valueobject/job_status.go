package valueobject

import "fmt"

// JobStatus represents the lifecycle state of a submitted bulk inference job.
type JobStatus string

// Job status constants.
const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// validJobStatuses contains all valid job statuses.
var validJobStatuses = map[JobStatus]bool{
	JobStatusSubmitted: true,
	JobStatusRunning:   true,
	JobStatusSucceeded: true,
	JobStatusFailed:    true,
	JobStatusCancelled: true,
}

// NewJobStatus creates a new JobStatus with validation.
func NewJobStatus(status string) (JobStatus, error) {
	s := JobStatus(status)
	if !validJobStatuses[s] {
		return "", fmt.Errorf("invalid job status: %s", status)
	}
	return s, nil
}

// String returns the string representation of the status.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusSubmitted:
		return target == JobStatusRunning || target.IsTerminal()
	case JobStatusRunning:
		return target.IsTerminal()
	default:
		return false
	}
}

// ActiveJobStatuses returns the statuses the poller still has to watch.
func ActiveJobStatuses() []JobStatus {
	return []JobStatus{JobStatusSubmitted, JobStatusRunning}
}
