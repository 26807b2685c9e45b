package outbound

import (
	"arxivshorts/internal/domain/entity"
	"context"
)

// SubmissionRepository persists bulk job submissions.
type SubmissionRepository interface {
	// Save inserts a new submission
	Save(ctx context.Context, submission *entity.JobSubmission) error

	// Update stores status, error and output key changes
	Update(ctx context.Context, submission *entity.JobSubmission) error

	// FindActive returns up to limit submissions that are submitted or running, oldest first
	FindActive(ctx context.Context, limit int) ([]*entity.JobSubmission, error)

	// FindByBatch returns every submission of a batch, oldest first
	FindByBatch(ctx context.Context, batchID string) ([]*entity.JobSubmission, error)
}
