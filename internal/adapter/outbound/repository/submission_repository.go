package repository

import (
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/outbound"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	jobSubmissionFields = `
		id, batch_id, job_id, job_name, input_key, output_prefix,
		status, error_message, output_key, submitted_at, updated_at`
	jobSubmissionTable = "job_submissions"
)

// PostgreSQLSubmissionRepository implements outbound.SubmissionRepository.
type PostgreSQLSubmissionRepository struct {
	pool *pgxpool.Pool
}

var _ outbound.SubmissionRepository = (*PostgreSQLSubmissionRepository)(nil)

// NewPostgreSQLSubmissionRepository creates a new PostgreSQL submission repository.
func NewPostgreSQLSubmissionRepository(pool *pgxpool.Pool) *PostgreSQLSubmissionRepository {
	return &PostgreSQLSubmissionRepository{pool: pool}
}

func (r *PostgreSQLSubmissionRepository) buildSelectQuery(whereClause, orderClause string) string {
	query := fmt.Sprintf("SELECT %s FROM %s", jobSubmissionFields, jobSubmissionTable)
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	if orderClause != "" {
		query += " ORDER BY " + orderClause
	}
	return query
}

// Save inserts a new submission.
func (r *PostgreSQLSubmissionRepository) Save(ctx context.Context, submission *entity.JobSubmission) error {
	if submission == nil {
		return ErrInvalidArgument
	}

	query := `
		INSERT INTO job_submissions (` + jobSubmissionFields + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	qi := querier(ctx, r.pool)
	_, err := qi.Exec(ctx, query,
		submission.ID(),
		submission.BatchID(),
		submission.JobID(),
		submission.JobName(),
		submission.InputKey(),
		submission.OutputPrefix(),
		submission.Status().String(),
		submission.ErrorMessage(),
		submission.OutputKey(),
		submission.SubmittedAt(),
		submission.UpdatedAt(),
	)
	if err != nil {
		return WrapError(err, "save job submission")
	}
	return nil
}

// Update stores the mutable fields of a submission.
func (r *PostgreSQLSubmissionRepository) Update(ctx context.Context, submission *entity.JobSubmission) error {
	if submission == nil {
		return ErrInvalidArgument
	}

	query := `
		UPDATE job_submissions
		SET status = $2, error_message = $3, output_key = $4, updated_at = $5
		WHERE id = $1`

	qi := querier(ctx, r.pool)
	tag, err := qi.Exec(ctx, query,
		submission.ID(),
		submission.Status().String(),
		submission.ErrorMessage(),
		submission.OutputKey(),
		submission.UpdatedAt(),
	)
	if err != nil {
		return WrapError(err, "update job submission")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job submission %s: %w", submission.ID(), ErrNotFound)
	}
	return nil
}

// FindActive returns submitted or running jobs, oldest first.
func (r *PostgreSQLSubmissionRepository) FindActive(ctx context.Context, limit int) ([]*entity.JobSubmission, error) {
	if limit <= 0 {
		return nil, ErrInvalidArgument
	}

	active := valueobject.ActiveJobStatuses()
	statuses := make([]string, len(active))
	for i, s := range active {
		statuses[i] = s.String()
	}

	query := r.buildSelectQuery("status = ANY($1)", "submitted_at ASC LIMIT $2")
	qi := querier(ctx, r.pool)
	rows, err := qi.Query(ctx, query, statuses, limit)
	if err != nil {
		return nil, WrapError(err, "find active job submissions")
	}
	return r.collect(rows)
}

// FindByBatch returns every submission of a batch, oldest first.
func (r *PostgreSQLSubmissionRepository) FindByBatch(ctx context.Context, batchID string) ([]*entity.JobSubmission, error) {
	query := r.buildSelectQuery("batch_id = $1", "submitted_at ASC")
	qi := querier(ctx, r.pool)
	rows, err := qi.Query(ctx, query, batchID)
	if err != nil {
		return nil, WrapError(err, "find job submissions by batch")
	}
	return r.collect(rows)
}

func (r *PostgreSQLSubmissionRepository) collect(rows pgx.Rows) ([]*entity.JobSubmission, error) {
	submissions, err := pgx.CollectRows(rows, scanSubmission)
	if err != nil {
		return nil, WrapError(err, "scan job submissions")
	}
	return submissions, nil
}

func scanSubmission(row pgx.CollectableRow) (*entity.JobSubmission, error) {
	var (
		id                                              uuid.UUID
		batchID, jobID, jobName, inputKey, outputPrefix string
		status                                          string
		errorMessage, outputKey                         *string
		submittedAt, updatedAt                          time.Time
	)
	if err := row.Scan(
		&id, &batchID, &jobID, &jobName, &inputKey, &outputPrefix,
		&status, &errorMessage, &outputKey, &submittedAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	jobStatus, err := valueobject.NewJobStatus(status)
	if err != nil {
		return nil, err
	}
	return entity.RestoreJobSubmission(
		id, batchID, jobID, jobName, inputKey, outputPrefix,
		jobStatus, errorMessage, outputKey, submittedAt, updatedAt,
	), nil
}
