package localstore

import (
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResultStore implements outbound.ResultRepository on SQLite.
type ResultStore struct {
	db *gorm.DB
}

var _ outbound.ResultRepository = (*ResultStore)(nil)

// NewResultStore creates a result store.
func NewResultStore(db *gorm.DB) *ResultStore {
	return &ResultStore{db: db}
}

// Upsert writes the record keyed by (batch id, item id).
func (s *ResultStore) Upsert(ctx context.Context, record *entity.ResultRecord) error {
	if record == nil {
		return errors.New("result record cannot be nil")
	}
	row := resultRecordRow{
		BatchID:    record.BatchID(),
		ItemID:     record.ItemID(),
		Headline:   record.Headline(),
		Summary:    record.Summary(),
		Byline:     record.Byline(),
		ArticleURL: record.ArticleURL(),
		Authors:    record.Authors(),
		ArticleID:  record.ArticleID(),
		LoadedAt:   record.LoadedAt(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_id"}, {Name: "item_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// ListByBatch returns the records of a batch ordered by item id.
func (s *ResultStore) ListByBatch(ctx context.Context, batchID string) ([]*entity.ResultRecord, error) {
	var rows []resultRecordRow
	if err := s.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("item_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]*entity.ResultRecord, len(rows))
	for i, r := range rows {
		authors := r.Authors
		if authors == nil {
			authors = []string{}
		}
		records[i] = entity.RestoreResultRecord(
			r.BatchID, r.ItemID, r.Headline, r.Summary, r.Byline, r.ArticleURL, authors, r.ArticleID, r.LoadedAt,
		)
	}
	return records, nil
}

// SubmissionStore implements outbound.SubmissionRepository on SQLite.
type SubmissionStore struct {
	db *gorm.DB
}

var _ outbound.SubmissionRepository = (*SubmissionStore)(nil)

// NewSubmissionStore creates a submission store.
func NewSubmissionStore(db *gorm.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

// Save inserts a new submission.
func (s *SubmissionStore) Save(ctx context.Context, submission *entity.JobSubmission) error {
	if submission == nil {
		return errors.New("submission cannot be nil")
	}
	row := jobSubmissionRow{
		ID:           submission.ID().String(),
		BatchID:      submission.BatchID(),
		JobID:        submission.JobID(),
		JobName:      submission.JobName(),
		InputKey:     submission.InputKey(),
		OutputPrefix: submission.OutputPrefix(),
		Status:       submission.Status().String(),
		ErrorMessage: submission.ErrorMessage(),
		OutputKey:    submission.OutputKey(),
		SubmittedAt:  submission.SubmittedAt(),
		UpdatedAt:    submission.UpdatedAt(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// Update stores status, error and output key changes.
func (s *SubmissionStore) Update(ctx context.Context, submission *entity.JobSubmission) error {
	if submission == nil {
		return errors.New("submission cannot be nil")
	}
	result := s.db.WithContext(ctx).
		Model(&jobSubmissionRow{}).
		Where("id = ?", submission.ID().String()).
		Updates(map[string]any{
			"status":        submission.Status().String(),
			"error_message": submission.ErrorMessage(),
			"output_key":    submission.OutputKey(),
			"updated_at":    submission.UpdatedAt(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update submission %s: %w", submission.ID(), ErrNotFound)
	}
	return nil
}

// FindActive returns submitted or running jobs, oldest first.
func (s *SubmissionStore) FindActive(ctx context.Context, limit int) ([]*entity.JobSubmission, error) {
	active := valueobject.ActiveJobStatuses()
	statuses := make([]string, len(active))
	for i, st := range active {
		statuses[i] = st.String()
	}

	var rows []jobSubmissionRow
	err := s.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("submitted_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSubmissions(rows)
}

// FindByBatch returns every submission of a batch, oldest first.
func (s *SubmissionStore) FindByBatch(ctx context.Context, batchID string) ([]*entity.JobSubmission, error) {
	var rows []jobSubmissionRow
	if err := s.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("submitted_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSubmissions(rows)
}

func toSubmissions(rows []jobSubmissionRow) ([]*entity.JobSubmission, error) {
	out := make([]*entity.JobSubmission, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("submission %s: %w", r.ID, err)
		}
		status, err := valueobject.NewJobStatus(r.Status)
		if err != nil {
			return nil, err
		}
		out = append(out, entity.RestoreJobSubmission(
			id, r.BatchID, r.JobID, r.JobName, r.InputKey, r.OutputPrefix,
			status, r.ErrorMessage, r.OutputKey, r.SubmittedAt, r.UpdatedAt,
		))
	}
	return out, nil
}

// BlobStore implements outbound.BlobStore on SQLite.
type BlobStore struct {
	db *gorm.DB
}

var _ outbound.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a blob store.
func NewBlobStore(db *gorm.DB) *BlobStore {
	return &BlobStore{db: db}
}

// Put writes data under key, replacing any previous object.
func (s *BlobStore) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return errors.New("blob key cannot be empty")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "object_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&blobRow{ObjectKey: key, Data: data, UpdatedAt: time.Now()}).Error
}

// Get reads the object stored under key.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var row blobRow
	err := s.db.WithContext(ctx).First(&row, "object_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", outbound.ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

// List returns the keys starting with prefix in lexical order.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&blobRow{}).
		Where(`object_key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Order("object_key ASC").
		Pluck("object_key", &keys).Error
	if err != nil {
		return nil, err
	}
	// LIKE ignores ASCII case in SQLite.
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
