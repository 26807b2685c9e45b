package firestore

import (
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	fs "cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type resultDoc struct {
	BatchID    string    `firestore:"batch_id"`
	ItemID     string    `firestore:"item_id"`
	Headline   string    `firestore:"headline"`
	Summary    string    `firestore:"summary"`
	Byline     string    `firestore:"byline"`
	ArticleURL string    `firestore:"article_url"`
	Authors    []string  `firestore:"authors"`
	ArticleID  string    `firestore:"article_id"`
	LoadedAt   time.Time `firestore:"loaded_at"`
}

func resultDocOf(record *entity.ResultRecord) resultDoc {
	return resultDoc{
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
}

func (d resultDoc) toEntity() *entity.ResultRecord {
	authors := d.Authors
	if authors == nil {
		authors = []string{}
	}
	return entity.RestoreResultRecord(
		d.BatchID, d.ItemID, d.Headline, d.Summary, d.Byline, d.ArticleURL, authors, d.ArticleID, d.LoadedAt,
	)
}

func resultDocID(batchID, itemID string) string {
	return docID(batchID + valueobject.RecordIDSeparator + itemID)
}

// ResultStore implements outbound.ResultRepository on Firestore.
type ResultStore struct {
	client     *fs.Client
	collection string
}

var _ outbound.ResultRepository = (*ResultStore)(nil)

// NewResultStore creates a result store.
func NewResultStore(client *fs.Client, collections Collections) *ResultStore {
	return &ResultStore{client: client, collection: collections.Results}
}

// Upsert overwrites the document keyed by (batch id, item id).
func (s *ResultStore) Upsert(ctx context.Context, record *entity.ResultRecord) error {
	if record == nil {
		return errors.New("result record cannot be nil")
	}
	ref := s.client.Collection(s.collection).Doc(resultDocID(record.BatchID(), record.ItemID()))
	if _, err := ref.Set(ctx, resultDocOf(record)); err != nil {
		return fmt.Errorf("upsert result %s#%s: %w", record.BatchID(), record.ItemID(), err)
	}
	return nil
}

// ListByBatch returns the records of a batch ordered by item id.
func (s *ResultStore) ListByBatch(ctx context.Context, batchID string) ([]*entity.ResultRecord, error) {
	snaps, err := s.client.Collection(s.collection).Where("batch_id", "==", batchID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list results of %s: %w", batchID, err)
	}
	records := make([]*entity.ResultRecord, 0, len(snaps))
	for _, snap := range snaps {
		var doc resultDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode result %s: %w", snap.Ref.ID, err)
		}
		records = append(records, doc.toEntity())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ItemID() < records[j].ItemID() })
	return records, nil
}

type submissionDoc struct {
	ID           string    `firestore:"id"`
	BatchID      string    `firestore:"batch_id"`
	JobID        string    `firestore:"job_id"`
	JobName      string    `firestore:"job_name"`
	InputKey     string    `firestore:"input_key"`
	OutputPrefix string    `firestore:"output_prefix"`
	Status       string    `firestore:"status"`
	ErrorMessage *string   `firestore:"error_message"`
	OutputKey    *string   `firestore:"output_key"`
	SubmittedAt  time.Time `firestore:"submitted_at"`
	UpdatedAt    time.Time `firestore:"updated_at"`
}

func submissionDocOf(s *entity.JobSubmission) submissionDoc {
	return submissionDoc{
		ID:           s.ID().String(),
		BatchID:      s.BatchID(),
		JobID:        s.JobID(),
		JobName:      s.JobName(),
		InputKey:     s.InputKey(),
		OutputPrefix: s.OutputPrefix(),
		Status:       s.Status().String(),
		ErrorMessage: s.ErrorMessage(),
		OutputKey:    s.OutputKey(),
		SubmittedAt:  s.SubmittedAt(),
		UpdatedAt:    s.UpdatedAt(),
	}
}

func (d submissionDoc) toEntity() (*entity.JobSubmission, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("submission %s: %w", d.ID, err)
	}
	jobStatus, err := valueobject.NewJobStatus(d.Status)
	if err != nil {
		return nil, err
	}
	return entity.RestoreJobSubmission(
		id, d.BatchID, d.JobID, d.JobName, d.InputKey, d.OutputPrefix,
		jobStatus, d.ErrorMessage, d.OutputKey, d.SubmittedAt, d.UpdatedAt,
	), nil
}

// SubmissionStore implements outbound.SubmissionRepository on Firestore.
type SubmissionStore struct {
	client     *fs.Client
	collection string
}

var _ outbound.SubmissionRepository = (*SubmissionStore)(nil)

// NewSubmissionStore creates a submission store.
func NewSubmissionStore(client *fs.Client, collections Collections) *SubmissionStore {
	return &SubmissionStore{client: client, collection: collections.Submissions}
}

// Save creates the submission document. Saving the same submission twice fails.
func (s *SubmissionStore) Save(ctx context.Context, submission *entity.JobSubmission) error {
	if submission == nil {
		return errors.New("submission cannot be nil")
	}
	ref := s.client.Collection(s.collection).Doc(submission.ID().String())
	if _, err := ref.Create(ctx, submissionDocOf(submission)); err != nil {
		if isAlreadyExists(err) {
			return fmt.Errorf("save submission %s: already exists: %w", submission.ID(), err)
		}
		return fmt.Errorf("save submission %s: %w", submission.ID(), err)
	}
	return nil
}

// Update stores status, error and output key changes.
func (s *SubmissionStore) Update(ctx context.Context, submission *entity.JobSubmission) error {
	if submission == nil {
		return errors.New("submission cannot be nil")
	}
	ref := s.client.Collection(s.collection).Doc(submission.ID().String())
	_, err := ref.Update(ctx, []fs.Update{
		{Path: "status", Value: submission.Status().String()},
		{Path: "error_message", Value: submission.ErrorMessage()},
		{Path: "output_key", Value: submission.OutputKey()},
		{Path: "updated_at", Value: submission.UpdatedAt()},
	})
	if isNotFound(err) {
		return fmt.Errorf("update submission %s: %w", submission.ID(), ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update submission %s: %w", submission.ID(), err)
	}
	return nil
}

// FindActive returns up to limit submitted or running jobs, oldest first.
func (s *SubmissionStore) FindActive(ctx context.Context, limit int) ([]*entity.JobSubmission, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	active := valueobject.ActiveJobStatuses()
	statuses := make([]string, len(active))
	for i, st := range active {
		statuses[i] = st.String()
	}

	snaps, err := s.client.Collection(s.collection).Where("status", "in", statuses).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("find active submissions: %w", err)
	}
	submissions, err := decodeSubmissions(snaps)
	if err != nil {
		return nil, err
	}
	if len(submissions) > limit {
		submissions = submissions[:limit]
	}
	return submissions, nil
}

// FindByBatch returns every submission of a batch, oldest first.
func (s *SubmissionStore) FindByBatch(ctx context.Context, batchID string) ([]*entity.JobSubmission, error) {
	snaps, err := s.client.Collection(s.collection).Where("batch_id", "==", batchID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("find submissions of %s: %w", batchID, err)
	}
	return decodeSubmissions(snaps)
}

func decodeSubmissions(snaps []*fs.DocumentSnapshot) ([]*entity.JobSubmission, error) {
	docs := make([]submissionDoc, 0, len(snaps))
	for _, snap := range snaps {
		var doc submissionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode submission %s: %w", snap.Ref.ID, err)
		}
		docs = append(docs, doc)
	}
	return submissionsOldestFirst(docs)
}

// Sorting happens client side so the queries need no composite index.
func submissionsOldestFirst(docs []submissionDoc) ([]*entity.JobSubmission, error) {
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].SubmittedAt.Before(docs[j].SubmittedAt) })
	out := make([]*entity.JobSubmission, 0, len(docs))
	for _, doc := range docs {
		submission, err := doc.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, submission)
	}
	return out, nil
}
