package firestore

import (
	"arxivshorts/internal/config"
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	fs "cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCollectionsFrom(t *testing.T) {
	defaults := CollectionsFrom(config.FirestoreConfig{})
	assert.Equal(t, Collections{
		Counters:    "batch_counters",
		Results:     "result_records",
		Submissions: "job_submissions",
	}, defaults)

	custom := CollectionsFrom(config.FirestoreConfig{CountersCollection: "c", ResultsCollection: "r", SubmissionsCollection: "s"})
	assert.Equal(t, Collections{Counters: "c", Results: "r", Submissions: "s"}, custom)
}

func TestDocID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "2501.00001", want: "2501.00001"},
		{in: "2025-01-15#2501.00001", want: "2025-01-15%232501.00001"},
		{in: "math/0101001", want: "math%2F0101001"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, docID(tt.in))
		})
	}
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, isNotFound(status.Error(codes.NotFound, "missing")))
	assert.False(t, isNotFound(errors.New("boom")))
	assert.True(t, isAlreadyExists(status.Error(codes.AlreadyExists, "dup")))
	assert.False(t, isAlreadyExists(nil))
}

func TestCounterDoc_Add(t *testing.T) {
	now := time.Now()
	doc := counterDoc{BatchID: "B1", SuccessCount: 2, FailureCount: 1}.add(3, 4, now)

	counter := doc.toEntity()
	assert.Equal(t, "B1", counter.BatchID())
	assert.Equal(t, int64(5), counter.SuccessCount())
	assert.Equal(t, int64(5), counter.FailureCount())
	assert.Equal(t, now, counter.UpdatedAt())
}

func TestNewDispositionsAndCountFresh(t *testing.T) {
	dispositions := []entity.ItemDisposition{
		{ItemID: "a", Disposition: valueobject.DispositionSuccess},
		{ItemID: "b", Disposition: valueobject.DispositionFailure},
		{ItemID: "c", Disposition: valueobject.DispositionSuccess},
	}

	// a missing or never-written snapshot both count as new
	fresh := newDispositions(dispositions, []*fs.DocumentSnapshot{{}, nil})
	assert.Equal(t, []bool{true, true, true}, fresh)

	success, failure := countFresh(dispositions, []bool{true, false, true})
	assert.Equal(t, int64(2), success)
	assert.Equal(t, int64(0), failure)
}

func TestResultDoc_RoundTrip(t *testing.T) {
	id, err := valueobject.ParseRecordID("2025-01-15#2501.00001")
	require.NoError(t, err)
	record := entity.NewResultRecord(id, entity.ResultPayload{
		Headline: "H",
		Summary:  "S",
		Eyebrow:  "E",
		URL:      "https://arxiv.org/html/2501.00001",
		Authors:  entity.StringList{"Ada"},
	})

	restored := resultDocOf(record).toEntity()
	assert.Equal(t, record, restored)

	empty := resultDoc{BatchID: "B", ItemID: "i"}.toEntity()
	assert.Equal(t, []string{}, empty.Authors())
	assert.Equal(t, "2025-01-15%232501.00001", resultDocID("2025-01-15", "2501.00001"))
}

func TestSubmissionDoc_RoundTripAndOrdering(t *testing.T) {
	older, err := entity.NewJobSubmission("B1", "batches/1", entity.NewJobName("B1"), "in1", "out1")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	newer, err := entity.NewJobSubmission("B1", "batches/2", entity.NewJobName("B1"), "in2", "out2")
	require.NoError(t, err)
	require.NoError(t, newer.MarkFailed("quota"))

	submissions, err := submissionsOldestFirst([]submissionDoc{submissionDocOf(newer), submissionDocOf(older)})
	require.NoError(t, err)
	require.Len(t, submissions, 2)
	assert.Equal(t, older.ID(), submissions[0].ID())
	assert.Equal(t, newer.ID(), submissions[1].ID())
	assert.Equal(t, valueobject.JobStatusFailed, submissions[1].Status())
	require.NotNil(t, submissions[1].ErrorMessage())
	assert.Equal(t, "quota", *submissions[1].ErrorMessage())

	_, err = submissionsOldestFirst([]submissionDoc{{ID: "not-a-uuid", Status: "running"}})
	assert.Error(t, err)
	_, err = submissionsOldestFirst([]submissionDoc{{ID: uuid.NewString(), Status: "exploded"}})
	assert.Error(t, err)
}

// setupEmulator connects to the emulator named by FIRESTORE_EMULATOR_HOST.
func setupEmulator(t *testing.T) *fs.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := NewClient(context.Background(), config.FirestoreConfig{ProjectID: "arxivshorts-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCounterStore_Emulator(t *testing.T) {
	client := setupEmulator(t)
	store := NewCounterStore(client, CollectionsFrom(config.FirestoreConfig{}))
	ctx := context.Background()
	batchID := "test-" + uuid.NewString()

	_, err := store.Get(ctx, batchID)
	assert.ErrorIs(t, err, outbound.ErrCounterNotFound)

	dispositions := make([]entity.ItemDisposition, 0, 6)
	for i := 0; i < 6; i++ {
		d := valueobject.DispositionSuccess
		if i%3 == 0 {
			d = valueobject.DispositionFailure
		}
		dispositions = append(dispositions, entity.ItemDisposition{ItemID: fmt.Sprintf("item/%d", i), Disposition: d})
	}

	_, err = store.RecordDispositions(ctx, batchID, dispositions[:4])
	require.NoError(t, err)
	counter, err := store.RecordDispositions(ctx, batchID, dispositions[2:])
	require.NoError(t, err)
	assert.Equal(t, int64(4), counter.SuccessCount())
	assert.Equal(t, int64(2), counter.FailureCount())

	counter, err = store.Add(ctx, batchID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), counter.Total())
}

func TestSubmissionStore_Emulator(t *testing.T) {
	client := setupEmulator(t)
	store := NewSubmissionStore(client, CollectionsFrom(config.FirestoreConfig{}))
	ctx := context.Background()
	batchID := "test-" + uuid.NewString()

	submission, err := entity.NewJobSubmission(batchID, "batches/"+uuid.NewString(), entity.NewJobName(batchID), "in", "out")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, submission))
	assert.Error(t, store.Save(ctx, submission))

	require.NoError(t, submission.MarkSucceeded(submission.ExpectedOutputKey()))
	require.NoError(t, store.Update(ctx, submission))

	found, err := store.FindByBatch(ctx, batchID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, valueobject.JobStatusSucceeded, found[0].Status())

	missing, err := entity.NewJobSubmission(batchID, "batches/x", entity.NewJobName(batchID), "in", "out")
	require.NoError(t, err)
	assert.ErrorIs(t, store.Update(ctx, missing), ErrNotFound)
}
