package service

import (
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/messaging"
	"arxivshorts/internal/port/outbound"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockContentFetcher is a mock implementation of outbound.ContentFetcher.
type MockContentFetcher struct {
	mock.Mock
}

func (m *MockContentFetcher) Fetch(ctx context.Context, locator string) (*outbound.Sections, error) {
	args := m.Called(ctx, locator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.Sections), args.Error(1)
}

// MockBlobStore is a mock implementation of outbound.BlobStore.
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

func (m *MockBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockCounterRepository is a mock implementation of outbound.CounterRepository.
type MockCounterRepository struct {
	mock.Mock
}

func (m *MockCounterRepository) Add(
	ctx context.Context,
	batchID string,
	successDelta, failureDelta int64,
) (*entity.BatchCounter, error) {
	args := m.Called(ctx, batchID, successDelta, failureDelta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.BatchCounter), args.Error(1)
}

func (m *MockCounterRepository) RecordDispositions(
	ctx context.Context,
	batchID string,
	dispositions []entity.ItemDisposition,
) (*entity.BatchCounter, error) {
	args := m.Called(ctx, batchID, dispositions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.BatchCounter), args.Error(1)
}

func (m *MockCounterRepository) Get(ctx context.Context, batchID string) (*entity.BatchCounter, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.BatchCounter), args.Error(1)
}

// MockResultRepository is a mock implementation of outbound.ResultRepository.
type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) Upsert(ctx context.Context, record *entity.ResultRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockResultRepository) ListByBatch(ctx context.Context, batchID string) ([]*entity.ResultRecord, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.ResultRecord), args.Error(1)
}

// MockSubmissionRepository is a mock implementation of outbound.SubmissionRepository.
type MockSubmissionRepository struct {
	mock.Mock
}

func (m *MockSubmissionRepository) Save(ctx context.Context, submission *entity.JobSubmission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

func (m *MockSubmissionRepository) Update(ctx context.Context, submission *entity.JobSubmission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

func (m *MockSubmissionRepository) FindActive(ctx context.Context, limit int) ([]*entity.JobSubmission, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.JobSubmission), args.Error(1)
}

func (m *MockSubmissionRepository) FindByBatch(ctx context.Context, batchID string) ([]*entity.JobSubmission, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.JobSubmission), args.Error(1)
}

// MockBatchJobExecutor is a mock implementation of outbound.BatchJobExecutor.
type MockBatchJobExecutor struct {
	mock.Mock
}

func (m *MockBatchJobExecutor) Submit(ctx context.Context, req outbound.BatchJobRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockBatchJobExecutor) Status(ctx context.Context, jobID string) (*outbound.BatchJobStatus, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.BatchJobStatus), args.Error(1)
}

func (m *MockBatchJobExecutor) Results(ctx context.Context, jobID string) ([]outbound.BatchJobResult, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]outbound.BatchJobResult), args.Error(1)
}

// MockBatchTrigger is a mock implementation of BatchTrigger.
type MockBatchTrigger struct {
	mock.Mock
}

func (m *MockBatchTrigger) Trigger(ctx context.Context, batchID string) error {
	args := m.Called(ctx, batchID)
	return args.Error(0)
}

// MockWorkItemPublisher is a mock implementation of outbound.WorkItemPublisher.
type MockWorkItemPublisher struct {
	mock.Mock
}

func (m *MockWorkItemPublisher) PublishWorkItem(ctx context.Context, msg *messaging.WorkItemMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockListingSource is a mock implementation of outbound.ListingSource.
type MockListingSource struct {
	mock.Mock
}

func (m *MockListingSource) FetchListing(ctx context.Context, batchID string) ([]*messaging.WorkItemMessage, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*messaging.WorkItemMessage), args.Error(1)
}

// memBlobStore is a concurrency-safe in-memory outbound.BlobStore.
type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte)}
}

func (s *memBlobStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	s.puts++
	return nil
}

func (s *memBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, outbound.ErrBlobNotFound
	}
	return data, nil
}

func (s *memBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// memCounterRepository mirrors the storage semantics of the real stores: the
// first disposition per item wins and counts only grow.
type memCounterRepository struct {
	mu       sync.Mutex
	counters map[string][2]int64
	seen     map[string]struct{}
	calls    int
}

func newMemCounterRepository() *memCounterRepository {
	return &memCounterRepository{counters: make(map[string][2]int64), seen: make(map[string]struct{})}
}

func (r *memCounterRepository) Add(_ context.Context, batchID string, s, f int64) (*entity.BatchCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counters[batchID]
	c[0] += s
	c[1] += f
	r.counters[batchID] = c
	return entity.RestoreBatchCounter(batchID, c[0], c[1], time.Now()), nil
}

func (r *memCounterRepository) RecordDispositions(
	ctx context.Context,
	batchID string,
	dispositions []entity.ItemDisposition,
) (*entity.BatchCounter, error) {
	r.mu.Lock()
	r.calls++
	var fresh []entity.ItemDisposition
	for _, d := range entity.DedupeDispositions(dispositions) {
		key := batchID + "#" + d.ItemID
		if _, ok := r.seen[key]; ok {
			continue
		}
		r.seen[key] = struct{}{}
		fresh = append(fresh, d)
	}
	r.mu.Unlock()

	s, f := entity.CountDispositions(fresh)
	return r.Add(ctx, batchID, s, f)
}

func (r *memCounterRepository) Get(_ context.Context, batchID string) (*entity.BatchCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[batchID]
	if !ok {
		return nil, outbound.ErrCounterNotFound
	}
	return entity.RestoreBatchCounter(batchID, c[0], c[1], time.Time{}), nil
}

// memResultRepository is an in-memory outbound.ResultRepository keyed by (batch, item).
type memResultRepository struct {
	mu      sync.Mutex
	records map[string]*entity.ResultRecord
	upserts int
}

func newMemResultRepository() *memResultRepository {
	return &memResultRepository{records: make(map[string]*entity.ResultRecord)}
}

func (r *memResultRepository) Upsert(_ context.Context, record *entity.ResultRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.BatchID()+"#"+record.ItemID()] = record
	r.upserts++
	return nil
}

func (r *memResultRepository) ListByBatch(_ context.Context, batchID string) ([]*entity.ResultRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ResultRecord
	for _, record := range r.records {
		if record.BatchID() == batchID {
			out = append(out, record)
		}
	}
	slices.SortFunc(out, func(a, b *entity.ResultRecord) int { return strings.Compare(a.ItemID(), b.ItemID()) })
	return out, nil
}

// fakeDelivery is an in-memory inbound.Delivery.
type fakeDelivery struct {
	id     string
	data   []byte
	ackErr error

	mu    sync.Mutex
	acked int
}

func (d *fakeDelivery) ID() string   { return d.id }
func (d *fakeDelivery) Data() []byte { return d.data }

func (d *fakeDelivery) Ack(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acked++
	return d.ackErr
}

func (d *fakeDelivery) ackCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acked
}
