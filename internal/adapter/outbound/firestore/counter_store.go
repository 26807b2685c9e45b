package firestore

import (
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"fmt"
	"time"

	fs "cloud.google.com/go/firestore"
)

type counterDoc struct {
	BatchID      string    `firestore:"batch_id"`
	SuccessCount int64     `firestore:"success_count"`
	FailureCount int64     `firestore:"failure_count"`
	UpdatedAt    time.Time `firestore:"updated_at"`
}

func (d counterDoc) toEntity() *entity.BatchCounter {
	return entity.RestoreBatchCounter(d.BatchID, d.SuccessCount, d.FailureCount, d.UpdatedAt)
}

func (d counterDoc) add(successDelta, failureDelta int64, now time.Time) counterDoc {
	d.SuccessCount += successDelta
	d.FailureCount += failureDelta
	d.UpdatedAt = now
	return d
}

type dispositionDoc struct {
	ItemID      string    `firestore:"item_id"`
	Disposition string    `firestore:"disposition"`
	RecordedAt  time.Time `firestore:"recorded_at"`
}

// CounterStore implements outbound.CounterRepository with Firestore
// transactions. Concurrent transactions on the same counter document are
// retried by the client until one view of the document wins.
type CounterStore struct {
	client     *fs.Client
	collection string
}

var _ outbound.CounterRepository = (*CounterStore)(nil)

// NewCounterStore creates a counter store.
func NewCounterStore(client *fs.Client, collections Collections) *CounterStore {
	return &CounterStore{client: client, collection: collections.Counters}
}

func (s *CounterStore) counterRef(batchID string) *fs.DocumentRef {
	return s.client.Collection(s.collection).Doc(docID(batchID))
}

// Add applies the deltas and returns the counter.
func (s *CounterStore) Add(ctx context.Context, batchID string, successDelta, failureDelta int64) (*entity.BatchCounter, error) {
	if batchID == "" || successDelta < 0 || failureDelta < 0 {
		return nil, fmt.Errorf("invalid counter add for batch %q", batchID)
	}

	var counter *entity.BatchCounter
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *fs.Transaction) error {
		ref := s.counterRef(batchID)
		current, err := readCounter(tx, ref, batchID)
		if err != nil {
			return err
		}
		next := current.add(successDelta, failureDelta, time.Now())
		if err := tx.Set(ref, next); err != nil {
			return err
		}
		counter = next.toEntity()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add batch counter %s: %w", batchID, err)
	}
	return counter, nil
}

// RecordDispositions writes one ledger document per new item under the
// counter and adds the outcomes of those items only.
func (s *CounterStore) RecordDispositions(
	ctx context.Context,
	batchID string,
	dispositions []entity.ItemDisposition,
) (*entity.BatchCounter, error) {
	if batchID == "" {
		return nil, errors.New("batch id cannot be empty")
	}
	unique := entity.DedupeDispositions(dispositions)

	var counter *entity.BatchCounter
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *fs.Transaction) error {
		ref := s.counterRef(batchID)
		itemRefs := make([]*fs.DocumentRef, len(unique))
		for i, d := range unique {
			itemRefs[i] = ref.Collection(dispositionsCollection).Doc(docID(d.ItemID))
		}

		// Firestore transactions read everything before the first write.
		current, err := readCounter(tx, ref, batchID)
		if err != nil {
			return err
		}
		var snaps []*fs.DocumentSnapshot
		if len(itemRefs) > 0 {
			if snaps, err = tx.GetAll(itemRefs); err != nil {
				return fmt.Errorf("read dispositions: %w", err)
			}
		}

		now := time.Now()
		fresh := newDispositions(unique, snaps)
		for i, d := range unique {
			if !fresh[i] {
				continue
			}
			if err := tx.Create(itemRefs[i], dispositionDoc{
				ItemID:      d.ItemID,
				Disposition: d.Disposition.String(),
				RecordedAt:  now,
			}); err != nil {
				return err
			}
		}

		success, failure := countFresh(unique, fresh)
		next := current.add(success, failure, now)
		if err := tx.Set(ref, next); err != nil {
			return err
		}
		counter = next.toEntity()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record dispositions for batch %s: %w", batchID, err)
	}
	return counter, nil
}

// Get returns the current counter.
func (s *CounterStore) Get(ctx context.Context, batchID string) (*entity.BatchCounter, error) {
	snap, err := s.counterRef(batchID).Get(ctx)
	if isNotFound(err) {
		return nil, outbound.ErrCounterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch counter %s: %w", batchID, err)
	}
	var doc counterDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode batch counter %s: %w", batchID, err)
	}
	return doc.toEntity(), nil
}

func readCounter(tx *fs.Transaction, ref *fs.DocumentRef, batchID string) (counterDoc, error) {
	snap, err := tx.Get(ref)
	if isNotFound(err) {
		return counterDoc{BatchID: batchID}, nil
	}
	if err != nil {
		return counterDoc{}, fmt.Errorf("read batch counter: %w", err)
	}
	var doc counterDoc
	if err := snap.DataTo(&doc); err != nil {
		return counterDoc{}, fmt.Errorf("decode batch counter: %w", err)
	}
	doc.BatchID = batchID
	return doc, nil
}

// newDispositions reports, per disposition, whether its ledger document is
// absent from snaps. A missing snapshot counts as absent.
func newDispositions(dispositions []entity.ItemDisposition, snaps []*fs.DocumentSnapshot) []bool {
	fresh := make([]bool, len(dispositions))
	for i := range dispositions {
		fresh[i] = i >= len(snaps) || snaps[i] == nil || !snaps[i].Exists()
	}
	return fresh
}

func countFresh(dispositions []entity.ItemDisposition, fresh []bool) (success, failure int64) {
	for i, d := range dispositions {
		if !fresh[i] {
			continue
		}
		if d.Disposition.Succeeded() {
			success++
		} else {
			failure++
		}
	}
	return success, failure
}
