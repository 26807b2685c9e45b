package localstore

import (
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CounterStore implements outbound.CounterRepository on SQLite.
type CounterStore struct {
	db *gorm.DB
}

var _ outbound.CounterRepository = (*CounterStore)(nil)

// NewCounterStore creates a counter store.
func NewCounterStore(db *gorm.DB) *CounterStore {
	return &CounterStore{db: db}
}

// Add upserts the deltas and returns the counter, in one transaction.
func (s *CounterStore) Add(ctx context.Context, batchID string, successDelta, failureDelta int64) (*entity.BatchCounter, error) {
	if batchID == "" || successDelta < 0 || failureDelta < 0 {
		return nil, fmt.Errorf("invalid counter add for batch %q", batchID)
	}

	var counter *entity.BatchCounter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		counter, err = addCounter(tx, batchID, successDelta, failureDelta)
		return err
	})
	return counter, err
}

// RecordDispositions inserts ledger rows, skipping items already recorded,
// and adds the outcomes of the new rows.
func (s *CounterStore) RecordDispositions(
	ctx context.Context,
	batchID string,
	dispositions []entity.ItemDisposition,
) (*entity.BatchCounter, error) {
	if batchID == "" {
		return nil, errors.New("batch id cannot be empty")
	}

	var counter *entity.BatchCounter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var success, failure int64
		now := time.Now()
		for _, d := range entity.DedupeDispositions(dispositions) {
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&itemDispositionRow{
				BatchID:     batchID,
				ItemID:      d.ItemID,
				Disposition: d.Disposition.String(),
				RecordedAt:  now,
			})
			if result.Error != nil {
				return fmt.Errorf("record disposition of %s: %w", d.ItemID, result.Error)
			}
			if result.RowsAffected == 0 {
				continue
			}
			if d.Disposition.Succeeded() {
				success++
			} else {
				failure++
			}
		}

		var err error
		counter, err = addCounter(tx, batchID, success, failure)
		return err
	})
	return counter, err
}

// Get returns the current counter.
func (s *CounterStore) Get(ctx context.Context, batchID string) (*entity.BatchCounter, error) {
	var row batchCounterRow
	err := s.db.WithContext(ctx).First(&row, "batch_id = ?", batchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, outbound.ErrCounterNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func addCounter(tx *gorm.DB, batchID string, successDelta, failureDelta int64) (*entity.BatchCounter, error) {
	now := time.Now()
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "batch_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"success_count": gorm.Expr("success_count + ?", successDelta),
			"failure_count": gorm.Expr("failure_count + ?", failureDelta),
			"updated_at":    now,
		}),
	}).Create(&batchCounterRow{
		BatchID:      batchID,
		SuccessCount: successDelta,
		FailureCount: failureDelta,
		UpdatedAt:    now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("add batch counter: %w", err)
	}

	var row batchCounterRow
	if err := tx.First(&row, "batch_id = ?", batchID).Error; err != nil {
		return nil, fmt.Errorf("read batch counter: %w", err)
	}
	return row.toEntity(), nil
}

func (r batchCounterRow) toEntity() *entity.BatchCounter {
	return entity.RestoreBatchCounter(r.BatchID, r.SuccessCount, r.FailureCount, r.UpdatedAt)
}

