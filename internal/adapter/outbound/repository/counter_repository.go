package repository

import (
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	addCounterQuery = `
		INSERT INTO batch_counters (batch_id, success_count, failure_count, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (batch_id) DO UPDATE SET
			success_count = batch_counters.success_count + EXCLUDED.success_count,
			failure_count = batch_counters.failure_count + EXCLUDED.failure_count,
			updated_at = now()
		RETURNING batch_id, success_count, failure_count, updated_at`

	// Only rows that were actually inserted come back, so redelivered items
	// are filtered out before the add.
	recordDispositionsQuery = `
		INSERT INTO item_dispositions (batch_id, item_id, disposition)
		SELECT $1, d.item_id, d.disposition
		FROM unnest($2::text[], $3::text[]) AS d(item_id, disposition)
		ON CONFLICT (batch_id, item_id) DO NOTHING
		RETURNING disposition`
)

// PostgreSQLCounterRepository implements outbound.CounterRepository.
type PostgreSQLCounterRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

var _ outbound.CounterRepository = (*PostgreSQLCounterRepository)(nil)

// NewPostgreSQLCounterRepository creates a new PostgreSQL counter repository.
func NewPostgreSQLCounterRepository(pool *pgxpool.Pool) *PostgreSQLCounterRepository {
	return &PostgreSQLCounterRepository{pool: pool, tx: NewTxRunner(pool)}
}

// Add atomically adds the deltas with a single upsert.
func (r *PostgreSQLCounterRepository) Add(
	ctx context.Context,
	batchID string,
	successDelta, failureDelta int64,
) (*entity.BatchCounter, error) {
	if strings.TrimSpace(batchID) == "" || successDelta < 0 || failureDelta < 0 {
		return nil, ErrInvalidArgument
	}

	qi := querier(ctx, r.pool)
	counter, err := scanCounter(qi.QueryRow(ctx, addCounterQuery, batchID, successDelta, failureDelta))
	if err != nil {
		return nil, WrapError(err, "add batch counter")
	}
	return counter, nil
}

// RecordDispositions inserts the item ledger rows and adds the outcomes of the
// newly inserted ones in one transaction.
func (r *PostgreSQLCounterRepository) RecordDispositions(
	ctx context.Context,
	batchID string,
	dispositions []entity.ItemDisposition,
) (*entity.BatchCounter, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, ErrInvalidArgument
	}

	unique := entity.DedupeDispositions(dispositions)
	itemIDs := make([]string, len(unique))
	values := make([]string, len(unique))
	for i, d := range unique {
		itemIDs[i] = d.ItemID
		values[i] = d.Disposition.String()
	}

	var counter *entity.BatchCounter
	err := r.tx.Run(ctx, func(txCtx context.Context) error {
		qi := querier(txCtx, r.pool)

		var success, failure int64
		if len(unique) > 0 {
			rows, err := qi.Query(txCtx, recordDispositionsQuery, batchID, itemIDs, values)
			if err != nil {
				return WrapError(err, "record item dispositions")
			}
			recorded, err := pgx.CollectRows(rows, pgx.RowTo[string])
			if err != nil {
				return WrapError(err, "record item dispositions")
			}
			for _, value := range recorded {
				if valueobject.Disposition(value).Succeeded() {
					success++
				} else {
					failure++
				}
			}
		}

		var err error
		counter, err = r.Add(txCtx, batchID, success, failure)
		return err
	})
	if err != nil {
		return nil, err
	}
	return counter, nil
}

// Get returns the current counter of a batch.
func (r *PostgreSQLCounterRepository) Get(ctx context.Context, batchID string) (*entity.BatchCounter, error) {
	qi := querier(ctx, r.pool)
	row := qi.QueryRow(ctx,
		`SELECT batch_id, success_count, failure_count, updated_at FROM batch_counters WHERE batch_id = $1`,
		batchID,
	)
	counter, err := scanCounter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, outbound.ErrCounterNotFound
	}
	if err != nil {
		return nil, WrapError(err, "get batch counter")
	}
	return counter, nil
}

func scanCounter(row pgx.Row) (*entity.BatchCounter, error) {
	var (
		batchID          string
		success, failure int64
		updatedAt        time.Time
	)
	if err := row.Scan(&batchID, &success, &failure, &updatedAt); err != nil {
		return nil, err
	}
	return entity.RestoreBatchCounter(batchID, success, failure, updatedAt), nil
}
