package repository

import (
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/port/outbound"
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const resultRecordFields = `batch_id, item_id, headline, summary, byline, article_url, authors, article_id, loaded_at`

// PostgreSQLResultRepository implements outbound.ResultRepository.
type PostgreSQLResultRepository struct {
	pool *pgxpool.Pool
}

var _ outbound.ResultRepository = (*PostgreSQLResultRepository)(nil)

// NewPostgreSQLResultRepository creates a new PostgreSQL result repository.
func NewPostgreSQLResultRepository(pool *pgxpool.Pool) *PostgreSQLResultRepository {
	return &PostgreSQLResultRepository{pool: pool}
}

// Upsert writes the record keyed by (batch_id, item_id).
func (r *PostgreSQLResultRepository) Upsert(ctx context.Context, record *entity.ResultRecord) error {
	if record == nil {
		return ErrInvalidArgument
	}

	query := `
		INSERT INTO result_records (` + resultRecordFields + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (batch_id, item_id) DO UPDATE SET
			headline = EXCLUDED.headline,
			summary = EXCLUDED.summary,
			byline = EXCLUDED.byline,
			article_url = EXCLUDED.article_url,
			authors = EXCLUDED.authors,
			article_id = EXCLUDED.article_id,
			loaded_at = EXCLUDED.loaded_at`

	qi := querier(ctx, r.pool)
	_, err := qi.Exec(ctx, query,
		record.BatchID(),
		record.ItemID(),
		record.Headline(),
		record.Summary(),
		record.Byline(),
		record.ArticleURL(),
		record.Authors(),
		record.ArticleID(),
		record.LoadedAt(),
	)
	if err != nil {
		return WrapError(err, "upsert result record")
	}
	return nil
}

// ListByBatch returns the records of a batch ordered by item id.
func (r *PostgreSQLResultRepository) ListByBatch(ctx context.Context, batchID string) ([]*entity.ResultRecord, error) {
	qi := querier(ctx, r.pool)
	rows, err := qi.Query(ctx,
		`SELECT `+resultRecordFields+` FROM result_records WHERE batch_id = $1 ORDER BY item_id ASC`,
		batchID,
	)
	if err != nil {
		return nil, WrapError(err, "list result records")
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.ResultRecord, error) {
		var (
			batch, item, headline, summary, byline, articleURL, articleID string
			authors                                                       []string
			loadedAt                                                      time.Time
		)
		if err := row.Scan(&batch, &item, &headline, &summary, &byline, &articleURL, &authors, &articleID, &loadedAt); err != nil {
			return nil, err
		}
		return entity.RestoreResultRecord(batch, item, headline, summary, byline, articleURL, authors, articleID, loadedAt), nil
	})
	if err != nil {
		return nil, WrapError(err, "scan result records")
	}
	return records, nil
}
