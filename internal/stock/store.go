package stock

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// quantityTolerance absorbs floating-point residue in quantity math.
const quantityTolerance = 1e-4

// Store is the keyed storage of current quantities, one record per article.
type Store interface {
	Get(ctx context.Context, ref ArticleRef) (StockRecord, error)
	// GetOrCreate creates a zero-quantity record on first access. Two callers
	// racing to create the same key must not produce two records.
	GetOrCreate(ctx context.Context, ref ArticleRef, unit string) (StockRecord, error)
	// ApplyDelta is the only delta mutation primitive. It executes as one
	// atomic read-modify-write and enforces the non-negative invariant.
	ApplyDelta(ctx context.Context, ref ArticleRef, delta float64, reason string) (before, after float64, err error)
	// SetAbsolute overwrites the quantity for manual inventory counts.
	SetAbsolute(ctx context.Context, ref ArticleRef, quantity float64, reason string) (before, after float64, err error)
	SetThreshold(ctx context.Context, ref ArticleRef, threshold float64) error
	ListBelowThreshold(ctx context.Context) ([]StockRecord, error)
}

// PGStore persists stock records in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const recordColumns = `article_type, article_id, quantity, unit, reorder_threshold,
last_reason, last_delta, last_before, last_after, last_changed_at, updated_at`

func (s *PGStore) Get(ctx context.Context, ref ArticleRef) (StockRecord, error) {
	if s == nil {
		return StockRecord{}, errors.New("stock: store not initialised")
	}
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+`
FROM stock_records WHERE article_type=$1 AND article_id=$2`, ref.Type, ref.ID)
	return scanRecord(row)
}

func (s *PGStore) GetOrCreate(ctx context.Context, ref ArticleRef, unit string) (StockRecord, error) {
	if !ref.Type.Valid() || ref.ID == 0 {
		return StockRecord{}, ErrArticleNotFound
	}
	// ON CONFLICT keeps concurrent first-access idempotent.
	_, err := s.pool.Exec(ctx, `INSERT INTO stock_records (article_type, article_id, quantity, unit, reorder_threshold, updated_at)
VALUES ($1, $2, 0, $3, 0, NOW())
ON CONFLICT (article_type, article_id) DO NOTHING`, ref.Type, ref.ID, unit)
	if err != nil {
		return StockRecord{}, err
	}
	return s.Get(ctx, ref)
}

func (s *PGStore) ApplyDelta(ctx context.Context, ref ArticleRef, delta float64, reason string) (float64, float64, error) {
	if delta == 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, 0, ErrInvalidQuantity
	}
	// Single conditional update: the non-negative guard and the write are one
	// statement, so two racing consumers can never jointly overdraw.
	row := s.pool.QueryRow(ctx, `UPDATE stock_records
SET last_before = quantity,
    last_after = GREATEST(quantity + $3, 0),
    quantity = GREATEST(quantity + $3, 0),
    last_delta = $3,
    last_reason = $4,
    last_changed_at = NOW(),
    updated_at = NOW()
WHERE article_type=$1 AND article_id=$2 AND quantity + $3 >= -$5
RETURNING last_before, last_after`, ref.Type, ref.ID, delta, reason, quantityTolerance)
	var before, after float64
	if err := row.Scan(&before, &after); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.classifyRejection(ctx, ref)
		}
		return 0, 0, err
	}
	return before, after, nil
}

func (s *PGStore) SetAbsolute(ctx context.Context, ref ArticleRef, quantity float64, reason string) (float64, float64, error) {
	if quantity < 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return 0, 0, ErrNegativeStock
	}
	row := s.pool.QueryRow(ctx, `UPDATE stock_records
SET last_before = quantity,
    last_after = $3,
    quantity = $3,
    last_delta = $3 - quantity,
    last_reason = $4,
    last_changed_at = NOW(),
    updated_at = NOW()
WHERE article_type=$1 AND article_id=$2
RETURNING last_before, last_after`, ref.Type, ref.ID, quantity, reason)
	var before, after float64
	if err := row.Scan(&before, &after); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrRecordNotFound
		}
		return 0, 0, err
	}
	return before, after, nil
}

func (s *PGStore) SetThreshold(ctx context.Context, ref ArticleRef, threshold float64) error {
	if threshold < 0 {
		return ErrNegativeStock
	}
	tag, err := s.pool.Exec(ctx, `UPDATE stock_records
SET reorder_threshold=$3, updated_at=NOW()
WHERE article_type=$1 AND article_id=$2`, ref.Type, ref.ID, threshold)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PGStore) ListBelowThreshold(ctx context.Context) ([]StockRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+recordColumns+`
FROM stock_records
WHERE reorder_threshold > 0 AND quantity < reorder_threshold
ORDER BY article_type, article_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []StockRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// classifyRejection distinguishes a missing record from a negative-stock refusal.
func (s *PGStore) classifyRejection(ctx context.Context, ref ArticleRef) (float64, float64, error) {
	if _, err := s.Get(ctx, ref); err != nil {
		return 0, 0, err
	}
	return 0, 0, ErrNegativeStock
}

func scanRecord(row pgx.Row) (StockRecord, error) {
	var record StockRecord
	var change ChangeSnapshot
	var reason *string
	var delta, before, after *float64
	var changedAt *time.Time
	err := row.Scan(&record.Ref.Type, &record.Ref.ID, &record.Quantity, &record.Unit,
		&record.ReorderThreshold, &reason, &delta, &before, &after, &changedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRecord{}, ErrRecordNotFound
		}
		return StockRecord{}, err
	}
	if changedAt != nil {
		change.At = *changedAt
		if reason != nil {
			change.Reason = *reason
		}
		if delta != nil {
			change.Delta = *delta
		}
		if before != nil {
			change.Before = *before
		}
		if after != nil {
			change.After = *after
		}
		record.LastChange = &change
	}
	return record, nil
}
