package stock

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger is the append-only audit log of quantity changes. Entries are never
// updated or deleted; corrections are new entries.
type Ledger interface {
	Append(ctx context.Context, movement Movement) (int64, error)
	// History returns entries for one article, most recent first.
	History(ctx context.Context, ref ArticleRef, limit int) ([]Movement, error)
}

// ErrMalformedMovement indicates a movement entry missing required fields.
var ErrMalformedMovement = errors.New("stock: malformed movement entry")

// PGLedger persists movements in PostgreSQL.
type PGLedger struct {
	pool *pgxpool.Pool
}

// NewPGLedger constructs PGLedger.
func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{pool: pool}
}

func (l *PGLedger) Append(ctx context.Context, m Movement) (int64, error) {
	if l == nil {
		return 0, errors.New("stock: ledger not initialised")
	}
	if !m.Ref.Type.Valid() || m.Ref.ID == 0 || m.Type == "" || m.Reason == "" {
		return 0, ErrMalformedMovement
	}
	if math.Abs(m.After-(m.Before+m.Delta)) > quantityTolerance {
		return 0, ErrMalformedMovement
	}
	at := m.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var id int64
	err := l.pool.QueryRow(ctx, `INSERT INTO stock_movements
(article_type, article_id, movement_type, delta, unit, qty_before, qty_after, reason, reference, actor, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`, m.Ref.Type, m.Ref.ID, m.Type, m.Delta, m.Unit, m.Before, m.After, m.Reason, m.Reference, m.Actor, at).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (l *PGLedger) History(ctx context.Context, ref ArticleRef, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `SELECT id, article_type, article_id, movement_type, delta, unit, qty_before, qty_after, reason, reference, actor, occurred_at
FROM stock_movements
WHERE article_type=$1 AND article_id=$2
ORDER BY occurred_at DESC, id DESC
LIMIT $3`, ref.Type, ref.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Ref.Type, &m.Ref.ID, &m.Type, &m.Delta, &m.Unit,
			&m.Before, &m.After, &m.Reason, &m.Reference, &m.Actor, &m.At); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}
