package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seifenwerk/seifenwerk/internal/platform/db"
)

// Repository persists orders and their lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a sales repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create stores the order and its lines in one transaction.
func (r *Repository) Create(ctx context.Context, order Order) (Order, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO orders (number, status, customer_name, reference, created_at)
			 VALUES ($1, $2, $3, $4, now())
			 RETURNING id, created_at`,
			order.Number, order.Status, order.CustomerName, order.Reference,
		)
		if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
			return fmt.Errorf("sales: insert order: %w", err)
		}
		for i := range order.Lines {
			line := &order.Lines[i]
			lineRow := tx.QueryRow(ctx,
				`INSERT INTO order_lines (order_id, article_id, quantity)
				 VALUES ($1, $2, $3) RETURNING id`,
				order.ID, line.ArticleID, line.Quantity,
			)
			if err := lineRow.Scan(&line.ID); err != nil {
				return fmt.Errorf("sales: insert order line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Get loads an order with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	var order Order
	row := r.pool.QueryRow(ctx,
		`SELECT id, number, status, customer_name, reference, created_at, completed_at
		 FROM orders WHERE id = $1`, id)
	if err := row.Scan(&order.ID, &order.Number, &order.Status, &order.CustomerName,
		&order.Reference, &order.CreatedAt, &order.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("sales: get order: %w", err)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, article_id, quantity FROM order_lines WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("sales: list order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ID, &line.ArticleID, &line.Quantity); err != nil {
			return Order{}, fmt.Errorf("sales: scan order line: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}
	return order, rows.Err()
}

// List returns orders newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status OrderStatus, limit int) ([]Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, number, status, customer_name, reference, created_at, completed_at FROM orders`
	var args []any
	if status != "" {
		args = append(args, status)
		query += " WHERE status = $1"
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sales: list orders: %w", err)
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.Number, &order.Status, &order.CustomerName,
			&order.Reference, &order.CreatedAt, &order.CompletedAt); err != nil {
			return nil, fmt.Errorf("sales: scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// SetStatus transitions the order, stamping completed_at where applicable.
func (r *Repository) SetStatus(ctx context.Context, id int64, status OrderStatus, completedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, completed_at = COALESCE($3, completed_at) WHERE id = $1`,
		id, status, completedAt)
	if err != nil {
		return fmt.Errorf("sales: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetReference swaps the idempotency reference, used when booking a return.
func (r *Repository) SetReference(ctx context.Context, id int64, reference string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET reference = $2 WHERE id = $1`, id, reference)
	if err != nil {
		return fmt.Errorf("sales: set reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
