package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service reads the audit log and the movement ledger for reporting. All
// access is read-only; writes go through the stock engine and AuditLogger.
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates an audit reporting service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Timeline fetches audit entries with paging. One extra row is requested to
// detect whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.pool == nil {
		return Result{}, fmt.Errorf("audit: pool not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query, args := timelineQuery(filters)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT %d OFFSET %d", pageSize+1, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return Result{}, fmt.Errorf("audit: timeline query: %w", err)
	}
	entries, err := scanTimeline(rows)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: entries, Paging: paging}, nil
}

// Export fetches the full timeline for the filter window without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("audit: pool not configured")
	}
	query, args := timelineQuery(filters)
	query += " ORDER BY occurred_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: export query: %w", err)
	}
	return scanTimeline(rows)
}

// Movements fetches ledger entries for the filter window, most recent first.
func (s *Service) Movements(ctx context.Context, from, to time.Time, articleType string) ([]MovementRow, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("audit: pool not configured")
	}
	query := `SELECT occurred_at, article_type, article_id, movement_type, delta, unit,
		qty_before, qty_after, reason, COALESCE(reference, ''), actor
		FROM stock_movements WHERE 1=1`
	var args []any
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to.Add(24*time.Hour))
		query += fmt.Sprintf(" AND occurred_at < $%d", len(args))
	}
	if trimmed := strings.TrimSpace(articleType); trimmed != "" {
		args = append(args, trimmed)
		query += fmt.Sprintf(" AND article_type = $%d", len(args))
	}
	query += " ORDER BY occurred_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: movements query: %w", err)
	}
	defer rows.Close()

	var result []MovementRow
	for rows.Next() {
		var m MovementRow
		if err := rows.Scan(&m.At, &m.ArticleType, &m.ArticleID, &m.Movement, &m.Delta,
			&m.Unit, &m.Before, &m.After, &m.Reason, &m.Reference, &m.Actor); err != nil {
			return nil, fmt.Errorf("audit: scan movement: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func timelineQuery(filters TimelineFilters) (string, []any) {
	query := `SELECT occurred_at, actor, action, entity, entity_id, COALESCE(meta::text, '')
		FROM audit_logs WHERE 1=1`
	var args []any
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To.Add(24*time.Hour))
		query += fmt.Sprintf(" AND occurred_at < $%d", len(args))
	}
	if trimmed := strings.TrimSpace(filters.Actor); trimmed != "" {
		args = append(args, trimmed)
		query += fmt.Sprintf(" AND actor = $%d", len(args))
	}
	if trimmed := strings.TrimSpace(filters.Entity); trimmed != "" {
		args = append(args, trimmed)
		query += fmt.Sprintf(" AND entity = $%d", len(args))
	}
	if trimmed := strings.TrimSpace(filters.Action); trimmed != "" {
		args = append(args, trimmed)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	return query, args
}

func scanTimeline(rows pgx.Rows) ([]TimelineRow, error) {
	defer rows.Close()
	var entries []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &row.Meta); err != nil {
			return nil, fmt.Errorf("audit: scan timeline: %w", err)
		}
		entries = append(entries, row)
	}
	return entries, rows.Err()
}
