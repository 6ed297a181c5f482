package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/seifenwerk/seifenwerk/internal/jobs"
)

// snapshotTolerance absorbs float accumulation in stored quantities.
const snapshotTolerance = 1e-4

// LedgerIntegrityJob verifies that every movement's before/delta/after
// snapshot is internally consistent and that the latest snapshot per article
// matches the live record.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity check handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the integrity check.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Since.IsZero() {
		payload.Since = time.Now().UTC().AddDate(0, 0, -7)
	}

	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	drift, err := j.checkSnapshots(ctx, payload.Since)
	if err != nil {
		resultErr = err
		j.logger().Error("ledger integrity check failed", slog.Any("error", err))
		return resultErr
	}
	mismatches, err := j.checkLiveRecords(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("record reconciliation failed", slog.Any("error", err))
		return resultErr
	}

	j.logger().Info("completed ledger integrity check",
		slog.Int("snapshot_drift", drift),
		slog.Int("record_mismatches", mismatches),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

// checkSnapshots finds movements where before + delta != after.
func (j *LedgerIntegrityJob) checkSnapshots(ctx context.Context, since time.Time) (int, error) {
	rows, err := j.Pool.Query(ctx,
		`SELECT id, article_type, article_id, qty_before, delta, qty_after
		 FROM stock_movements
		 WHERE occurred_at >= $1
		   AND abs(qty_before + delta - qty_after) > $2`,
		since, snapshotTolerance)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	total := 0
	perType := make(map[string]int)
	for rows.Next() {
		var id int64
		var articleType string
		var articleID int64
		var before, delta, after float64
		if err := rows.Scan(&id, &articleType, &articleID, &before, &delta, &after); err != nil {
			return total, err
		}
		total++
		perType[articleType]++
		j.logger().Warn("movement snapshot drift",
			slog.Int64("movement_id", id),
			slog.String("article_type", articleType),
			slog.Int64("article_id", articleID),
			slog.Float64("gap", math.Abs(before+delta-after)),
		)
	}
	if err := rows.Err(); err != nil {
		return total, err
	}
	for articleType, count := range perType {
		j.metrics().AddLedgerDrift(articleType, count)
	}
	return total, nil
}

// checkLiveRecords compares each record's quantity against its most recent
// movement snapshot.
func (j *LedgerIntegrityJob) checkLiveRecords(ctx context.Context) (int, error) {
	rows, err := j.Pool.Query(ctx,
		`SELECT r.article_type, r.article_id, r.quantity, m.qty_after
		 FROM stock_records r
		 JOIN LATERAL (
		     SELECT qty_after FROM stock_movements
		     WHERE article_type = r.article_type AND article_id = r.article_id
		     ORDER BY occurred_at DESC, id DESC LIMIT 1
		 ) m ON true
		 WHERE abs(r.quantity - m.qty_after) > $1`,
		snapshotTolerance)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	total := 0
	for rows.Next() {
		var articleType string
		var articleID int64
		var quantity, lastAfter float64
		if err := rows.Scan(&articleType, &articleID, &quantity, &lastAfter); err != nil {
			return total, err
		}
		total++
		j.logger().Warn("record diverges from ledger",
			slog.String("article_type", articleType),
			slog.Int64("article_id", articleID),
			slog.Float64("record", quantity),
			slog.Float64("ledger", lastAfter),
		)
	}
	return total, rows.Err()
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}
