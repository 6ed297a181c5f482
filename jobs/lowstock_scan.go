package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/seifenwerk/seifenwerk/internal/jobs"
	"github.com/seifenwerk/seifenwerk/internal/stock"
)

// LowStockScanJob walks all stock records and reports the ones at or below
// their reorder threshold.
type LowStockScanJob struct {
	Store   stock.Store
	Cache   *stock.LowStockCache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the low stock scan handler.
func NewLowStockScanJob(store stock.Store, cache *stock.LowStockCache, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Store: store, Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("lowstock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	records, err := j.Store.ListBelowThreshold(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("low stock scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, record := range records {
		j.logger().Warn("article below reorder threshold",
			slog.String("article", record.Ref.String()),
			slog.Float64("quantity", record.Quantity),
			slog.Float64("threshold", record.ReorderThreshold),
		)
	}
	j.metrics().SetLowStockCount(len(records))

	if j.Cache != nil {
		if err := j.Cache.Bump(ctx); err != nil {
			j.logger().Warn("low stock cache bump failed", slog.Any("error", err))
		}
	}

	j.logger().Info("completed low stock scan",
		slog.Int("below_threshold", len(records)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}
