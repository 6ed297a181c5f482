package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan walks all stock records and reports the ones below
	// their reorder threshold.
	TaskLowStockScan = "stock:lowstock_scan"
	// TaskLedgerIntegrity cross checks movement snapshots against each other
	// and against the live records.
	TaskLedgerIntegrity = "stock:ledger_integrity"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "stock:idempotency_cleanup"
)

// ScheduleEvery renders an interval as an Asynq schedule spec.
func ScheduleEvery(every time.Duration) string {
	return "@every " + every.String()
}

// LowStockScanPayload carries scheduling metadata for the scan.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low stock scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// LedgerIntegrityPayload bounds the integrity check window.
type LedgerIntegrityPayload struct {
	Since time.Time `json:"since"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the ledger check.
func NewLedgerIntegrityTask(since time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{Since: since})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload sets the retention window for processed keys.
type IdempotencyCleanupPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for key cleanup.
func NewIdempotencyCleanupTask(maxAge time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
