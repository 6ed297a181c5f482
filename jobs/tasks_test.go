package jobs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleEvery(t *testing.T) {
	require.Equal(t, "@every 30m0s", ScheduleEvery(30*time.Minute))
	require.Equal(t, "@every 24h0m0s", ScheduleEvery(24*time.Hour))
}

func TestLowStockScanTaskCarriesSchedule(t *testing.T) {
	at := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	task, err := NewLowStockScanTask(at)
	require.NoError(t, err)
	require.Equal(t, TaskLowStockScan, task.Type())

	var payload LowStockScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.True(t, payload.ScheduledFor.Equal(at))
}
