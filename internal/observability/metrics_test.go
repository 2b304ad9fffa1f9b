package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordRequestAccumulatesCountAndLatency(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordRequest("/api/requests", "GET", 200, 30*time.Millisecond)
	metrics.RecordRequest("/api/requests", "GET", 200, 50*time.Millisecond)
	metrics.RecordRequest("/api/requests", "POST", 201, 10*time.Millisecond)

	count, total := metrics.RequestStats("/api/requests", "GET", 200)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 80*time.Millisecond, total)

	count, total = metrics.RequestStats("/api/requests", "POST", 201)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 10*time.Millisecond, total)

	count, total = metrics.RequestStats("/api/requests", "DELETE", 404)
	assert.Zero(t, count)
	assert.Zero(t, total)
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordRequest("/x", "GET", 200, time.Second)
	metrics.RecordError("/x", "GET", "NOT_FOUND")
	metrics.RecordTransition("submitted", "acknowledged")
	metrics.RecordEscalation()

	count, total := metrics.RequestStats("/x", "GET", 200)
	assert.Zero(t, count)
	assert.Zero(t, total)
}
