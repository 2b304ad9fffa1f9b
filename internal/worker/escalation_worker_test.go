package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/config"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
)

func newEscalationWorker(env *workerEnv, at time.Time) *EscalationWorker {
	worker := NewEscalationWorker(env.store, env.dispatcher(), zap.NewNop(), config.EscalationConfig{IntervalMinutes: 60})
	worker.now = func() time.Time { return at }
	return worker
}

func TestScanEscalatesOverdueRequests(t *testing.T) {
	env := newWorkerEnv()
	env.seedResident("r1")
	env.seedCategory("c1", "Electrical", 24)

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env.seedRequest("req1", "r1", "c1", domain.StatusAssigned, created)
	// Fresh request, deadline still ahead.
	env.seedRequest("req2", "r1", "c1", domain.StatusSubmitted, created.Add(40*time.Hour))
	// Terminal requests never escalate.
	env.seedRequest("req3", "r1", "c1", domain.StatusCancelled, created)

	worker := newEscalationWorker(env, created.Add(30*time.Hour))
	escalated, err := worker.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)

	require.Len(t, env.published, 1)
	event := env.published[0]
	assert.Equal(t, events.EventRequestOverdue, event.Type)
	assert.Equal(t, "req1", event.RequestID)
	payload, ok := event.Payload.(events.RequestOverduePayload)
	require.True(t, ok)
	assert.Equal(t, created.Add(24*time.Hour), payload.DeadlineAt)

	require.NotNil(t, env.store.RequestsByID["req1"].LastEscalatedAt)
	require.Len(t, env.store.OutboxLog, 1)
	require.Len(t, env.store.AuditLog, 1)
	assert.Equal(t, "escalation", env.store.AuditLog[0].Field)
	assert.Equal(t, domain.SubjectTypeSystem, env.store.AuditLog[0].ActorType)
}

func TestScanEmitsOncePerInterval(t *testing.T) {
	env := newWorkerEnv()
	env.seedResident("r1")
	env.seedCategory("c1", "Electrical", 24)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env.seedRequest("req1", "r1", "c1", domain.StatusAssigned, created)

	at := created.Add(30 * time.Hour)
	worker := newEscalationWorker(env, at)

	escalated, err := worker.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)

	// A second sweep inside the same interval is a no-op.
	worker.now = func() time.Time { return at.Add(10 * time.Minute) }
	escalated, err = worker.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, escalated)
	assert.Len(t, env.published, 1)
	assert.Len(t, env.store.OutboxLog, 1)

	// Once the interval elapses the request escalates again.
	worker.now = func() time.Time { return at.Add(2 * time.Hour) }
	escalated, err = worker.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)
	assert.Len(t, env.published, 2)
}

func TestEscalateSkipsRequestsSettledAfterSnapshot(t *testing.T) {
	env := newWorkerEnv()
	env.seedResident("r1")
	env.seedCategory("c1", "Electrical", 24)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env.seedRequest("req1", "r1", "c1", domain.StatusAssigned, created)

	at := created.Add(30 * time.Hour)
	worker := newEscalationWorker(env, at)

	// The request is resolved between the scan snapshot and the transaction.
	stale := *env.store.RequestsByID["req1"]
	env.store.RequestsByID["req1"].Status = domain.StatusResolved

	err := worker.escalate(context.Background(), &stale, at)
	require.ErrorIs(t, err, errNoLongerOverdue)

	assert.Empty(t, env.published)
	assert.Empty(t, env.store.OutboxLog)
	assert.Empty(t, env.store.AuditLog)
	assert.Nil(t, env.store.RequestsByID["req1"].LastEscalatedAt)
}

func TestExplicitEstimateDrivesDeadline(t *testing.T) {
	env := newWorkerEnv()
	env.seedResident("r1")
	env.seedCategory("c1", "Electrical", 24)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	estimate := created.Add(72 * time.Hour)
	env.seedRequest("req1", "r1", "c1", domain.StatusInProgress, created, func(r *domain.MaintenanceRequest) {
		r.EstimatedCompletion = &estimate
	})

	// Past the category deadline but inside the explicit estimate.
	worker := newEscalationWorker(env, created.Add(30*time.Hour))
	escalated, err := worker.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, escalated)

	worker.now = func() time.Time { return created.Add(80 * time.Hour) }
	escalated, err = worker.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)
}
