package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/config"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
)

func newOutboxRelay(env *workerEnv, at time.Time) *OutboxRelay {
	relay := NewOutboxRelay(env.store, env.dispatcher(), zap.NewNop(), config.OutboxConfig{
		IntervalSeconds: 30,
		MinAgeSeconds:   10,
	})
	relay.now = func() time.Time { return at }
	return relay
}

func seedOutboxEvent(env *workerEnv, at time.Time) events.Event {
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventStatusChanged,
		RequestID: "req1",
		Actor:     events.StaffActor("s1"),
		Timestamp: at,
		Payload: events.StatusChangedPayload{
			TicketNumber: "MNT-2026-0001",
			OldStatus:    domain.StatusSubmitted,
			NewStatus:    domain.StatusAcknowledged,
			ResidentID:   "r1",
			Priority:     domain.PriorityMedium,
		},
	}
	if err := env.store.Outbox().Create(context.Background(), event); err != nil {
		panic(err)
	}
	return event
}

func TestRelayReplaysUnconfirmedRecords(t *testing.T) {
	env := newWorkerEnv()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	original := seedOutboxEvent(env, now.Add(-time.Minute))

	relay := newOutboxRelay(env, now)
	replayed, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	require.Len(t, env.published, 1)
	replay := env.published[0]
	assert.Equal(t, original.ID, replay.ID)
	assert.Equal(t, original.Type, replay.Type)

	// The payload round-trips through JSON with its concrete type intact.
	payload, ok := replay.Payload.(events.StatusChangedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.StatusAcknowledged, payload.NewStatus)
}

func TestRelayLeavesYoungRecordsAlone(t *testing.T) {
	env := newWorkerEnv()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedOutboxEvent(env, now.Add(-2*time.Second))

	relay := newOutboxRelay(env, now)
	replayed, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, replayed)
	assert.Empty(t, env.published)
}

func TestRelaySkipsConfirmedRecords(t *testing.T) {
	env := newWorkerEnv()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	event := seedOutboxEvent(env, now.Add(-time.Minute))
	require.NoError(t, env.store.Outbox().MarkProcessed(context.Background(), event.ID, now))

	relay := newOutboxRelay(env, now)
	replayed, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, replayed)
}
