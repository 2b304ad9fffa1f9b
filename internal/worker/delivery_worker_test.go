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
)

func newDeliveryWorker(env *workerEnv, cfg config.DeliveryConfig) *DeliveryWorker {
	worker := NewDeliveryWorker(env.store, env.dir, env.email, env.sms, env.inbox, zap.NewNop(), cfg)
	worker.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return worker
}

func TestDeliverAcrossChannels(t *testing.T) {
	env := newWorkerEnv()
	staff := env.seedStaff("s1", domain.RoleFacilityManager)
	resident := env.seedResident("r1")

	env.seedTask("t1", domain.SubjectTypeStaff, staff.ID, domain.ChannelEmail)
	env.seedTask("t2", domain.SubjectTypeResident, resident.ID, domain.ChannelSMS)
	env.seedTask("t3", domain.SubjectTypeResident, resident.ID, domain.ChannelInApp)

	worker := newDeliveryWorker(env, config.DeliveryConfig{})
	delivered, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, delivered)

	require.Len(t, env.email.sent, 1)
	assert.Equal(t, staff.Email, env.email.sent[0].To)
	require.Len(t, env.sms.sent, 1)
	assert.Equal(t, resident.Phone, env.sms.sent[0].To)
	require.Len(t, env.inbox.written, 1)

	for _, id := range []string{"t1", "t2", "t3"} {
		assert.Equal(t, domain.NotificationSent, env.store.TasksByID[id].Status, id)
	}
}

func TestDeliveryFailureSchedulesRetryWithBackoff(t *testing.T) {
	env := newWorkerEnv()
	staff := env.seedStaff("s1", domain.RoleFacilityManager)
	env.seedTask("t1", domain.SubjectTypeStaff, staff.ID, domain.ChannelEmail)
	env.email.fail = true

	worker := newDeliveryWorker(env, config.DeliveryConfig{MaxAttempts: 3, BackoffBaseSeconds: 60})

	delivered, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)

	task := env.store.TasksByID["t1"]
	assert.Equal(t, domain.NotificationFailed, task.Status)
	assert.Equal(t, 1, task.AttemptCount)
	assert.NotEmpty(t, task.LastError)
	// First failure waits the base delay.
	assert.Equal(t, worker.now().Add(60*time.Second), task.NextAttemptAt)

	// Second failure doubles it.
	task.NextAttemptAt = worker.now()
	_, err = worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, task.AttemptCount)
	assert.Equal(t, worker.now().Add(120*time.Second), task.NextAttemptAt)
}

func TestDeliveryExhaustsAfterMaxAttempts(t *testing.T) {
	env := newWorkerEnv()
	staff := env.seedStaff("s1", domain.RoleFacilityManager)
	env.seedTask("t1", domain.SubjectTypeStaff, staff.ID, domain.ChannelEmail, func(task *domain.NotificationTask) {
		task.AttemptCount = 2
		task.Status = domain.NotificationFailed
	})
	env.email.fail = true

	worker := newDeliveryWorker(env, config.DeliveryConfig{MaxAttempts: 3})
	_, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)

	task := env.store.TasksByID["t1"]
	assert.Equal(t, domain.NotificationExhausted, task.Status)
	assert.Equal(t, 3, task.AttemptCount)

	// Exhausted tasks are parked, not retried.
	_, err = worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, task.AttemptCount)
}

func TestDeliverySucceedsOnRetry(t *testing.T) {
	env := newWorkerEnv()
	staff := env.seedStaff("s1", domain.RoleFacilityManager)
	env.seedTask("t1", domain.SubjectTypeStaff, staff.ID, domain.ChannelEmail, func(task *domain.NotificationTask) {
		task.AttemptCount = 1
		task.Status = domain.NotificationFailed
		task.LastError = "smtp unavailable"
	})

	worker := newDeliveryWorker(env, config.DeliveryConfig{MaxAttempts: 3})
	delivered, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	task := env.store.TasksByID["t1"]
	assert.Equal(t, domain.NotificationSent, task.Status)
	assert.Empty(t, task.LastError)

	// Sent tasks are never picked up again.
	delivered, err = worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Len(t, env.email.sent, 1)
}

func TestDeliverySkipsTasksNotYetDue(t *testing.T) {
	env := newWorkerEnv()
	staff := env.seedStaff("s1", domain.RoleFacilityManager)
	env.seedTask("t1", domain.SubjectTypeStaff, staff.ID, domain.ChannelEmail, func(task *domain.NotificationTask) {
		task.NextAttemptAt = time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	})

	worker := newDeliveryWorker(env, config.DeliveryConfig{})
	delivered, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Empty(t, env.email.sent)
}

func TestDeliveryFailsWhenContactMissing(t *testing.T) {
	env := newWorkerEnv()
	staff := env.seedStaff("s1", domain.RoleFacilityManager, func(s *domain.StaffProfile) {
		s.Phone = ""
	})
	env.seedTask("t1", domain.SubjectTypeStaff, staff.ID, domain.ChannelSMS)

	worker := newDeliveryWorker(env, config.DeliveryConfig{})
	_, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)

	task := env.store.TasksByID["t1"]
	assert.Equal(t, domain.NotificationFailed, task.Status)
	assert.Contains(t, task.LastError, "no phone number")
	assert.Empty(t, env.sms.sent)
}

func TestDeliveryOneFailureDoesNotBlockBatch(t *testing.T) {
	env := newWorkerEnv()
	staff := env.seedStaff("s1", domain.RoleFacilityManager)
	env.seedTask("t1", domain.SubjectTypeStaff, staff.ID, domain.ChannelEmail)
	env.seedTask("t2", domain.SubjectTypeStaff, staff.ID, domain.ChannelInApp)
	env.email.fail = true

	worker := newDeliveryWorker(env, config.DeliveryConfig{})
	delivered, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, domain.NotificationFailed, env.store.TasksByID["t1"].Status)
	assert.Equal(t, domain.NotificationSent, env.store.TasksByID["t2"].Status)
}
