package notifications_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/notifications"
	"github.com/dmitrymomot/statuscast/pkg/queue"
)

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error) {
	args := m.Called(ctx, payload, opts)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// recordingRepo captures the job built by a real Enqueuer.
type recordingRepo struct {
	job *queue.Job
}

func (r *recordingRepo) CreateJob(_ context.Context, job *queue.Job) error {
	r.job = job
	return nil
}

func TestNewService_NilEnqueuer(t *testing.T) {
	t.Parallel()

	svc, err := notifications.NewService(nil)
	assert.ErrorIs(t, err, notifications.ErrEnqueuerNil)
	assert.Nil(t, svc)
}

func TestService_EnqueueAppliesRetryPolicy(t *testing.T) {
	t.Parallel()

	repo := &recordingRepo{}
	enqueuer, err := queue.NewEnqueuer(repo)
	require.NoError(t, err)
	svc, err := notifications.NewService(enqueuer)
	require.NoError(t, err)

	id, err := svc.Enqueue(context.Background(), notifications.Request{
		Recipient: "42",
		Channels:  []string{"email"},
		Message:   "hi",
	})
	require.NoError(t, err)

	require.NotNil(t, repo.job)
	assert.Equal(t, id, repo.job.ID)
	assert.Equal(t, notifications.JobName, repo.job.Name)
	assert.Equal(t, 3, repo.job.MaxAttempts)
	assert.Equal(t, queue.BackoffExponential, repo.job.Backoff.Type)
	assert.Equal(t, notifications.DefaultBackoffDelay, repo.job.Backoff.Delay)
	assert.JSONEq(t, `{"recipient":"42","channels":["email"],"message":"hi"}`, string(repo.job.Payload))
}

func TestService_EnqueueRejectsInvalidRequest(t *testing.T) {
	t.Parallel()

	enq := new(MockEnqueuer)
	svc, err := notifications.NewService(enq)
	require.NoError(t, err)

	_, err = svc.Enqueue(context.Background(), notifications.Request{Recipient: "42", Message: "hi"})
	require.ErrorIs(t, err, notifications.ErrInvalidRequest)
	enq.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_EnqueuePropagatesQueueError(t *testing.T) {
	t.Parallel()

	boom := errors.New("redis down")
	enq := new(MockEnqueuer)
	enq.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return(uuid.Nil, boom)

	svc, err := notifications.NewService(enq)
	require.NoError(t, err)

	_, err = svc.Enqueue(context.Background(), notifications.Request{Recipient: "1", Channels: []string{"sms"}, Message: "m"})
	assert.ErrorIs(t, err, boom)
	enq.AssertExpectations(t)
}

func TestService_HistoryDisabled(t *testing.T) {
	t.Parallel()

	svc, err := notifications.NewService(new(MockEnqueuer))
	require.NoError(t, err)

	_, err = svc.Job(context.Background(), uuid.New())
	assert.ErrorIs(t, err, notifications.ErrHistoryDisabled)
	_, err = svc.History(context.Background(), queue.JobStatusFailed, 10)
	assert.ErrorIs(t, err, notifications.ErrHistoryDisabled)
}
