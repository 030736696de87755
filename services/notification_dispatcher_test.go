package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeQuestAPI/internal/notification"
	"tradeQuestAPI/services"
)

type pushRecorder struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]notification.PushStatus
	done     chan struct{}
}

func newPushRecorder(expected int) *pushRecorder {
	return &pushRecorder{statuses: map[uuid.UUID]notification.PushStatus{}, done: make(chan struct{}, expected)}
}

func (r *pushRecorder) MarkPush(_ context.Context, id uuid.UUID, status notification.PushStatus, _ error) {
	r.mu.Lock()
	r.statuses[id] = status
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *pushRecorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for push %d", i+1)
		}
	}
}

func (r *pushRecorder) status(id uuid.UUID) notification.PushStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[id]
}

type fakePush struct {
	err error
}

func (f fakePush) SendPush(context.Context, []notification.DeviceToken, string, string, map[string]any) error {
	return f.err
}

func newNotif() *notification.Notification {
	return &notification.Notification{ID: uuid.New(), UserID: uuid.New(), Title: "Level up!"}
}

var someTokens = []notification.DeviceToken{{Token: "abc", Platform: "android"}}

func TestDispatcherOutcomes(t *testing.T) {
	rec := newPushRecorder(2)
	d := services.NewNotificationDispatcher(rec, fakePush{})
	defer d.Stop()

	sent, skipped := newNotif(), newNotif()
	require.True(t, d.Dispatch(context.Background(), sent, someTokens))
	require.True(t, d.Dispatch(context.Background(), skipped, nil))
	rec.wait(t, 2)

	assert.Equal(t, notification.PushSent, rec.status(sent.ID))
	assert.Equal(t, notification.PushSkipped, rec.status(skipped.ID))
}

func TestDispatcherRecordsFailure(t *testing.T) {
	rec := newPushRecorder(1)
	d := services.NewNotificationDispatcher(rec, fakePush{err: errors.New("fcm unavailable")})
	defer d.Stop()

	n := newNotif()
	require.True(t, d.Dispatch(context.Background(), n, someTokens))
	rec.wait(t, 1)
	assert.Equal(t, notification.PushFailed, rec.status(n.ID))
}

func TestDispatcherWithoutProviderSkips(t *testing.T) {
	rec := newPushRecorder(1)
	d := services.NewNotificationDispatcher(rec, nil)
	defer d.Stop()

	n := newNotif()
	require.True(t, d.Dispatch(context.Background(), n, someTokens))
	rec.wait(t, 1)
	assert.Equal(t, notification.PushSkipped, rec.status(n.ID))
}

func TestDispatchGivesUpOnCancelledContext(t *testing.T) {
	rec := newPushRecorder(1)
	d := services.NewNotificationDispatcher(rec, nil)
	d.Stop()

	// With the workers gone the queue eventually fills.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	queued := 0
	for i := 0; i < 101; i++ {
		if d.Dispatch(ctx, newNotif(), nil) {
			queued++
		}
	}
	assert.Equal(t, 100, queued)
}
