package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tradeQuestAPI/internal/metrics"
	"tradeQuestAPI/internal/notification"
)

const (
	dispatchWorkers     = 5
	dispatchQueueSize   = 100
	dispatchEnqueueWait = 5 * time.Second
	dispatchPushTimeout = 10 * time.Second
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// PushStatusRecorder persists the outcome of a push attempt.
type PushStatusRecorder interface {
	MarkPush(ctx context.Context, notificationID uuid.UUID, status notification.PushStatus, pushErr error)
}

// NotificationDispatcher delivers push notifications from a bounded queue
// with a fixed worker pool.
type NotificationDispatcher struct {
	recorder     PushStatusRecorder
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan *DispatchJob
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

type DispatchJob struct {
	Notification *notification.Notification
	Tokens       []notification.DeviceToken
}

// NewNotificationDispatcher starts the workers. provider may be nil, in
// which case every job is recorded as skipped.
func NewNotificationDispatcher(recorder PushStatusRecorder, provider PushNotificationProvider) *NotificationDispatcher {
	d := &NotificationDispatcher{
		recorder:     recorder,
		pushProvider: provider,
		workers:      dispatchWorkers,
		jobQueue:     make(chan *DispatchJob, dispatchQueueSize),
		stopChan:     make(chan struct{}),
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			metrics.NotificationQueueDepth.Set(float64(len(d.jobQueue)))
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchPushTimeout)
	defer cancel()

	notif := job.Notification
	if d.pushProvider == nil || len(job.Tokens) == 0 {
		d.recorder.MarkPush(ctx, notif.ID, notification.PushSkipped, nil)
		return
	}

	if err := d.pushProvider.SendPush(ctx, job.Tokens, notif.Title, notif.Message, notif.Data); err != nil {
		metrics.NotificationsFailed.WithLabelValues("push").Inc()
		log.Warn().Err(err).Str("user_id", notif.UserID.String()).Str("notification_id", notif.ID.String()).Msg("push failed")
		d.recorder.MarkPush(ctx, notif.ID, notification.PushFailed, err)
		return
	}
	d.recorder.MarkPush(ctx, notif.ID, notification.PushSent, nil)
}

// Dispatch queues a push. It gives up after dispatchEnqueueWait when the
// queue stays full, or as soon as ctx is done.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, notif *notification.Notification, tokens []notification.DeviceToken) bool {
	job := &DispatchJob{Notification: notif, Tokens: tokens}

	select {
	case d.jobQueue <- job:
		metrics.NotificationQueueDepth.Set(float64(len(d.jobQueue)))
		return true
	default:
	}

	timer := time.NewTimer(dispatchEnqueueWait)
	defer timer.Stop()

	select {
	case d.jobQueue <- job:
		metrics.NotificationQueueDepth.Set(float64(len(d.jobQueue)))
		return true
	case <-timer.C:
	case <-ctx.Done():
	}

	metrics.NotificationsFailed.WithLabelValues("queue").Inc()
	log.Warn().Str("notification_id", notif.ID.String()).Msg("failed to queue notification: queue full")
	return false
}

// Stop waits for the workers to exit. Queued jobs are abandoned.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		log.Info().Msg("stopping notification dispatcher")
		close(d.stopChan)
		d.wg.Wait()
	})
}
