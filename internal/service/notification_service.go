package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-loan-api/internal/models"
	"github.com/noah-isme/campus-loan-api/pkg/config"
	"github.com/noah-isme/campus-loan-api/pkg/jobs"
)

// Notifier delivers a single notification event. Delivery, retry and channel
// selection are the implementation's concern; the engine only raises events.
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent) error
}

// LogNotifier writes events to the application log. It stands in for the
// institution's push/email gateway in development and tests.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the event.
func (n *LogNotifier) Notify(_ context.Context, event models.NotificationEvent) error {
	n.logger.Info("notification",
		zap.String("student_id", event.StudentID),
		zap.String("recipient", event.Recipient),
		zap.String("title", event.Title),
		zap.String("body", event.Body))
	return nil
}

// NotificationDispatcher decouples notification delivery from the allocation
// and sweep decision paths: events are queued and delivered by background
// workers with retries.
type NotificationDispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationDispatcher constructs a dispatcher around the notifier.
func NewNotificationDispatcher(notifier Notifier, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.NotificationEvent)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return notifier.Notify(ctx, event)
	}
	queue := jobs.NewQueue("notifications", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return &NotificationDispatcher{queue: queue, logger: logger}
}

// Start launches the dispatch workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *NotificationDispatcher) Stop() {
	d.queue.Stop()
}

// DispatchAll enqueues a batch of events. Enqueue failures are logged, never
// propagated: notification delivery is fire-and-forget for the engine.
func (d *NotificationDispatcher) DispatchAll(events []models.NotificationEvent) {
	for _, event := range events {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    "loan_notification",
			Payload: event,
		}
		if err := d.queue.Enqueue(job); err != nil {
			d.logger.Warn("failed to enqueue notification",
				zap.String("student_id", event.StudentID),
				zap.String("title", event.Title),
				zap.Error(err))
		}
	}
}
