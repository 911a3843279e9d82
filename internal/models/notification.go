package models

import "time"

// NotificationEvent is raised by the allocation and sweep flows. The engine
// only decides that a notification is due; delivery, retry and channel
// selection belong to the external notifier.
type NotificationEvent struct {
	StudentID string    `json:"student_id"`
	Recipient string    `json:"recipient"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
