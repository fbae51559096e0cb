package interfaces

import "context"

// EventType identifies a job lifecycle event.
type EventType string

const (
	EventJobCreated   EventType = "job_created"
	EventJobStarted   EventType = "job_started"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
	EventJobReclaimed EventType = "job_reclaimed"
)

// Event is one lifecycle notification published to subscribers. This is the
// report-identity status mutation channel the rest of the system consumes.
type Event struct {
	Type    EventType              `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// EventHandler consumes published events.
type EventHandler func(event Event)

// EventService is a lightweight pub/sub bus for job lifecycle events.
type EventService interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler)
	SubscribeAll(handler EventHandler)
}
