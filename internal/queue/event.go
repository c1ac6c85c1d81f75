// Package queue defines the task-event wire format and the RabbitMQ
// publisher for the task_events fanout exchange.
package queue

// TaskEventType names the mutation that produced an event.
type TaskEventType string

const (
	TaskCreated       TaskEventType = "TaskCreated"
	TaskUpdated       TaskEventType = "TaskUpdated"
	TaskDeleted       TaskEventType = "TaskDeleted"
	TaskAssigned      TaskEventType = "TaskAssigned"
	TaskStatusUpdated TaskEventType = "TaskStatusUpdated"
)

// Envelope is the message published to the task_events exchange. Data
// carries the task snapshot at the moment of mutation, or only the
// identifier for deletions.
type Envelope struct {
	Event TaskEventType `json:"event"`
	Data  any           `json:"data"`
}

// TaskSnapshot is the subset of task fields shipped to analytics. The
// same shape is POSTed to the collector's /analytics/log endpoint.
type TaskSnapshot struct {
	ID               uint64 `json:"id"`
	Title            string `json:"title"`
	Status           string `json:"status"`
	AssignedToUserID uint64 `json:"assignedToUserId"`
}

// DeletedRef is the event payload for TaskDeleted: the row is gone, so
// only the identifier can be carried.
type DeletedRef struct {
	ID uint64 `json:"id"`
}
