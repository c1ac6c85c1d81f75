package model

import "time"

// Task statuses. Status transitions are unrestricted; the value is a
// plain workflow label, not a state machine.
const (
	StatusTodo       = "Todo"
	StatusInProgress = "InProgress"
	StatusDone       = "Done"
)

// Task mirrors the `tasks` table.
//
// Fields:
//  ID               – primary key identifier of the task.
//  Title            – short summary line.
//  Description      – free-form body text.
//  Status           – workflow label (Todo, InProgress, Done).
//  CreatedAt        – timestamp of creation (UTC).
//  DueDate          – optional deadline; tasks past it and not Done are overdue.
//  AssignedToUserID – user the task is currently assigned to.
//  UpdatedAt        – timestamp of last mutation (null until first update).
type Task struct {
	ID               uint64     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	AssignedToUserID uint64     `json:"assignedToUserId"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}
