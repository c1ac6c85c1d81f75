// Package analytics implements the collector service: it records task
// snapshots arriving over the message bus or the HTTP sink and serves
// simple aggregate views over them.
package analytics

import (
	"context"
	"database/sql"
)

// Repo persists task snapshots in the task_analytics table. Every
// received event is appended; the table is a log, not current state.
type Repo struct{ DB *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{DB: db} }

// Insert appends one snapshot row.
func (r *Repo) Insert(ctx context.Context, taskID uint64, title, status string, assignedTo uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO task_analytics (task_id, title, status, assigned_to_user_id) VALUES (?,?,?,?)",
		taskID, title, status, assignedTo)
	return err
}

// Summary aggregates logged events per status.
type Summary struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

// TaskSummary counts logged events, total and per status.
func (r *Repo) TaskSummary(ctx context.Context) (Summary, error) {
	out := Summary{ByStatus: map[string]int{}}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM task_analytics GROUP BY status")
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Summary{}, err
		}
		out.ByStatus[status] = n
		out.Total += n
	}
	return out, rows.Err()
}

// UserLoad is the number of not-Done events logged per assignee.
type UserLoad struct {
	UserID    uint64 `json:"userId"`
	OpenTasks int    `json:"openTasks"`
}

// UserLoads reports open-task event counts per assignee, busiest first.
func (r *Repo) UserLoads(ctx context.Context) ([]UserLoad, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT assigned_to_user_id, COUNT(*) FROM task_analytics WHERE status <> 'Done' GROUP BY assigned_to_user_id ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	loads := []UserLoad{}
	for rows.Next() {
		var l UserLoad
		if err := rows.Scan(&l.UserID, &l.OpenTasks); err != nil {
			return nil, err
		}
		loads = append(loads, l)
	}
	return loads, rows.Err()
}
