package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/task-tracker/internal/model"
)

// TaskRepo provides CRUD operations for tasks. All timestamps are UTC.
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

const taskColumns = "id, title, description, status, created_at, due_date, assigned_to_user_id, updated_at"

// Create inserts a task and populates its generated ID and CreatedAt.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	if t.Status == "" {
		t.Status = model.StatusTodo
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO tasks (title, description, status, due_date, assigned_to_user_id) VALUES (?,?,?,?,?)",
		t.Title, t.Description, t.Status, t.DueDate, t.AssignedToUserID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	// Read the row back so CreatedAt reflects the database clock.
	got, err := r.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = got
	return nil
}

// GetByID fetches a single task. Returns sql.ErrNoRows when absent.
func (r *TaskRepo) GetByID(ctx context.Context, id uint64) (model.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id=? LIMIT 1", id))
}

// List returns every task ordered by id.
func (r *TaskRepo) List(ctx context.Context) ([]model.Task, error) {
	return r.scanMany(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY id")
}

// ListByAssignee returns tasks assigned to the given user.
func (r *TaskRepo) ListByAssignee(ctx context.Context, userID uint64) ([]model.Task, error) {
	return r.scanMany(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE assigned_to_user_id=? ORDER BY id", userID)
}

// ListOverdue returns tasks whose due date is in the past and whose
// status is not Done.
func (r *TaskRepo) ListOverdue(ctx context.Context) ([]model.Task, error) {
	return r.scanMany(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE due_date IS NOT NULL AND due_date < UTC_TIMESTAMP() AND status <> ? ORDER BY due_date",
		model.StatusDone)
}

// Update replaces title, description, due date and assignee.
func (r *TaskRepo) Update(ctx context.Context, id uint64, title, description string, dueDate *time.Time, assignedTo uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tasks SET title=?, description=?, due_date=?, assigned_to_user_id=?, updated_at=UTC_TIMESTAMP() WHERE id=?",
		title, description, dueDate, assignedTo, id)
	if err != nil {
		return err
	}
	return noRowsAsErr(res)
}

// UpdateStatus sets the workflow status.
func (r *TaskRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tasks SET status=?, updated_at=UTC_TIMESTAMP() WHERE id=?", status, id)
	if err != nil {
		return err
	}
	return noRowsAsErr(res)
}

// Assign points the task at a new assignee.
func (r *TaskRepo) Assign(ctx context.Context, id, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tasks SET assigned_to_user_id=?, updated_at=UTC_TIMESTAMP() WHERE id=?", userID, id)
	if err != nil {
		return err
	}
	return noRowsAsErr(res)
}

// Delete removes a task row.
func (r *TaskRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id=?", id)
	if err != nil {
		return err
	}
	return noRowsAsErr(res)
}

func scanTask(row *sql.Row) (model.Task, error) {
	var (
		t       model.Task
		due     sql.NullTime
		updated sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.CreatedAt,
		&due, &t.AssignedToUserID, &updated)
	if err != nil {
		return model.Task{}, err
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	if updated.Valid {
		u := updated.Time
		t.UpdatedAt = &u
	}
	return t, nil
}

func (r *TaskRepo) scanMany(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var (
			t       model.Task
			due     sql.NullTime
			updated sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.CreatedAt,
			&due, &t.AssignedToUserID, &updated); err != nil {
			return nil, err
		}
		if due.Valid {
			d := due.Time
			t.DueDate = &d
		}
		if updated.Valid {
			u := updated.Time
			t.UpdatedAt = &u
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
