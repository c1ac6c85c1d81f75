package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-tracker/internal/model"
	"github.com/iliyamo/task-tracker/internal/queue"
	"github.com/iliyamo/task-tracker/internal/repository"
	"github.com/iliyamo/task-tracker/internal/service"
)

// TaskHandler implements the task CRUD endpoints. Every successful
// mutation fans out through the dispatcher after the store write has
// committed; fanout failures never change the HTTP response.
type TaskHandler struct {
	Tasks      *repository.TaskRepo
	Dispatcher *service.Dispatcher
}

func NewTaskHandler(tasks *repository.TaskRepo, d *service.Dispatcher) *TaskHandler {
	return &TaskHandler{Tasks: tasks, Dispatcher: d}
}

type taskCreateReq struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	DueDate          *time.Time `json:"dueDate"`
	AssignedToUserID uint64     `json:"assignedToUserId"`
}

type taskUpdateReq = taskCreateReq

type taskAssignReq struct {
	UserID uint64 `json:"userId"`
}

// List returns all tasks. Sits behind the response cache.
func (h *TaskHandler) List(c echo.Context) error {
	tasks, err := h.Tasks.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, tasks)
}

// Get returns one task by id.
func (h *TaskHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	task, err := h.Tasks.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, task)
}

// Create inserts a task and emits TaskCreated.
func (h *TaskHandler) Create(c echo.Context) error {
	var req taskCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	task := model.Task{
		Title:            title,
		Description:      req.Description,
		DueDate:          req.DueDate,
		AssignedToUserID: req.AssignedToUserID,
	}
	if err := h.Tasks.Create(ctx, &task); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create task failed"})
	}

	h.Dispatcher.TaskChanged(ctx, queue.TaskCreated, snapshot(task))
	return c.JSON(http.StatusCreated, task)
}

// Update replaces the editable fields and emits TaskUpdated.
func (h *TaskHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req taskUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Tasks.Update(ctx, id, strings.TrimSpace(req.Title), req.Description, req.DueDate, req.AssignedToUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	h.fanoutCurrent(ctx, queue.TaskUpdated, id)
	return c.NoContent(http.StatusNoContent)
}

// Delete removes the task and emits TaskDeleted carrying only the id.
func (h *TaskHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}

	h.Dispatcher.TaskDeleted(ctx, id)
	return c.NoContent(http.StatusNoContent)
}

// Assign points the task at a new assignee and emits TaskAssigned.
func (h *TaskHandler) Assign(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req taskAssignReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Tasks.Assign(ctx, id, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "assign failed"})
	}

	h.fanoutCurrent(ctx, queue.TaskAssigned, id)
	return c.JSON(http.StatusOK, echo.Map{"message": "task assigned successfully"})
}

// UpdateStatus sets the workflow status and emits TaskStatusUpdated.
// The request body is a bare JSON string (e.g. `"Done"`), matching the
// browser client.
func (h *TaskHandler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var status string
	if err := json.NewDecoder(c.Request().Body).Decode(&status); err != nil || strings.TrimSpace(status) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Tasks.UpdateStatus(ctx, id, strings.TrimSpace(status)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	h.fanoutCurrent(ctx, queue.TaskStatusUpdated, id)
	return c.NoContent(http.StatusNoContent)
}

// My returns the tasks assigned to the caller.
func (h *TaskHandler) My(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tasks, err := h.Tasks.ListByAssignee(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, tasks)
}

// Overdue returns tasks past their due date that are not Done.
func (h *TaskHandler) Overdue(c echo.Context) error {
	tasks, err := h.Tasks.ListOverdue(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, tasks)
}

// fanoutCurrent reads the task back after a partial update so the event
// payload is the post-mutation snapshot. If the re-read fails the event
// is skipped; the mutation itself already succeeded.
func (h *TaskHandler) fanoutCurrent(ctx context.Context, event queue.TaskEventType, id uint64) {
	task, err := h.Tasks.GetByID(ctx, id)
	if err != nil {
		return
	}
	h.Dispatcher.TaskChanged(ctx, event, snapshot(task))
}

func snapshot(t model.Task) queue.TaskSnapshot {
	return queue.TaskSnapshot{
		ID:               t.ID,
		Title:            t.Title,
		Status:           t.Status,
		AssignedToUserID: t.AssignedToUserID,
	}
}
