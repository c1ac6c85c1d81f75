package analytics

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-tracker/internal/queue"
)

// Handler exposes the collector's HTTP surface: the synchronous log
// sink the API server forwards to, and read-side aggregates.
type Handler struct {
	Repo   *Repo
	Logger *slog.Logger
}

func NewHandler(repo *Repo, logger *slog.Logger) *Handler {
	return &Handler{Repo: repo, Logger: logger}
}

// LogEvent records a snapshot delivered over HTTP.
func (h *Handler) LogEvent(c echo.Context) error {
	var snap queue.TaskSnapshot
	if err := c.Bind(&snap); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Repo.Insert(c.Request().Context(), snap.ID, snap.Title, snap.Status, snap.AssignedToUserID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "insert failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}

// TaskSummary returns event totals per status.
func (h *Handler) TaskSummary(c echo.Context) error {
	s, err := h.Repo.TaskSummary(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, s)
}

// UserLoad returns open-task counts per assignee.
func (h *Handler) UserLoad(c echo.Context) error {
	loads, err := h.Repo.UserLoads(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, loads)
}

// Register wires the collector routes.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/analytics/log", h.LogEvent)
	e.GET("/analytics/task-summary", h.TaskSummary)
	e.GET("/analytics/user-load", h.UserLoad)
}
