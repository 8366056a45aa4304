package notifications

import (
	"net/http"
	"strconv"
	"strings"

	"zudlik/internal/middleware"
	"zudlik/internal/models"
	"zudlik/internal/response"
	"zudlik/internal/services"

	"go.uber.org/zap"
)

// NotificationController handles the pull-only notification inbox.
type NotificationController struct {
	notifications services.NotificationService
	logger        *zap.Logger
	builder       *response.Builder
}

// NewNotificationController creates the notification controller.
func NewNotificationController(notifications services.NotificationService, logger *zap.Logger, builder *response.Builder) *NotificationController {
	return &NotificationController{
		notifications: notifications,
		logger:        logger,
		builder:       builder,
	}
}

// ListNotifications handles GET /api/v1/notifications.
func (c *NotificationController) ListNotifications(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}

	inbox, err := c.notifications.ListNotifications(r.Context(), authCtx.UserID, parsePagination(r))
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "notifications loaded", inbox)
}

// GetUnreadCount handles GET /api/v1/notifications/unread-count.
func (c *NotificationController) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}

	count, err := c.notifications.GetUnreadCount(r.Context(), authCtx.UserID)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "unread count loaded", map[string]int64{"unread_count": count})
}

// MarkAsRead handles PUT /api/v1/notifications/{id}/read.
func (c *NotificationController) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}
	notificationID, err := extractIDFromPath(r.URL.Path, 2)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid notification id")
		return
	}

	if err := c.notifications.MarkAsRead(r.Context(), notificationID, authCtx.UserID); err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "notification marked as read", nil)
}

// MarkAllAsRead handles PUT /api/v1/notifications/read-all.
func (c *NotificationController) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}

	updated, err := c.notifications.MarkAllAsRead(r.Context(), authCtx.UserID)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "notifications marked as read", map[string]int64{"updated": updated})
}

// DeleteNotification handles DELETE /api/v1/notifications/{id}.
func (c *NotificationController) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}
	notificationID, err := extractIDFromPath(r.URL.Path, 2)
	if err != nil {
		c.builder.WriteValidationError(w, r, "invalid notification id")
		return
	}

	if err := c.notifications.DeleteNotification(r.Context(), notificationID, authCtx.UserID); err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteNoContent(w)
}

func extractIDFromPath(path string, position int) (int64, error) {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	segments := strings.Split(strings.Trim(trimmed, "/"), "/")
	if position < 1 || position > len(segments) {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(segments[position-1], 10, 64)
}

func parsePagination(r *http.Request) models.PaginationParams {
	params := models.PaginationParams{}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		params.Page = page
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		params.Limit = limit
	}
	return params
}
