package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lalabot/delivery-api/internal/middleware"
	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/pkg/httputil"
)

type Handler struct {
	notifications repository.NotificationRepository
}

func NewHandler(notifications repository.NotificationRepository) *Handler {
	return &Handler{notifications: notifications}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
		notifications.POST("/:key/read", h.MarkRead)
	}
}

func (h *Handler) ListNotifications(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	list, err := h.notifications.ListForUser(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, list)
}

func (h *Handler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if err := h.notifications.MarkRead(c.Request.Context(), userID, c.Param("key")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"read": true})
}
