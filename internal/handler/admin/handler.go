package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lalabot/delivery-api/internal/middleware"
	"github.com/lalabot/delivery-api/internal/service/analytics"
	"github.com/lalabot/delivery-api/pkg/httputil"
)

type Handler struct {
	service     *analytics.Service
	adminEmails []string
}

func NewHandler(service *analytics.Service, adminEmails []string) *Handler {
	return &Handler{service: service, adminEmails: adminEmails}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/admin", middleware.RequireAdmin(h.adminEmails))
	{
		group.GET("/analytics", h.Overview)
	}
	r.GET("/users/me/stats", h.MyStats)
}

func (h *Handler) Overview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, overview)
}

func (h *Handler) MyStats(c *gin.Context) {
	stats, err := h.service.ForUser(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, stats)
}
