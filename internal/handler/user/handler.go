package user

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lalabot/delivery-api/internal/middleware"
	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/service/user"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
	"github.com/lalabot/delivery-api/pkg/httputil"
)

type Handler struct {
	service *user.Service
}

func NewHandler(service *user.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.GET("/me", h.GetProfile)
		users.GET("/search", h.SearchUsers)
		users.PUT("/me/avatar", h.UpdateAvatar)
	}
}

func (h *Handler) GetProfile(c *gin.Context) {
	u, err := h.service.Get(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{
		"user":          u.Public(),
		"avatar_source": user.AvatarSource(u),
	})
}

// SearchUsers backs the receiver picker on the create-delivery screen.
func (h *Handler) SearchUsers(c *gin.Context) {
	limit := 5
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			httputil.RespondWithError(c, apperrors.Validation("invalid limit"))
			return
		}
		limit = parsed
	}

	matches, err := h.service.Search(c.Request.Context(),
		c.GetString(middleware.ContextUserID), c.Query("q"), limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, matches)
}

func (h *Handler) UpdateAvatar(c *gin.Context) {
	var req model.UpdateAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error()))
		return
	}

	u, err := h.service.UpdateAvatar(c.Request.Context(), c.GetString(middleware.ContextUserID), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{
		"user":          u.Public(),
		"avatar_source": user.AvatarSource(u),
	})
}
