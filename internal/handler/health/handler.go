package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/lalabot/delivery-api/internal/store"
)

type Handler struct {
	db    *sqlx.DB
	store store.Store
}

func NewHandler(db *sqlx.DB, s store.Store) *Handler {
	return &Handler{db: db, store: s}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/health")
	{
		group.GET("/live", h.LivenessCheck)
		group.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "store": "ok"}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	// A probe read; absence of the key is still a healthy store.
	if _, err := h.store.Get(ctx, "health_probe"); err != nil && !errors.Is(err, store.ErrNotFound) {
		checks["store"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, checks)
}
