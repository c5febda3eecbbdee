package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lalabot/delivery-api/internal/middleware"
	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/service/compartment"
	"github.com/lalabot/delivery-api/internal/service/delivery"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
	"github.com/lalabot/delivery-api/pkg/httputil"
)

type Handler struct {
	service      *delivery.Service
	compartments *compartment.Service
}

func NewHandler(service *delivery.Service, compartments *compartment.Service) *Handler {
	return &Handler{service: service, compartments: compartments}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	deliveries := r.Group("/deliveries")
	{
		deliveries.POST("", h.CreateDelivery)
		deliveries.GET("", h.ListDeliveries)
		deliveries.GET("/:id", h.GetDelivery)
		deliveries.POST("/:id/confirm-files", h.ConfirmFilesPlaced)
		deliveries.POST("/:id/progress", h.AdvanceProgress)
		deliveries.POST("/:id/verify", h.VerifyReceipt)
		deliveries.POST("/:id/receipt", h.ConfirmReceipt)
		deliveries.POST("/:id/cancel", h.CancelDelivery)
	}
	r.GET("/compartments", h.GetBoard)
	r.GET("/history", h.ListHistory)
}

func (h *Handler) CreateDelivery(c *gin.Context) {
	var req model.CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error()))
		return
	}

	created, err := h.service.Create(c.Request.Context(), c.GetString(middleware.ContextUserID), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, created)
}

func (h *Handler) ListDeliveries(c *gin.Context) {
	feed, err := h.service.Feed(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, feed)
}

func (h *Handler) GetDelivery(c *gin.Context) {
	d, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

func (h *Handler) ConfirmFilesPlaced(c *gin.Context) {
	d, err := h.service.ConfirmFilesPlaced(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

// AdvanceProgress is called by the robot, not the mobile clients.
func (h *Handler) AdvanceProgress(c *gin.Context) {
	var req model.AdvanceProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error()))
		return
	}

	d, err := h.service.AdvanceProgress(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

func (h *Handler) VerifyReceipt(c *gin.Context) {
	var req model.VerifyReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error()))
		return
	}

	d, err := h.service.VerifyReceipt(c.Request.Context(), c.Param("id"), req.Code)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

func (h *Handler) ConfirmReceipt(c *gin.Context) {
	d, err := h.service.ConfirmReceipt(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

func (h *Handler) CancelDelivery(c *gin.Context) {
	d, err := h.service.Cancel(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

func (h *Handler) GetBoard(c *gin.Context) {
	board, err := h.compartments.Board(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, board)
}

func (h *Handler) ListHistory(c *gin.Context) {
	records, err := h.service.History(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, records)
}
