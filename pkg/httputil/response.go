package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lalabot/delivery-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError maps a domain error to an HTTP response.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status = statusFor(appErr.Code)
		message = appErr.Message
	}

	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    status,
			Message: message,
		},
	})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrValidation:
		return http.StatusBadRequest
	case apperrors.ErrInvalidTransition, apperrors.ErrNoCompartmentAvailable, apperrors.ErrConflict:
		return http.StatusConflict
	case apperrors.ErrCodeMismatch:
		return http.StatusForbidden
	case apperrors.ErrCodeLocked:
		return http.StatusTooManyRequests
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrRemoteUnavailable:
		return http.StatusBadGateway
	case apperrors.ErrTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrInconsistentState:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
