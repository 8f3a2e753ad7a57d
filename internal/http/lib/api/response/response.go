package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanchey92/checkout-service/internal/domain/model"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const KindUnauthorized = "UNAUTHORIZED"

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func Abort(c *gin.Context, status int, kind, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: kind, Message: msg})
}

// Error writes err with the status of its business kind. Anything else is
// logged and answered with a generic 500.
func Error(c *gin.Context, log *slog.Logger, err error) {
	var e *model.Error
	if !errors.As(err, &e) {
		log.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Any("error", err))
		Abort(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	c.AbortWithStatusJSON(StatusOf(e.Kind), ErrorResponse{
		Error:   string(e.Kind),
		Message: e.Message,
		Details: e.Product,
	})
}

func StatusOf(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindInsufficientStock, model.KindConflict:
		return http.StatusConflict
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
