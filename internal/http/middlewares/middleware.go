package middlewares

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sanchey92/checkout-service/internal/http/lib/api/response"
)

const (
	UserCodeHeader = "X-User-Code"
	userCodeKey    = "user_code"
)

func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic", slog.Any("panic", rec),
					slog.String("path", c.Request.URL.Path),
					slog.String("stack", string(debug.Stack())))
				response.Abort(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
			}
		}()
		c.Next()
	}
}

func Logger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		lvl := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			lvl = slog.LevelError
		}
		log.Log(c.Request.Context(), lvl, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}

// UserCode requires the caller identity set by the gateway.
func UserCode() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.TrimSpace(c.GetHeader(UserCodeHeader))
		if code == "" {
			response.Abort(c, http.StatusUnauthorized, response.KindUnauthorized, "missing "+UserCodeHeader+" header")
			return
		}
		c.Set(userCodeKey, code)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) string {
	return c.GetString(userCodeKey)
}
