package utils

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Maxapelquist/preparty-social-hub/services/errs"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error a handler attached with c.Error.
// Errors without a public kind become a 500 with a generic message.
func ErrorHandler(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := errs.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("request failed",
				slog.String("method", c.Request.Method),
				slog.String("path", c.FullPath()),
				slog.Any("error", err))
			c.JSON(status, gin.H{"error": "internal server error"})
			return
		}

		var e *errs.Error
		msg := err.Error()
		if errors.As(err, &e) {
			msg = e.Msg
		}
		c.JSON(status, gin.H{"error": msg})
	}
}
