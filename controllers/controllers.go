package controllers

import (
	"time"

	"github.com/Maxapelquist/preparty-social-hub/middleware"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"

	"github.com/gin-gonic/gin"
)

// bind decodes the request body (JSON or form) into dst. On failure the
// error is queued for the error handler and false is returned.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBind(dst); err != nil {
		c.Error(errs.Invalid("invalid request body: %v", err))
		return false
	}
	return true
}

func currentUser(c *gin.Context) string {
	return middleware.UserID(c)
}

// timezone reads the IANA zone used for day grouping from ?tz=, UTC when
// missing or unknown.
func timezone(c *gin.Context) *time.Location {
	if tz := c.Query("tz"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.UTC
}
