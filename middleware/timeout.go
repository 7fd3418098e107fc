package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zacison/natours-backend/utils"
)

// Timeout bounds the request context. Store calls made with it give up at
// the deadline and the request fails with a Timeout error.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			abort(c, utils.NewTimeout(ctx.Err()))
		}
	}
}
