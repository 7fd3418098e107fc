package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Zacison/natours-backend/config"
	"github.com/Zacison/natours-backend/logger"
	"github.com/Zacison/natours-backend/utils"
)

// ErrorHandler is the only place error responses are written. Handlers
// and middleware record failures with c.Error and return.
func ErrorHandler(env string) gin.HandlerFunc {
	production := env == config.EnvProduction
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		appErr, ok := utils.AsAppError(last.Err)
		if !ok {
			appErr = utils.NewInternal(last.Err)
		}

		if !appErr.Operational() {
			logger.ErrorContext(c.Request.Context(), "unhandled error",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", appErr.Error(),
			)
		}

		if production {
			writeProduction(c, appErr)
			return
		}
		writeDevelopment(c, appErr)
	}
}

func writeProduction(c *gin.Context, appErr *utils.AppError) {
	if !appErr.Operational() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Something went very wrong",
		})
		return
	}
	c.JSON(appErr.StatusCode, gin.H{
		"status":  appErr.Status(),
		"message": appErr.Message,
	})
}

func writeDevelopment(c *gin.Context, appErr *utils.AppError) {
	c.JSON(appErr.StatusCode, gin.H{
		"status":  appErr.Status(),
		"message": appErr.Message,
		"error": gin.H{
			"kind":        appErr.Kind.String(),
			"statusCode":  appErr.StatusCode,
			"operational": appErr.Operational(),
			"chain":       causeChain(appErr),
		},
	})
}

func causeChain(err error) []string {
	var chain []string
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		chain = append(chain, e.Error())
	}
	return chain
}
