package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zacison/natours-backend/logger"
	"github.com/Zacison/natours-backend/utils"
)

// Pinger reports whether a backing store is reachable.
type Pinger func(ctx context.Context) error

type HealthController struct {
	checks map[string]Pinger
}

func NewHealthController(checks map[string]Pinger) *HealthController {
	return &HealthController{checks: checks}
}

// Check pings every dependency with a short deadline.
func (h *HealthController) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound answers any route without a handler.
func NotFound(c *gin.Context) {
	_ = c.Error(utils.NewNotFound("Can't find " + c.Request.URL.RequestURI() + " on this server!"))
}
