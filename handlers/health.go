package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessFunc reports per-dependency readiness.
type ReadinessFunc func() map[string]bool

// RegisterHealth registers /health (liveness) and /ready. The service is ready
// when every dependency reported by ready is true.
func RegisterHealth(r gin.IRoutes, ready ReadinessFunc) {
	started := time.Now()

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{}
		if ready != nil {
			deps = ready()
		}
		ok := true
		for _, v := range deps {
			ok = ok && v
		}
		uptime := time.Since(started).String()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
	})
}
