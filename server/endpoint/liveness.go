package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var processStart = time.Now()

// LivenessResponse is the /livez body.
type LivenessResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// Liveness returns a handler for K8s liveness probes. It answers as long as
// the process can serve HTTP and never consults components: a failing
// engine makes the service unready, not dead.
func Liveness(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		c.JSON(http.StatusOK, LivenessResponse{
			Status:        "alive",
			Service:       serviceName,
			UptimeSeconds: int64(now.Sub(processStart).Seconds()),
			Timestamp:     now.UTC().Format(time.RFC3339),
		})
	}
}
