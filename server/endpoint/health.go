package endpoint

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/execkit/component"
	"github.com/kbukum/execkit/observability"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// Health returns a handler that reports service health including component
// statuses. Any component that is down turns the response into a 503.
func Health(serviceName, version string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
		}
		sh := observability.CollectHealth(serviceName, version, components)
		c.JSON(sh.HTTPStatus(), sh)
	}
}
