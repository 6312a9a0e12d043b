package observability

import (
	"net/http"
	"time"

	"github.com/kbukum/execkit/component"
)

// HealthStatus is the rolled-up status reported on /healthz.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// StatusOf maps a component status onto the reported one. Anything not
// healthy or degraded is down.
func StatusOf(s component.HealthStatus) HealthStatus {
	switch s {
	case component.StatusHealthy:
		return HealthStatusUp
	case component.StatusDegraded:
		return HealthStatusDegraded
	default:
		return HealthStatusDown
	}
}

// Health is one component's entry in a ServiceHealth.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// ServiceHealth is the health report of a process: the worst component
// status wins.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth creates a ServiceHealth with status up.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service:   service,
		Status:    HealthStatusUp,
		Version:   version,
		CheckedAt: time.Now().UTC(),
	}
}

// CollectHealth builds a report from component health results.
func CollectHealth(service, version string, components []component.Health) *ServiceHealth {
	sh := NewServiceHealth(service, version)
	for _, ch := range components {
		sh.AddComponent(Health{Name: ch.Name, Status: StatusOf(ch.Status), Message: ch.Message})
	}
	return sh
}

// AddComponent appends a component result and lowers the overall status
// when the component is worse.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)
	if severity(ch.Status) > severity(sh.Status) {
		sh.Status = ch.Status
	}
}

// HTTPStatus is 503 when the service is down and 200 otherwise; a degraded
// service keeps serving.
func (sh *ServiceHealth) HTTPStatus() int {
	if sh.Status == HealthStatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func severity(s HealthStatus) int {
	switch s {
	case HealthStatusUp:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}
