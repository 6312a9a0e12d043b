package engine

import (
	"context"
	"fmt"

	"github.com/kbukum/execkit/component"
)

type engineComponent struct {
	e *Engine
}

var _ component.Component = (*engineComponent)(nil)

// AsComponent exposes e to a component.Registry: Start initializes the
// engine, Stop shuts it down and Health reports its state.
func AsComponent(e *Engine) component.Component {
	return &engineComponent{e: e}
}

func (c *engineComponent) Name() string { return c.e.cfg.Name }

func (c *engineComponent) Start(ctx context.Context) error { return c.e.Initialize(ctx) }

func (c *engineComponent) Stop(ctx context.Context) error { return c.e.Shutdown(ctx) }

func (c *engineComponent) Health(_ context.Context) component.Health {
	st := c.e.State()
	h := component.Health{Name: c.Name(), Status: component.StatusUnhealthy}
	switch st {
	case StateHealthy:
		h.Status = component.StatusHealthy
	case StateDegraded, StateOverloaded:
		h.Status = component.StatusDegraded
		s := c.e.Stats()
		h.Message = fmt.Sprintf("%s: %d/%d slots free", st, s.AvailableSlots, s.MaxConcurrent)
	default:
		h.Message = string(st)
	}
	return h
}
