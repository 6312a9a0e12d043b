package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/execkit/component"
	"github.com/kbukum/execkit/engine"
	apperrors "github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/observability"
	"github.com/kbukum/execkit/server"
	"github.com/kbukum/execkit/server/endpoint"
	"github.com/kbukum/execkit/version"
)

func newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an engine over HTTP",
		Long: `Serve starts an engine behind an HTTP server. Synthetic operations are
executed through /execute and /batch; /stats, /metrics and the probe
endpoints report the engine's state.`,
		Example: `  execbench serve --port 9090
  curl 'localhost:9090/execute/fetch_item?key=7&latency=50ms'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			log := newLogger(cfg)

			svc, err := newService(cfg, log)
			if err != nil {
				return err
			}
			return svc.run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overrides server.port")
	return cmd
}

// service wires the engine, telemetry and HTTP server into one registry.
type service struct {
	cfg      *Config
	log      *logger.Logger
	engine   *engine.Engine
	server   *server.Server
	registry *component.Registry
	gatherer *prometheus.Registry
}

func newService(cfg *Config, log *logger.Logger) (*service, error) {
	// Instruments created on the global meter are forwarded to the provider
	// installed once the meter component starts.
	metrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return nil, err
	}

	e := engine.New(cfg.Engine,
		engine.WithLogger(log.WithComponent("engine")),
		engine.WithMetrics(metrics),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		engine.NewCollector(e, ""),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := &service{
		cfg:      cfg,
		log:      log,
		engine:   e,
		server:   server.New(cfg.Server, log),
		registry: component.NewRegistry(),
		gatherer: reg,
	}
	svc.registry.SetStopTimeout(cfg.Engine.ShutdownTimeout)

	if cfg.Telemetry.Enabled {
		for _, c := range svc.telemetryComponents() {
			if err := svc.registry.Register(c); err != nil {
				return nil, err
			}
		}
	}
	if err := svc.registry.Register(engine.AsComponent(e)); err != nil {
		return nil, err
	}
	if err := svc.registry.Register(server.NewComponent(svc.server)); err != nil {
		return nil, err
	}

	svc.routes()
	return svc, nil
}

func (s *service) telemetryComponents() []component.Component {
	t := s.cfg.Telemetry
	info := version.Get()

	var mp *sdkmetric.MeterProvider
	meter := component.NewFunc("meter", func(ctx context.Context) error {
		mc := observability.DefaultMeterConfig(s.cfg.Name)
		mc.ServiceVersion = info.Version
		mc.Environment = s.cfg.Environment
		if t.Endpoint != "" {
			mc.Endpoint = t.Endpoint
		}
		mc.Insecure = t.Insecure
		if t.Interval > 0 {
			mc.Interval = t.Interval
		}
		var err error
		mp, err = observability.InitMeter(ctx, &mc)
		return err
	}).WithStop(func(ctx context.Context) error { return mp.Shutdown(ctx) })

	var tp *sdktrace.TracerProvider
	tracer := component.NewFunc("tracer", func(ctx context.Context) error {
		tc := observability.DefaultTracerConfig(s.cfg.Name)
		tc.ServiceVersion = info.Version
		tc.Environment = s.cfg.Environment
		if t.Endpoint != "" {
			tc.Endpoint = t.Endpoint
		}
		tc.Insecure = t.Insecure
		if t.SampleRate > 0 {
			tc.SampleRate = t.SampleRate
		}
		var err error
		tp, err = observability.InitTracer(ctx, &tc)
		return err
	}).WithStop(func(ctx context.Context) error { return tp.Shutdown(ctx) })

	return []component.Component{meter, tracer}
}

func (s *service) routes() {
	r := s.server.Router()
	health := endpoint.HealthChecker(s.registry.HealthAll)

	r.GET("/healthz", endpoint.Health(s.cfg.Name, version.Get().Version, health))
	r.GET("/readyz", endpoint.Readiness(s.cfg.Name, health))
	r.GET("/livez", endpoint.Liveness(s.cfg.Name))
	r.GET("/version", endpoint.Version())
	r.GET("/metrics", endpoint.Metrics(s.gatherer))
	r.GET("/stats", func(c *gin.Context) { server.RespondOK(c, s.engine.Stats()) })
	r.GET("/execute/:name", s.handleExecute)
	r.POST("/batch", s.handleBatch)
}

// run starts every component, blocks until ctx is done and stops them in
// reverse order.
func (s *service) run(ctx context.Context) error {
	info := version.Get()
	s.log.Info("Starting execbench", info.Fields())

	if err := s.registry.StartAll(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return fmt.Errorf("start: %w", joinStop(err, s.registry.StopAll(stopCtx)))
	}
	s.log.Info("Serving", logger.Fields("addr", s.server.Addr()))

	<-ctx.Done()
	s.log.Info("Shutting down", logger.Fields("cause", context.Cause(ctx).Error()))

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Engine.ShutdownTimeout+s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return s.registry.StopAll(stopCtx)
}

func joinStop(startErr, stopErr error) error {
	if stopErr == nil {
		return startErr
	}
	return fmt.Errorf("%w (stop: %w)", startErr, stopErr)
}

// syntheticRequest describes one synthetic operation.
type syntheticRequest struct {
	Name     string        `json:"name" form:"-" binding:"required"`
	Key      string        `json:"key" form:"key"`
	Type     string        `json:"type" form:"type" binding:"omitempty,oneof=cpu_bound io_bound network_heavy memory_bound mixed"`
	Priority int           `json:"priority" form:"priority"`
	Latency  time.Duration `json:"latency" form:"latency" binding:"gte=0"`
	Fail     bool          `json:"fail" form:"fail"`
}

func (r syntheticRequest) op() engine.Operation {
	w := workload{latency: r.Latency}
	fn := w.work
	if r.Fail {
		fn = func(ctx context.Context) (any, error) {
			if _, err := w.work(ctx); err != nil {
				return nil, err
			}
			return nil, errSynthetic
		}
	}
	if r.Key == "" {
		return engine.Op(r.Name, fn)
	}
	return engine.Op(r.Name, fn, r.Key)
}

func (r syntheticRequest) taskType() engine.TaskType {
	if r.Type == "" {
		return engine.TaskMixed
	}
	return engine.TaskType(r.Type)
}

func (s *service) handleExecute(c *gin.Context) {
	req := syntheticRequest{Name: c.Param("name")}
	if err := c.ShouldBindQuery(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("query", err.Error()))
		return
	}

	v, err := s.engine.Execute(c.Request.Context(), req.op(),
		engine.WithTaskType(req.taskType()),
		engine.WithPriority(req.Priority),
		engine.WithMetadata("request_id", c.GetHeader("X-Request-Id")),
	)
	if err != nil {
		server.RespondWithError(c, engine.ToAppError(err))
		return
	}
	server.RespondOK(c, v)
}

type batchResultBody struct {
	Value any                      `json:"value,omitempty"`
	Error *apperrors.ErrorResponse `json:"error,omitempty"`
}

func (s *service) handleBatch(c *gin.Context) {
	var reqs []syntheticRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	items := make([]engine.BatchItem, len(reqs))
	for i, r := range reqs {
		items[i] = engine.BatchItem{Op: r.op(), Type: r.taskType(), Priority: r.Priority}
	}

	results := s.engine.ExecuteBatch(c.Request.Context(), items)
	body := make([]batchResultBody, len(results))
	for i, res := range results {
		if res.Err != nil {
			resp := engine.ToAppError(res.Err).ToResponse()
			body[i].Error = &resp
			continue
		}
		body[i].Value = res.Value
	}
	c.JSON(http.StatusOK, server.DataResponse{Data: body})
}
