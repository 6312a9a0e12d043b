// Package observability provides OpenTelemetry tracing and metrics for the
// execution engine, plus service health types.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanExecute)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, &meterCfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("execkit"))
//	eng := engine.New(cfg, engine.WithMetrics(metrics))
//
// Health:
//
//	health := observability.CollectHealth("execbench", version.GetShortVersion(), registry.HealthAll(ctx))
//	c.JSON(health.HTTPStatus(), health)
package observability
