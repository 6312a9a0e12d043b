// Package component defines the lifecycle contract shared by the long-lived
// parts of an execkit service and a Registry that drives it.
//
// Components are started in registration order and stopped in reverse.
// Func adapts a pair of start/stop functions, which is enough for things
// like telemetry providers that have no state of their own to report.
package component
