// Package logger provides structured logging using zerolog.
//
// It supports JSON and console output, log level configuration and
// component-scoped loggers with structured fields. Loggers enriched with a
// context carry the active OpenTelemetry trace and span IDs.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("engine")
//	log.Info("operation completed", logger.Fields(logger.FieldOperation, "fetch_user"))
package logger
