// Package server runs the HTTP surface of an execkit service on Gin.
//
// Middleware from server/middleware wraps the whole handler, so it applies
// to every route. Endpoints from server/endpoint cover health, readiness,
// liveness, build version and Prometheus metrics.
package server
