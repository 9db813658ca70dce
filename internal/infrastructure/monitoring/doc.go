/*
Package monitoring provides Prometheus metrics for the fetch proxy.

# Overview

Tracks inbound HTTP traffic and the fetch pipeline itself: terminal outcomes
by error code, end-to-end durations, sanitized response sizes and redirect
hop counts.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record a fetch outcome
	metrics.RecordFetch("ok", duration, bytes, hops)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
