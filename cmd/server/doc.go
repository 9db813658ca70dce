// Package main is the entry point for the Metascope fetch proxy.
//
// The server exposes a single fetch capability over REST: clients submit a
// URL, the proxy validates it against the SSRF policy, follows a bounded
// redirect chain and returns the sanitized head plus parsed metadata.
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML overlay via CONFIG_FILE
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Default port from config
//	./server
//
//	# Explicit port
//	./server -port 9000
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
