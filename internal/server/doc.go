// Package server wires the fetch proxy behind its HTTP surface.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (request IDs, CORS, rate limiting, metrics, recovery)
//   - Optional bearer-token gate on the /api group
//   - The validate/fetch/sanitize pipeline and metadata parser
//
// Server Lifecycle:
//  1. Load configuration from environment (plus optional YAML overlay)
//  2. Initialize logger (production or development)
//  3. Build the fetch policy, validator and fetcher
//  4. Setup HTTP routes and middleware
//  5. Start HTTP server
//  6. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv := server.NewServer(cfg, log)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
