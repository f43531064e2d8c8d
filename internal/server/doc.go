// Package server provides the shared state behind the MCP tool handlers:
// lazily built Google API clients, health endpoints for Kubernetes probes,
// and the dedicated Prometheus metrics listener.
//
// ServerContext builds each Google service client at most once from the
// credential store and hands the cached client to every subsequent tool
// invocation, regardless of transport.
package server
