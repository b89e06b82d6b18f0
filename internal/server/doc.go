// Package server provides the MCP server context and the HTTP side of the
// dida365-mcp server.
//
// ServerContext carries the Dida365 API client, the tool metrics and the
// audit logger to every tool handler.
//
// HTTPServer exposes the MCP server over the streamable HTTP transport on
// /mcp, next to /healthz, /readyz and /healthz/detailed. MetricsServer serves
// Prometheus metrics on a separate port when the prometheus exporter is
// configured.
package server
