// Package instrumentation provides OpenTelemetry instrumentation for the
// dida365-mcp server and the OAuth credential flow.
//
// # Metrics
//
// Server/HTTP metrics:
//   - http_requests_total: HTTP requests by method, route and status
//     (streamable-http transport and the OAuth callback listener)
//   - http_request_duration_seconds: HTTP request durations
//   - mcp_active_sessions: active MCP client sessions by transport
//
// Dida365 API metrics:
//   - dida_api_operations_total: API calls by operation and status
//   - dida_api_operation_duration_seconds: API call durations
//
// OAuth credential flow metrics:
//   - oauth_auth_total: authorization callbacks by mode and result
//   - oauth_token_exchange_duration_seconds: code-for-token exchange durations
//
// MCP tool metrics:
//   - mcp_tool_invocations_total: tool invocations by tool name and status
//   - mcp_tool_duration_seconds: tool execution durations
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>), Dida365 API calls
// (dida.<operation>) and the token exchange (oauth.exchange).
//
// # Configuration
//
// Instrumentation is configured through environment variables:
//   - INSTRUMENTATION_ENABLED: enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: service name (default: dida365-mcp)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_ARGUMENTS: audit log switches
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordAPIOperation(ctx, instrumentation.OperationListTasks, "success", 200, time.Since(start))
//	metrics.RecordToolInvocation(ctx, "getTasks", "success", time.Since(start))
package instrumentation
