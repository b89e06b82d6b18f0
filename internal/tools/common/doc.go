// Package common provides helpers shared by the MCP tool packages: argument
// extraction and the instrumented handler wrapper that records tool metrics,
// spans and audit log entries.
package common
