// Package cmd implements the command-line interface for dida365-mcp.
//
// This package provides the following commands:
//   - serve: Start the MCP server (stdio or streamable HTTP)
//   - auth: Obtain a Dida365 access token through the OAuth authorization-code flow
//   - refresh: Replace the stored access token through the same flow
//   - token: Show what is known about the stored token, optionally checking it against the API
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
