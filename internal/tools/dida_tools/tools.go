package dida_tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/dida365-mcp/internal/dida"
	"github.com/teemow/dida365-mcp/internal/server"
)

// Tool names.
const (
	ToolCreateTask    = "createTask"
	ToolGetTasks      = "getTasks"
	ToolUpdateTask    = "updateTask"
	ToolDeleteTask    = "deleteTask"
	ToolCreateProject = "createProject"
	ToolGetProjects   = "getProjects"
	ToolUpdateProject = "updateProject"
	ToolDeleteProject = "deleteProject"
)

// ErrNotAuthorized is reported by every tool when no token is configured.
var ErrNotAuthorized = errors.New("dida365 access token not configured")

// RegisterDidaTools registers all Dida365 tools with the MCP server
func RegisterDidaTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if s == nil || sc == nil {
		return errors.New("mcp server and server context are required")
	}

	registerTaskTools(s, sc, readOnly)
	registerProjectTools(s, sc, readOnly)
	return nil
}

// getClient returns the API client, or ErrNotAuthorized when it has no token.
func getClient(sc *server.ServerContext) (*dida.Client, error) {
	client := sc.Client()
	if client == nil || !client.HasToken() {
		return nil, ErrNotAuthorized
	}
	return client, nil
}

// errorResult renders err the way every tool reports failures.
func errorResult(err error) *mcp.CallToolResult {
	msg := err.Error()
	switch {
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, dida.ErrNoToken):
		msg += " (run `dida365-mcp auth` to authorize, then restart the server)"
	case dida.IsUnauthorized(err):
		msg += " (the stored token was rejected; run `dida365-mcp refresh` to obtain a new one)"
	}
	return mcp.NewToolResultError("Error: " + msg)
}

// jsonText renders an API response body for a result text.
func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

func resultWithJSON(prefix string, raw json.RawMessage) *mcp.CallToolResult {
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", prefix, jsonText(raw)))
}
