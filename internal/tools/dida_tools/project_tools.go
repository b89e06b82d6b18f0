package dida_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/dida365-mcp/internal/dida"
	"github.com/teemow/dida365-mcp/internal/instrumentation"
	"github.com/teemow/dida365-mcp/internal/server"
	"github.com/teemow/dida365-mcp/internal/tools/common"
)

// registerProjectTools registers the project tools. Write tools are skipped in
// read-only mode.
func registerProjectTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) {
	getProjectsTool := mcp.NewTool(ToolGetProjects,
		mcp.WithDescription("Get list of projects"),
	)
	s.AddTool(getProjectsTool, common.InstrumentedToolHandlerWithService(ToolGetProjects, instrumentation.OperationListProjects, sc, handleGetProjects(sc)))

	if readOnly {
		return
	}

	createProjectTool := mcp.NewTool(ToolCreateProject,
		mcp.WithDescription("Create a new project"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Project name"),
		),
		mcp.WithString("description",
			mcp.Description("Project description"),
		),
		mcp.WithString("color",
			mcp.Description("Project color"),
		),
	)
	s.AddTool(createProjectTool, common.InstrumentedToolHandlerWithService(ToolCreateProject, instrumentation.OperationCreateProject, sc, handleCreateProject(sc)))

	updateProjectTool := mcp.NewTool(ToolUpdateProject,
		mcp.WithDescription("Update an existing project"),
		mcp.WithString("projectId",
			mcp.Required(),
			mcp.Description("Project ID to update"),
		),
		mcp.WithString("name",
			mcp.Description("New project name"),
		),
		mcp.WithString("description",
			mcp.Description("New project description"),
		),
	)
	s.AddTool(updateProjectTool, common.InstrumentedToolHandlerWithService(ToolUpdateProject, instrumentation.OperationUpdateProject, sc, handleUpdateProject(sc)))

	deleteProjectTool := mcp.NewTool(ToolDeleteProject,
		mcp.WithDescription("Delete a project"),
		mcp.WithString("projectId",
			mcp.Required(),
			mcp.Description("Project ID to delete"),
		),
	)
	s.AddTool(deleteProjectTool, common.InstrumentedToolHandlerWithService(ToolDeleteProject, instrumentation.OperationDeleteProject, sc, handleDeleteProject(sc)))
}

func handleCreateProject(sc *server.ServerContext) common.Handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		name, err := common.RequireString(args, "name")
		if err != nil {
			return errorResult(err), nil
		}

		client, err := getClient(sc)
		if err != nil {
			return errorResult(err), nil
		}

		project, err := client.CreateProject(ctx, dida.ProjectInput{
			Name:        name,
			Description: common.StringArg(args, "description"),
			Color:       common.StringArg(args, "color"),
		})
		if err != nil {
			return errorResult(err), nil
		}
		return resultWithJSON("Project created successfully", project), nil
	}
}

func handleGetProjects(sc *server.ServerContext) common.Handler {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := getClient(sc)
		if err != nil {
			return errorResult(err), nil
		}

		projects, err := client.ListProjects(ctx)
		if err != nil {
			return errorResult(err), nil
		}
		return resultWithJSON("Projects retrieved", projects), nil
	}
}

func handleUpdateProject(sc *server.ServerContext) common.Handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		projectID, err := common.RequireString(args, common.ArgProjectID)
		if err != nil {
			return errorResult(err), nil
		}

		client, err := getClient(sc)
		if err != nil {
			return errorResult(err), nil
		}

		project, err := client.UpdateProject(ctx, projectID, dida.ProjectInput{
			Name:        common.StringArg(args, "name"),
			Description: common.StringArg(args, "description"),
		})
		if err != nil {
			return errorResult(err), nil
		}
		return resultWithJSON("Project updated successfully", project), nil
	}
}

func handleDeleteProject(sc *server.ServerContext) common.Handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := common.RequireString(request.GetArguments(), common.ArgProjectID)
		if err != nil {
			return errorResult(err), nil
		}

		client, err := getClient(sc)
		if err != nil {
			return errorResult(err), nil
		}

		if err := client.DeleteProject(ctx, projectID); err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText("Project deleted successfully"), nil
	}
}
