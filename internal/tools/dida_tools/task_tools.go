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

// registerTaskTools registers the task tools. Write tools are skipped in
// read-only mode.
func registerTaskTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) {
	getTasksTool := mcp.NewTool(ToolGetTasks,
		mcp.WithDescription("Get list of tasks from Dida365"),
		mcp.WithString("projectId",
			mcp.Description("Filter by project ID"),
		),
		mcp.WithString("status",
			mcp.Description("Filter by status"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Limit number of results"),
		),
	)
	s.AddTool(getTasksTool, common.InstrumentedToolHandlerWithService(ToolGetTasks, instrumentation.OperationListTasks, sc, handleGetTasks(sc)))

	if readOnly {
		return
	}

	createTaskTool := mcp.NewTool(ToolCreateTask,
		mcp.WithDescription("Create a new task in Dida365"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Task title"),
		),
		mcp.WithString("content",
			mcp.Description("Task description"),
		),
		mcp.WithString("projectId",
			mcp.Description("Project ID"),
		),
		mcp.WithString("dueDate",
			mcp.Description("Due date in ISO format"),
		),
		mcp.WithNumber("priority",
			mcp.Description("Priority level (0-5)"),
		),
	)
	s.AddTool(createTaskTool, common.InstrumentedToolHandlerWithService(ToolCreateTask, instrumentation.OperationCreateTask, sc, handleCreateTask(sc)))

	updateTaskTool := mcp.NewTool(ToolUpdateTask,
		mcp.WithDescription("Update an existing task"),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("Task ID to update"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
		mcp.WithString("content",
			mcp.Description("New description"),
		),
		mcp.WithString("status",
			mcp.Description("New status"),
		),
		mcp.WithNumber("priority",
			mcp.Description("New priority"),
		),
	)
	s.AddTool(updateTaskTool, common.InstrumentedToolHandlerWithService(ToolUpdateTask, instrumentation.OperationUpdateTask, sc, handleUpdateTask(sc)))

	deleteTaskTool := mcp.NewTool(ToolDeleteTask,
		mcp.WithDescription("Delete a task"),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("Task ID to delete"),
		),
	)
	s.AddTool(deleteTaskTool, common.InstrumentedToolHandlerWithService(ToolDeleteTask, instrumentation.OperationDeleteTask, sc, handleDeleteTask(sc)))
}

func handleCreateTask(sc *server.ServerContext) common.Handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		title, err := common.RequireString(args, "title")
		if err != nil {
			return errorResult(err), nil
		}
		priority, _, err := common.IntArg(args, "priority")
		if err != nil {
			return errorResult(err), nil
		}

		client, err := getClient(sc)
		if err != nil {
			return errorResult(err), nil
		}

		task, err := client.CreateTask(ctx, dida.TaskInput{
			Title:     title,
			Content:   common.StringArg(args, "content"),
			ProjectID: common.StringArg(args, "projectId"),
			DueDate:   common.StringArg(args, "dueDate"),
			Priority:  dida.Priority(priority),
		})
		if err != nil {
			return errorResult(err), nil
		}
		return resultWithJSON("Task created successfully", task), nil
	}
}

func handleGetTasks(sc *server.ServerContext) common.Handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		limit, _, err := common.IntArg(args, "limit")
		if err != nil {
			return errorResult(err), nil
		}
		filter := dida.TaskFilter{
			ProjectID: common.StringArg(args, "projectId"),
			Status:    common.ScalarArg(args, "status"),
			Limit:     limit,
		}

		client, err := getClient(sc)
		if err != nil {
			return errorResult(err), nil
		}

		tasks, err := client.ListTasks(ctx)
		if err != nil {
			return errorResult(err), nil
		}
		tasks, err = dida.FilterTasks(tasks, filter)
		if err != nil {
			return errorResult(err), nil
		}
		return resultWithJSON("Tasks retrieved", tasks), nil
	}
}

func handleUpdateTask(sc *server.ServerContext) common.Handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		taskID, err := common.RequireString(args, common.ArgTaskID)
		if err != nil {
			return errorResult(err), nil
		}
		in := dida.TaskInput{
			Title:   common.StringArg(args, "title"),
			Content: common.StringArg(args, "content"),
			Status:  common.ScalarArg(args, "status"),
		}
		priority, ok, err := common.IntArg(args, "priority")
		if err != nil {
			return errorResult(err), nil
		}
		if ok {
			in.Priority = dida.Priority(priority)
		}

		client, err := getClient(sc)
		if err != nil {
			return errorResult(err), nil
		}

		task, err := client.UpdateTask(ctx, taskID, in)
		if err != nil {
			return errorResult(err), nil
		}
		return resultWithJSON("Task updated successfully", task), nil
	}
}

func handleDeleteTask(sc *server.ServerContext) common.Handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := common.RequireString(request.GetArguments(), common.ArgTaskID)
		if err != nil {
			return errorResult(err), nil
		}

		client, err := getClient(sc)
		if err != nil {
			return errorResult(err), nil
		}

		if err := client.DeleteTask(ctx, taskID); err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}
