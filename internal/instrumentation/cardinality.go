package instrumentation

import (
	"strconv"
	"strings"
)

// Cardinality helpers keep label values bounded. Task and project IDs must
// never end up as metric labels.

// PathOther is the label used for routes outside the known set.
const PathOther = "other"

// NormalizeAPIPath collapses resource IDs in a Dida365 API path.
//
// Example:
//
//	NormalizeAPIPath("/tasks")          // "/tasks"
//	NormalizeAPIPath("/tasks/64f0c1")   // "/tasks/{id}"
//	NormalizeAPIPath("/projects/abc/")  // "/projects/{id}"
//	NormalizeAPIPath("")                // "/"
func NormalizeAPIPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}

	parts := strings.Split(trimmed, "/")
	for i := 1; i < len(parts); i += 2 {
		parts[i] = "{id}"
	}
	return "/" + strings.Join(parts, "/")
}

// RoutePath returns path when it is one of the known routes, PathOther otherwise.
func RoutePath(path string, known ...string) string {
	for _, k := range known {
		if path == k {
			return path
		}
	}
	return PathOther
}

// StatusClass reduces an HTTP status code to its class ("2xx", "4xx", ...).
// Zero means the request never got a response.
func StatusClass(code int) string {
	if code <= 0 {
		return "none"
	}
	if code < 100 || code > 599 {
		return StatusUnknownClass
	}
	return strconv.Itoa(code/100) + "xx"
}

// StatusUnknownClass labels status codes outside the HTTP range.
const StatusUnknownClass = "unknown"

// Dida365 API operation names used for metrics and spans.
const (
	OperationListTasks     = "list_tasks"
	OperationCreateTask    = "create_task"
	OperationUpdateTask    = "update_task"
	OperationDeleteTask    = "delete_task"
	OperationListProjects  = "list_projects"
	OperationCreateProject = "create_project"
	OperationUpdateProject = "update_project"
	OperationDeleteProject = "delete_project"
	OperationOpenProjects  = "open_list_projects"
)
