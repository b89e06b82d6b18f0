package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Argument names that identify the resource a tool acts on.
const (
	ArgTaskID    = "taskId"
	ArgProjectID = "projectId"
)

// StringArg returns the trimmed string argument name, or "" when it is absent
// or not a string.
func StringArg(args map[string]any, name string) string {
	v, ok := args[name].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// RequireString returns the named string argument or an error naming it.
func RequireString(args map[string]any, name string) (string, error) {
	v := StringArg(args, name)
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

// IntArg returns the named integer argument. Numbers arrive as float64 from
// JSON; numeric strings are accepted too. ok is false when the argument is
// absent.
func IntArg(args map[string]any, name string) (value int, ok bool, err error) {
	raw, present := args[name]
	if !present || raw == nil {
		return 0, false, nil
	}

	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, true, fmt.Errorf("%s must be an integer", name)
		}
		return int(v), true, nil
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, false, nil
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(v))
		if convErr != nil {
			return 0, true, fmt.Errorf("%s must be an integer", name)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be an integer", name)
	}
}

// ScalarArg returns a string or number argument as a string, so that a
// status may be passed as 0 or "0".
func ScalarArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// ResourceID returns the task or project ID a tool call addresses.
func ResourceID(args map[string]any) string {
	if id := StringArg(args, ArgTaskID); id != "" {
		return id
	}
	return StringArg(args, ArgProjectID)
}

// ResourceType returns "task" or "project" depending on ResourceID.
func ResourceType(args map[string]any) string {
	if StringArg(args, ArgTaskID) != "" {
		return "task"
	}
	if StringArg(args, ArgProjectID) != "" {
		return "project"
	}
	return ""
}
