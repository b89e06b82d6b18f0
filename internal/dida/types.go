package dida

// TaskInput is the body for creating or updating a task. Empty fields are
// left out of the request.
type TaskInput struct {
	Title     string `json:"title,omitempty"`
	Content   string `json:"content,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	DueDate   string `json:"dueDate,omitempty"`
	Status    string `json:"status,omitempty"`
	Priority  *int   `json:"priority,omitempty"`
}

// ProjectInput is the body for creating or updating a project.
type ProjectInput struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// TaskFilter narrows a task listing. Zero values do not filter.
type TaskFilter struct {
	ProjectID string
	Status    string
	Limit     int
}

// IsZero reports whether the filter matches everything.
func (f TaskFilter) IsZero() bool {
	return f.ProjectID == "" && f.Status == "" && f.Limit <= 0
}

// Priority returns a pointer to p, for TaskInput.Priority.
func Priority(p int) *int {
	return &p
}
