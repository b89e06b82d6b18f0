package dida

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taskListing = `[
	{"id":"t1","projectId":"p1","status":0,"title":"a"},
	{"id":"t2","projectId":"p2","status":2,"title":"b"},
	{"id":"t3","projectId":"p1","status":2,"title":"c"},
	{"id":"t4","projectId":"p1","status":0,"title":"d"}
]`

func taskIDs(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	var tasks []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &tasks))
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func TestFilterTasks(t *testing.T) {
	tests := []struct {
		name   string
		filter TaskFilter
		want   []string
	}{
		{name: "no filter", filter: TaskFilter{}, want: []string{"t1", "t2", "t3", "t4"}},
		{name: "project", filter: TaskFilter{ProjectID: "p1"}, want: []string{"t1", "t3", "t4"}},
		{name: "status", filter: TaskFilter{Status: "2"}, want: []string{"t2", "t3"}},
		{name: "project and status", filter: TaskFilter{ProjectID: "p1", Status: "0"}, want: []string{"t1", "t4"}},
		{name: "limit", filter: TaskFilter{Limit: 2}, want: []string{"t1", "t2"}},
		{name: "limit after filter", filter: TaskFilter{ProjectID: "p1", Limit: 2}, want: []string{"t1", "t3"}},
		{name: "no match", filter: TaskFilter{ProjectID: "nope"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterTasks(json.RawMessage(taskListing), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, taskIDs(t, got))
		})
	}
}

func TestFilterTasks_NonArray(t *testing.T) {
	raw := json.RawMessage(`{"tasks":[]}`)
	got, err := FilterTasks(raw, TaskFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(got))

	_, err = FilterTasks(json.RawMessage(`[{`), TaskFilter{Limit: 1})
	assert.Error(t, err)
}

func TestCountAndFirstItem(t *testing.T) {
	raw := json.RawMessage(`[{"id":"p1","name":"Inbox"},{"id":"p2","name":"Work"}]`)
	assert.Equal(t, 2, CountItems(raw))

	id, name, ok := FirstItem(raw)
	assert.True(t, ok)
	assert.Equal(t, "p1", id)
	assert.Equal(t, "Inbox", name)

	assert.Equal(t, -1, CountItems(json.RawMessage(`{}`)))
	_, _, ok = FirstItem(json.RawMessage(`[]`))
	assert.False(t, ok)
}
