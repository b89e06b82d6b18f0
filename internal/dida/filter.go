package dida

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// FilterTasks applies f to a task listing. Tasks are matched on projectId and
// status, then truncated to f.Limit. A body that is not a JSON array is
// returned unchanged.
func FilterTasks(raw json.RawMessage, f TaskFilter) (json.RawMessage, error) {
	if f.IsZero() || len(raw) == 0 {
		return raw, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("task listing is not valid JSON")
	}

	list := gjson.ParseBytes(raw)
	if !list.IsArray() {
		return raw, nil
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	n := 0
	list.ForEach(func(_, task gjson.Result) bool {
		if f.Limit > 0 && n >= f.Limit {
			return false
		}
		if f.ProjectID != "" && task.Get("projectId").String() != f.ProjectID {
			return true
		}
		if f.Status != "" && task.Get("status").String() != f.Status {
			return true
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(task.Raw)
		n++
		return true
	})
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// CountItems returns the number of elements in a JSON array, or -1 when raw is
// not an array.
func CountItems(raw json.RawMessage) int {
	list := gjson.ParseBytes(raw)
	if !list.IsArray() {
		return -1
	}
	return len(list.Array())
}

// FirstItem returns the id and name of the first element of a JSON array.
func FirstItem(raw json.RawMessage) (id, name string, ok bool) {
	first := gjson.GetBytes(raw, "0")
	if !first.Exists() {
		return "", "", false
	}
	return first.Get("id").String(), first.Get("name").String(), true
}
