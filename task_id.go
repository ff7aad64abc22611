package scribe

import "go.jetify.com/typeid"

// NewTaskID returns a new prefixed unique identifier for a task.
func NewTaskID() string {
	id, err := typeid.WithPrefix("task")
	if err != nil {
		panic(err)
	}
	return id.String()
}
