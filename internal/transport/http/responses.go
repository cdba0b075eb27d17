package httptransport

import (
	"pps/internal/tasks"
)

// ListResponse wraps collection results.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// ActiveTaskResponse wraps the active task, which is null when there is none.
type ActiveTaskResponse struct {
	Target *tasks.ActiveTask `json:"target"`
}

// CompletionResponse reports a cleared task. Warning is set when the score
// was credited but the archive row is missing.
type CompletionResponse struct {
	Task     tasks.ActiveTask `json:"task"`
	Area     string           `json:"area"`
	Credited int64            `json:"credited"`
	Archived bool             `json:"archived"`
	Warning  string           `json:"warning,omitempty"`
}

func fromCompletion(c *tasks.Completion) CompletionResponse {
	resp := CompletionResponse{
		Task:     c.Task,
		Area:     string(c.Area),
		Credited: c.Credited,
		Archived: c.Archived != nil,
	}
	if c.ArchiveErr != nil {
		resp.Warning = "score credited but the task could not be archived"
	}
	return resp
}
