package tasks

import (
	"fmt"

	"pps/internal/storage"
	"pps/pkg/domain"
)

// SubTask is one step of an active task.
type SubTask struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// ActiveTask is the task embedded in a beneficiary's target attribute. Score
// is frozen at assignment.
type ActiveTask struct {
	Objective         string    `json:"objective"`
	OriginalObjective string    `json:"original-objective"`
	PersonalObjective string    `json:"personal-objective"`
	Tasks             []SubTask `json:"tasks"`
	Score             int64     `json:"score"`
	Created           int64     `json:"created"`
}

// ArchivedTask is the immutable record written when a task is completed or
// abandoned with credit.
type ArchivedTask struct {
	User string `json:"user"`
	ActiveTask
	Completed bool `json:"completed"`
}

// ObjectiveID parses the task's objective id.
func (t ActiveTask) ObjectiveID() (domain.ObjectiveID, error) {
	return domain.ParseObjectiveID(t.Objective)
}

// NewSubTasks turns descriptions into pending sub-tasks.
func NewSubTasks(descriptions []string) []SubTask {
	out := make([]SubTask, len(descriptions))
	for i, d := range descriptions {
		out[i] = SubTask{Description: d}
	}
	return out
}

func subTasksDocument(tasks []SubTask) []any {
	out := make([]any, len(tasks))
	for i, t := range tasks {
		out[i] = map[string]any{
			storage.AttrDescription: t.Description,
			storage.AttrCompleted:   t.Completed,
		}
	}
	return out
}

// Document renders the task with its persisted attribute names.
func (t ActiveTask) Document() map[string]any {
	return map[string]any{
		storage.AttrObjective:         t.Objective,
		storage.AttrOriginalObjective: t.OriginalObjective,
		storage.AttrPersonalObjective: t.PersonalObjective,
		storage.AttrTasks:             subTasksDocument(t.Tasks),
		storage.AttrScore:             t.Score,
		storage.AttrCreated:           t.Created,
	}
}

// Document renders the archived row, key attributes included.
func (a ArchivedTask) Document() map[string]any {
	doc := a.ActiveTask.Document()
	doc[storage.AttrUser] = a.User
	doc[storage.AttrCompleted] = a.Completed
	return doc
}

// ActiveTaskFrom decodes a stored target. A null target decodes to nil.
func ActiveTaskFrom(v any) (*ActiveTask, error) {
	if v == nil {
		return nil, nil
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("target is %T, not a document", v)
	}
	tasks, err := subTasksFrom(doc[storage.AttrTasks])
	if err != nil {
		return nil, err
	}
	return &ActiveTask{
		Objective:         str(doc[storage.AttrObjective]),
		OriginalObjective: str(doc[storage.AttrOriginalObjective]),
		PersonalObjective: str(doc[storage.AttrPersonalObjective]),
		Tasks:             tasks,
		Score:             num(doc[storage.AttrScore]),
		Created:           num(doc[storage.AttrCreated]),
	}, nil
}

func archivedFrom(doc map[string]any) (*ArchivedTask, error) {
	task, err := ActiveTaskFrom(doc)
	if err != nil {
		return nil, err
	}
	completed, _ := doc[storage.AttrCompleted].(bool)
	return &ArchivedTask{User: str(doc[storage.AttrUser]), ActiveTask: *task, Completed: completed}, nil
}

func subTasksFrom(v any) ([]SubTask, error) {
	if v == nil {
		return []SubTask{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("tasks is %T, not a list", v)
	}
	out := make([]SubTask, 0, len(list))
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("sub-task is %T, not a document", e)
		}
		done, _ := m[storage.AttrCompleted].(bool)
		out = append(out, SubTask{Description: str(m[storage.AttrDescription]), Completed: done})
	}
	return out, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
