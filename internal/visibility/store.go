package visibility

import (
	"github.com/yukikurage/retail-tasks/internal/models"
)

// TaskStore is a flat collection of tasks queried by predicate.
type TaskStore interface {
	TasksWhere(pred func(*models.Task) bool) []models.Task
}

// MemoryTaskStore holds tasks in insertion order.
type MemoryTaskStore struct {
	tasks []models.Task
}

func NewTaskStore(tasks []models.Task) *MemoryTaskStore {
	return &MemoryTaskStore{tasks: tasks}
}

func (s *MemoryTaskStore) TasksWhere(pred func(*models.Task) bool) []models.Task {
	out := make([]models.Task, 0)
	for i := range s.tasks {
		if pred(&s.tasks[i]) {
			out = append(out, s.tasks[i])
		}
	}
	return out
}
