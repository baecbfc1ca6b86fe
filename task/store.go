package task

import (
	"sort"
	"sync"
)

// Store keeps the latest Task value per ID. Every write swaps in a complete
// record under the lock, so readers never observe a half-updated task.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewStore() *Store {
	return &Store{tasks: make(map[string]Task)}
}

func (s *Store) Put(t Task) {
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
}

func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Update applies fn to a copy of the task and stores the result.
// It returns false when id is unknown.
func (s *Store) Update(id string, fn func(Task) Task) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	t = fn(t)
	s.tasks[id] = t
	return t, true
}

// List returns all tasks, oldest first.
func (s *Store) List() []Task {
	s.mu.RLock()
	list := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		list = append(list, t)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}
