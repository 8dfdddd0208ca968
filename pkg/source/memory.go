package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/harrisonrobin/taskbridge/pkg/model"
)

// Call records one mutation applied to a Memory source.
type Call struct {
	Method     string
	ExchangeID string
}

// Memory is an in-process store. It keeps the records it was seeded with and
// records every mutation so callers can inspect what a sync did.
type Memory struct {
	mu       sync.Mutex
	tasks    []*model.Task
	calls    []Call
	fetchErr error
	failOn   map[string]error
}

func NewMemory(tasks ...*model.Task) *Memory {
	return &Memory{tasks: tasks, failOn: make(map[string]error)}
}

// FailFetch makes GetAllTasks return err.
func (m *Memory) FailFetch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

// FailMutation makes the named method return err.
func (m *Memory) FailMutation(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[method] = err
}

func (m *Memory) GetAllTasks(_ context.Context) ([]*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := make([]*model.Task, len(m.tasks))
	copy(out, m.tasks)
	return out, nil
}

func (m *Memory) AddTask(_ context.Context, task *model.Task) error {
	return m.record("AddTask", task, func() {
		c := &model.Task{
			ExchangeID:   task.ExchangeID,
			SourceID:     fmt.Sprintf("mem-%d", len(m.tasks)+1),
			LastModified: task.LastModified,
			Completed:    task.Completed,
			DueDate:      model.CloneDate(task.DueDate),
		}
		task.CopyTo(c)
		m.tasks = append(m.tasks, c)
	})
}

func (m *Memory) UpdateCompletedFlag(_ context.Context, task *model.Task) error {
	return m.record("UpdateCompletedFlag", task, nil)
}

func (m *Memory) UpdateDueDate(_ context.Context, task *model.Task) error {
	return m.record("UpdateDueDate", task, nil)
}

func (m *Memory) record(method string, task *model.Task, apply func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, ExchangeID: task.ExchangeID})
	if err := m.failOn[method]; err != nil {
		return err
	}
	if apply != nil {
		apply()
	}
	return nil
}

// Calls returns the mutations applied so far, in order.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
