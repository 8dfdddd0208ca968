package tasksync

import (
	"sync"
	"sync/atomic"
)

// Collector receives one call per applied mutation. A Syncer never calls the
// same Collector from two goroutines at once, so implementations need no
// locking of their own.
type Collector interface {
	TaskAdded()
	TaskUpdated()
}

// Statistics is a Collector safe for concurrent use.
type Statistics struct {
	added   atomic.Int64
	updated atomic.Int64
}

func (s *Statistics) TaskAdded()     { s.added.Add(1) }
func (s *Statistics) TaskUpdated()   { s.updated.Add(1) }
func (s *Statistics) Added() int64   { return s.added.Load() }
func (s *Statistics) Updated() int64 { return s.updated.Load() }

// tee forwards to the caller's collector while counting for the run result.
// Calls to next are serialized.
type tee struct {
	mu   sync.Mutex
	next Collector
	run  Statistics
}

func (t *tee) TaskAdded() {
	t.run.TaskAdded()
	if t.next != nil {
		t.mu.Lock()
		t.next.TaskAdded()
		t.mu.Unlock()
	}
}

func (t *tee) TaskUpdated() {
	t.run.TaskUpdated()
	if t.next != nil {
		t.mu.Lock()
		t.next.TaskUpdated()
		t.mu.Unlock()
	}
}
