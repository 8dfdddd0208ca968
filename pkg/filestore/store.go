// Package filestore keeps tasks in a YAML document on disk so that either side
// of a sync can be a plain file.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/harrisonrobin/taskbridge/pkg/model"
	"github.com/harrisonrobin/taskbridge/pkg/source"
	"gopkg.in/yaml.v3"
)

const documentVersion = 1

// Record is one task as stored in the file.
type Record struct {
	ID          string     `yaml:"id"`
	ExchangeID  string     `yaml:"exchange_id,omitempty"`
	Description string     `yaml:"description"`
	Project     string     `yaml:"project,omitempty"`
	Priority    string     `yaml:"priority,omitempty"`
	Tags        []string   `yaml:"tags,omitempty"`
	Annotations []string   `yaml:"annotations,omitempty"`
	Completed   bool       `yaml:"completed"`
	Due         *time.Time `yaml:"due,omitempty"`
	Modified    time.Time  `yaml:"modified"`
}

type document struct {
	Version int      `yaml:"version"`
	Tasks   []Record `yaml:"tasks"`
}

// Store is a file-backed source. Every operation reads the file, and every
// mutation rewrites it atomically while holding an exclusive lock. Store is
// safe for concurrent use: mu serializes callers in this process and the
// file lock serializes processes.
type Store struct {
	path string
	role source.Role
	mu   sync.Mutex
	lock *flock.Flock
	now  func() time.Time
}

func New(path string, role source.Role) *Store {
	return &Store{
		path: path,
		role: role,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
}

func (s *Store) GetAllTasks(ctx context.Context) ([]*model.Task, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Task, 0, len(doc.Tasks))
	for i := range doc.Tasks {
		out = append(out, s.toModel(&doc.Tasks[i]))
	}
	return out, nil
}

func (s *Store) toModel(r *Record) *model.Task {
	t := &model.Task{
		ExchangeID:   r.ExchangeID,
		SourceID:     r.ID,
		LastModified: r.Modified,
		Completed:    r.Completed,
		DueDate:      model.CloneDate(r.Due),
		Description:  r.Description,
		Project:      r.Project,
		Priority:     r.Priority,
		Tags:         slices.Clone(r.Tags),
		Annotations:  slices.Clone(r.Annotations),
	}
	if s.role == source.RoleExchange {
		t.ExchangeID = r.ID
	}
	return t
}

// AddTask appends a record linked to task.ExchangeID. task is not modified.
func (s *Store) AddTask(ctx context.Context, task *model.Task) error {
	return s.update(ctx, func(doc *document) error {
		r := Record{
			ID:          uuid.NewString(),
			Description: task.Description,
			Project:     task.Project,
			Priority:    task.Priority,
			Tags:        slices.Clone(task.Tags),
			Annotations: slices.Clone(task.Annotations),
			Completed:   task.Completed,
			Due:         model.CloneDate(task.DueDate),
			Modified:    s.now().UTC(),
		}
		if s.role == source.RoleOther {
			r.ExchangeID = task.ExchangeID
		}
		doc.Tasks = append(doc.Tasks, r)
		return nil
	})
}

func (s *Store) UpdateCompletedFlag(ctx context.Context, task *model.Task) error {
	return s.modify(ctx, task, func(r *Record) { r.Completed = task.Completed })
}

func (s *Store) UpdateDueDate(ctx context.Context, task *model.Task) error {
	return s.modify(ctx, task, func(r *Record) { r.Due = model.CloneDate(task.DueDate) })
}

func (s *Store) modify(ctx context.Context, task *model.Task, apply func(*Record)) error {
	return s.update(ctx, func(doc *document) error {
		for i := range doc.Tasks {
			if doc.Tasks[i].ID == task.SourceID {
				apply(&doc.Tasks[i])
				doc.Tasks[i].Modified = s.now().UTC()
				return nil
			}
		}
		return fmt.Errorf("task %q: %w", task.SourceID, source.ErrNotFound)
	})
}

func (s *Store) update(ctx context.Context, fn func(*document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
	}
	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring lock on %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("could not lock %s", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

// load returns an empty document when the file does not exist yet.
func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{Version: documentVersion}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if doc.Version == 0 {
		doc.Version = documentVersion
	}
	return &doc, nil
}

func (s *Store) save(doc *document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}

	// Write atomically via temp file
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", s.path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}
	return nil
}
