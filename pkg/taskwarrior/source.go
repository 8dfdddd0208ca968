package taskwarrior

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/harrisonrobin/taskbridge/pkg/model"
	"github.com/harrisonrobin/taskbridge/pkg/source"
)

const dueLayout = "2006-01-02"

// Source exposes a Taskwarrior database as a sync source.
type Source struct {
	client *Client
	role   source.Role
	filter []string
	// loc is the zone Taskwarrior resolves bare dates in.
	loc    *time.Location
	now    func() time.Time
}

func NewSource(client *Client, role source.Role, filter []string) *Source {
	return &Source{
		client: client,
		role:   role,
		filter: filter,
		loc:    time.Local,
		now:    time.Now,
	}
}

// WithLocation overrides the zone used to interpret due dates.
func (s *Source) WithLocation(loc *time.Location) *Source {
	s.loc = loc
	return s
}

func (s *Source) GetAllTasks(ctx context.Context) ([]*model.Task, error) {
	twTasks, err := s.client.GetTasks(ctx, s.filter)
	if err != nil {
		return nil, err
	}

	tasks := make([]*model.Task, 0, len(twTasks))
	for i := range twTasks {
		tw := &twTasks[i]
		if tw.Status == DELETED || tw.Status == RECURRING {
			continue
		}
		tasks = append(tasks, s.toModel(tw))
	}
	return tasks, nil
}

func (s *Source) toModel(tw *Task) *model.Task {
	t := &model.Task{
		ExchangeID:   tw.ExchangeID,
		SourceID:     tw.UUID,
		LastModified: tw.LastModified(),
		Completed:    tw.Status == COMPLETED,
		DueDate:      model.DateIn(timeOf(tw.Due), s.loc),
		Description:  tw.Description,
		Project:      tw.Project,
		Priority:     tw.Priority,
		Tags:         slices.Clone(tw.Tags),
	}
	if s.role == source.RoleExchange {
		t.ExchangeID = tw.UUID
	}
	for _, a := range tw.Annotations {
		t.Annotations = append(t.Annotations, a.Description)
	}
	return t
}

// AddTask imports a new Taskwarrior task linked to task.ExchangeID. task is
// the exchange record and is not modified.
func (s *Source) AddTask(ctx context.Context, task *model.Task) error {
	now := s.now().UTC()
	tw := Task{
		UUID:        uuid.NewString(),
		Description: task.Description,
		Status:      PENDING,
		Entry:       &CustomTime{Time: now},
		Modified:    &CustomTime{Time: now},
		Project:     task.Project,
		Priority:    task.Priority,
		Tags:        slices.Clone(task.Tags),
		ExchangeID:  task.ExchangeID,
	}
	if task.Completed {
		tw.Status = COMPLETED
		tw.End = &CustomTime{Time: now}
	}
	if task.DueDate != nil {
		tw.Due = &CustomTime{Time: s.localMidnight(*task.DueDate)}
	}
	for _, a := range task.Annotations {
		tw.Annotations = append(tw.Annotations, Annotation{Description: a, Entry: &CustomTime{Time: now}})
	}

	if err := s.client.Import(ctx, tw); err != nil {
		return fmt.Errorf("importing task for %s: %w", task.ExchangeID, err)
	}
	return nil
}

func (s *Source) UpdateCompletedFlag(ctx context.Context, task *model.Task) error {
	if task.SourceID == "" {
		return source.ErrNotFound
	}
	if task.Completed {
		return s.client.Done(ctx, task.SourceID)
	}
	return s.client.Modify(ctx, task.SourceID, "status:"+PENDING)
}

func (s *Source) UpdateDueDate(ctx context.Context, task *model.Task) error {
	if task.SourceID == "" {
		return source.ErrNotFound
	}
	mod := "due:"
	if task.DueDate != nil {
		mod += task.DueDate.Format(dueLayout)
	}
	return s.client.Modify(ctx, task.SourceID, mod)
}

func (s *Source) localMidnight(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
}
