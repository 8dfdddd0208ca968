package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harrisonrobin/taskbridge/pkg/index"
	"github.com/harrisonrobin/taskbridge/pkg/logger"
	"github.com/harrisonrobin/taskbridge/pkg/model"
	"github.com/harrisonrobin/taskbridge/pkg/source"
	"github.com/harrisonrobin/taskbridge/pkg/util"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/tasks/v1"
)

const (
	statusNeedsAction = "needsAction"
	statusCompleted   = "completed"
)

// TasksClient exposes one Google Tasks list as a sync source.
type TasksClient struct {
	srv    *tasks.Service
	listID string
	role   source.Role
	index  *index.LinkIndex
	log    logger.Logger
}

// NewTasksClient creates a source for the list with id listID. idx may be nil.
func NewTasksClient(srv *tasks.Service, listID string, role source.Role, idx *index.LinkIndex) *TasksClient {
	return &TasksClient{srv: srv, listID: listID, role: role, index: idx, log: logger.Discard()}
}

func (c *TasksClient) WithLogger(l logger.Logger) *TasksClient {
	c.log = l.With("source", "google", "list", c.listID)
	return c
}

// Close persists the link index.
func (c *TasksClient) Close() error {
	if c.index == nil {
		return nil
	}
	return c.index.Save()
}

func (c *TasksClient) GetAllTasks(ctx context.Context) ([]*model.Task, error) {
	var out []*model.Task
	err := c.srv.Tasks.List(c.listID).
		ShowCompleted(true).
		ShowHidden(true).
		MaxResults(100).
		Pages(ctx, func(page *tasks.Tasks) error {
			for _, item := range page.Items {
				if item.Deleted {
					continue
				}
				out = append(out, c.toModel(item))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("unable to list tasks: %w", err)
	}
	return out, nil
}

func (c *TasksClient) toModel(item *tasks.Task) *model.Task {
	annotations, linked := util.ParseNotes(item.Notes)
	t := &model.Task{
		SourceID:     item.Id,
		LastModified: c.parseTime(item.Updated, "updated", item.Id),
		Completed:    item.Status == statusCompleted,
		DueDate:      model.Date(c.parseTime(item.Due, "due", item.Id)),
		Description:  item.Title,
		Annotations:  annotations,
	}

	if c.role == source.RoleExchange {
		t.ExchangeID = item.Id
		return t
	}

	switch {
	case linked != "":
		t.ExchangeID = linked
		if c.index != nil {
			c.index.Set(linked, item.Id)
		}
	case c.index != nil:
		if id, ok := c.index.ExchangeIDFor(item.Id); ok {
			t.ExchangeID = id
		}
	}
	return t
}

func (c *TasksClient) parseTime(s, field, id string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		c.log.Warn("ignoring unparsable timestamp", "field", field, "task", id, "value", s)
		return time.Time{}
	}
	return t
}

// AddTask inserts a task mirroring the exchange task. task is not modified.
func (c *TasksClient) AddTask(ctx context.Context, task *model.Task) error {
	link := ""
	if c.role == source.RoleOther {
		link = task.ExchangeID
	}
	item := &tasks.Task{
		Title:  task.Description,
		Notes:  util.FormatNotes(task.Annotations, link),
		Status: statusNeedsAction,
	}
	if task.Completed {
		item.Status = statusCompleted
	}
	if task.DueDate != nil {
		item.Due = formatDue(*task.DueDate)
	}

	created, err := c.srv.Tasks.Insert(c.listID, item).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to insert task: %w", err)
	}
	if c.index != nil && link != "" {
		c.index.Set(link, created.Id)
	}
	return nil
}

func (c *TasksClient) UpdateCompletedFlag(ctx context.Context, task *model.Task) error {
	patch := &tasks.Task{Status: statusNeedsAction}
	if task.Completed {
		patch.Status = statusCompleted
	} else {
		// Reopening requires clearing the completion stamp.
		patch.NullFields = []string{"Completed"}
	}
	return c.patch(ctx, task, patch)
}

func (c *TasksClient) UpdateDueDate(ctx context.Context, task *model.Task) error {
	patch := &tasks.Task{}
	if task.DueDate != nil {
		patch.Due = formatDue(*task.DueDate)
	} else {
		patch.NullFields = []string{"Due"}
	}
	return c.patch(ctx, task, patch)
}

func (c *TasksClient) patch(ctx context.Context, task *model.Task, patch *tasks.Task) error {
	id := task.SourceID
	if id == "" && c.index != nil {
		id = c.index.Get(task.ExchangeID)
	}
	if id == "" {
		return source.ErrNotFound
	}

	_, err := c.srv.Tasks.Patch(c.listID, id, patch).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			// Drop the link to a task that no longer exists.
			if c.index != nil && task.ExchangeID != "" && c.index.Get(task.ExchangeID) == id {
				c.index.Remove(task.ExchangeID)
			}
			return fmt.Errorf("task %s: %w", id, source.ErrNotFound)
		}
		return fmt.Errorf("unable to patch task %s: %w", id, err)
	}
	return nil
}

// formatDue renders a due date the way the Tasks API stores it: the date at
// midnight UTC. The API drops any time of day.
func formatDue(d time.Time) string {
	u := d.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
}
