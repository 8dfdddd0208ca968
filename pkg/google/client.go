package google

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/taskbridge/pkg/auth"
	"github.com/harrisonrobin/taskbridge/pkg/index"
	"github.com/harrisonrobin/taskbridge/pkg/source"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

// NewClient authenticates with the OAuth material in configDir and returns a
// source for the task list titled listName.
func NewClient(ctx context.Context, configDir, listName string, role source.Role, idx *index.LinkIndex) (*TasksClient, error) {
	client, err := auth.GetClient(ctx, configDir, []string{tasks.TasksScope})
	if err != nil {
		return nil, err
	}

	srv, err := tasks.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Tasks client: %w", err)
	}

	return NewTasksClientForList(ctx, srv, listName, role, idx)
}

// NewTasksClientForList resolves listName to its id on srv.
func NewTasksClientForList(ctx context.Context, srv *tasks.Service, listName string, role source.Role, idx *index.LinkIndex) (*TasksClient, error) {
	var listID string
	err := srv.Tasklists.List().MaxResults(100).Pages(ctx, func(page *tasks.TaskLists) error {
		for _, item := range page.Items {
			if listID == "" && item.Title == listName {
				listID = item.Id
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve task lists: %w", err)
	}

	if listID == "" {
		return nil, fmt.Errorf("task list '%s' not found", listName)
	}

	return NewTasksClient(srv, listID, role, idx), nil
}
