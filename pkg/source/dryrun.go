package source

import (
	"context"

	"github.com/harrisonrobin/taskbridge/pkg/logger"
	"github.com/harrisonrobin/taskbridge/pkg/model"
)

type dryRun struct {
	src Source
	log logger.Logger
}

// DryRun wraps src so that reads pass through and mutations are only logged.
func DryRun(src Source, log logger.Logger) Source {
	return &dryRun{src: src, log: log.With("dry_run", true)}
}

func (d *dryRun) GetAllTasks(ctx context.Context) ([]*model.Task, error) {
	return d.src.GetAllTasks(ctx)
}

func (d *dryRun) AddTask(_ context.Context, task *model.Task) error {
	d.log.Info("would add task", "exchange_id", task.ExchangeID, "description", task.Description)
	return nil
}

func (d *dryRun) UpdateCompletedFlag(_ context.Context, task *model.Task) error {
	d.log.Info("would update completed flag", "exchange_id", task.ExchangeID, "completed", task.Completed)
	return nil
}

func (d *dryRun) UpdateDueDate(_ context.Context, task *model.Task) error {
	d.log.Info("would update due date", "exchange_id", task.ExchangeID, "due", task.DueDate)
	return nil
}
