// Package source defines the capability every task store exposes to the
// sync core.
package source

import (
	"context"
	"errors"

	"github.com/harrisonrobin/taskbridge/pkg/model"
)

// ErrNotFound is returned when a record to mutate no longer exists.
var ErrNotFound = errors.New("task not found")

// Source fetches all tasks from one store and applies mutations to it.
type Source interface {
	// GetAllTasks returns a full snapshot of the store.
	GetAllTasks(ctx context.Context) ([]*model.Task, error)
	// AddTask creates a record mirroring the given authoritative task.
	AddTask(ctx context.Context, task *model.Task) error
	// UpdateCompletedFlag persists task.Completed for an existing record.
	UpdateCompletedFlag(ctx context.Context, task *model.Task) error
	// UpdateDueDate persists task.DueDate for an existing record.
	UpdateDueDate(ctx context.Context, task *model.Task) error
}

// Role tells an adapter which side of the sync it serves, and therefore
// where it reads the ExchangeID from.
type Role int

const (
	// RoleExchange uses the record's native id as its ExchangeID.
	RoleExchange Role = iota
	// RoleOther uses the link stored with the record when it was created.
	RoleOther
)

func (r Role) String() string {
	if r == RoleExchange {
		return "exchange"
	}
	return "other"
}
