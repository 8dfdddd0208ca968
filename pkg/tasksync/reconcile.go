package tasksync

import (
	"context"
	"errors"
	"fmt"

	"github.com/harrisonrobin/taskbridge/pkg/model"
)

// Reconcile decides what the other store needs so that it agrees with the
// exchange side of p, and applies it. A counter is incremented only after the
// adapter reports success; failed mutations are returned joined.
func (s *Syncer) Reconcile(ctx context.Context, p Pair, stats Collector) error {
	ex, other := p.Exchange, p.Other

	switch {
	case ex == nil:
		return nil

	case other == nil:
		if ex.Completed {
			return nil
		}
		if err := s.other.AddTask(ctx, ex); err != nil {
			return fmt.Errorf("adding task %s: %w", ex.ExchangeID, err)
		}
		s.log.Debug("task added", "exchange_id", ex.ExchangeID, "description", ex.Description)
		stats.TaskAdded()
		return nil

	case !ex.LastModified.After(other.LastModified):
		// Other side is as new or newer. Nothing flows back.
		return nil
	}

	ex.CopyTo(other)

	var errs []error
	if ex.Completed != other.Completed {
		other.Completed = ex.Completed
		if err := s.other.UpdateCompletedFlag(ctx, other); err != nil {
			errs = append(errs, fmt.Errorf("updating completed flag of %s: %w", ex.ExchangeID, err))
		} else {
			s.log.Debug("completed flag updated", "exchange_id", ex.ExchangeID, "completed", other.Completed)
			stats.TaskUpdated()
		}
	}
	if !ex.SameDueDate(other) {
		other.DueDate = model.CloneDate(ex.DueDate)
		if err := s.other.UpdateDueDate(ctx, other); err != nil {
			errs = append(errs, fmt.Errorf("updating due date of %s: %w", ex.ExchangeID, err))
		} else {
			s.log.Debug("due date updated", "exchange_id", ex.ExchangeID, "due", other.DueDate)
			stats.TaskUpdated()
		}
	}
	return errors.Join(errs...)
}
