package tasksync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrisonrobin/taskbridge/pkg/filestore"
	"github.com/harrisonrobin/taskbridge/pkg/model"
	"github.com/harrisonrobin/taskbridge/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	d0 = model.Date(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	d1 = model.Date(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
)

func runSync(t *testing.T, exchange, other *source.Memory, opts ...Option) (*Result, *Statistics) {
	t.Helper()
	stats := &Statistics{}
	res, err := New(exchange, other, opts...).SyncAll(context.Background(), stats)
	require.NoError(t, err)
	return res, stats
}

func TestSyncAll(t *testing.T) {
	t.Run("Should create a missing open task", func(t *testing.T) {
		exchange := source.NewMemory(&model.Task{ExchangeID: "E1", LastModified: t1, Description: "Call Bob"})
		other := source.NewMemory()

		res, stats := runSync(t, exchange, other)

		assert.Equal(t, []source.Call{{Method: "AddTask", ExchangeID: "E1"}}, other.Calls())
		assert.EqualValues(t, 1, stats.Added())
		assert.EqualValues(t, 0, stats.Updated())
		assert.EqualValues(t, 1, res.Added)
		assert.Empty(t, exchange.Calls())
	})

	t.Run("Should not create a completed task", func(t *testing.T) {
		exchange := source.NewMemory(&model.Task{ExchangeID: "E2", Completed: true, LastModified: t1})
		other := source.NewMemory()

		res, stats := runSync(t, exchange, other)

		assert.Empty(t, other.Calls())
		assert.EqualValues(t, 0, stats.Added())
		assert.Equal(t, 1, res.Pairs)
	})

	t.Run("Should update completed flag and due date on divergence", func(t *testing.T) {
		ex := &model.Task{ExchangeID: "E3", LastModified: t2, Completed: true, DueDate: d1, Description: "new title"}
		ot := &model.Task{ExchangeID: "E3", LastModified: t1, Completed: false, DueDate: d0, Description: "old title"}
		other := source.NewMemory(ot)

		res, stats := runSync(t, source.NewMemory(ex), other)

		assert.Equal(t, []source.Call{
			{Method: "UpdateCompletedFlag", ExchangeID: "E3"},
			{Method: "UpdateDueDate", ExchangeID: "E3"},
		}, other.Calls())
		assert.EqualValues(t, 2, stats.Updated())
		assert.EqualValues(t, 2, res.Updated)
		assert.True(t, ot.Completed)
		assert.True(t, model.DatesEqual(d1, ot.DueDate))
		assert.Equal(t, "new title", ot.Description)
	})

	t.Run("Should update a due date that was cleared", func(t *testing.T) {
		ex := &model.Task{ExchangeID: "E4", LastModified: t2}
		ot := &model.Task{ExchangeID: "E4", LastModified: t1, DueDate: d0}
		other := source.NewMemory(ot)

		_, stats := runSync(t, source.NewMemory(ex), other)

		assert.Equal(t, []source.Call{{Method: "UpdateDueDate", ExchangeID: "E4"}}, other.Calls())
		assert.Nil(t, ot.DueDate)
		assert.EqualValues(t, 1, stats.Updated())
	})

	t.Run("Should copy payload without mutation calls when only payload differs", func(t *testing.T) {
		ex := &model.Task{ExchangeID: "E5", LastModified: t2, DueDate: d0, Description: "renamed"}
		ot := &model.Task{ExchangeID: "E5", LastModified: t1, DueDate: d0, Description: "original"}
		other := source.NewMemory(ot)

		_, stats := runSync(t, source.NewMemory(ex), other)

		assert.Empty(t, other.Calls())
		assert.Equal(t, "renamed", ot.Description)
		assert.EqualValues(t, 0, stats.Updated())
	})

	t.Run("Should let the other side win a tie", func(t *testing.T) {
		ex := &model.Task{ExchangeID: "E6", LastModified: t1, Completed: true}
		ot := &model.Task{ExchangeID: "E6", LastModified: t1, Completed: false, Description: "keep"}
		other := source.NewMemory(ot)

		_, stats := runSync(t, source.NewMemory(ex), other)

		assert.Empty(t, other.Calls())
		assert.False(t, ot.Completed)
		assert.Equal(t, "keep", ot.Description)
		assert.EqualValues(t, 0, stats.Updated())
	})

	t.Run("Should do nothing when the other side is newer", func(t *testing.T) {
		ex := &model.Task{ExchangeID: "E7", LastModified: t1, Completed: true, DueDate: d1}
		ot := &model.Task{ExchangeID: "E7", LastModified: t2, Completed: false, DueDate: d0}
		exchange := source.NewMemory(ex)
		other := source.NewMemory(ot)

		_, stats := runSync(t, exchange, other)

		assert.Empty(t, other.Calls())
		assert.Empty(t, exchange.Calls())
		assert.EqualValues(t, 0, stats.Added()+stats.Updated())
	})

	t.Run("Should issue nothing on a clean run", func(t *testing.T) {
		exchange := source.NewMemory(
			&model.Task{ExchangeID: "A", LastModified: t1, DueDate: d0},
			&model.Task{ExchangeID: "B", LastModified: t1, Completed: true},
		)
		other := source.NewMemory(
			&model.Task{ExchangeID: "A", LastModified: t2, DueDate: d0},
			&model.Task{ExchangeID: "B", LastModified: t1, Completed: true},
		)

		res, stats := runSync(t, exchange, other)

		assert.Empty(t, other.Calls())
		assert.EqualValues(t, 0, stats.Added()+stats.Updated())
		assert.Equal(t, 2, res.Pairs)
	})

	t.Run("Should ignore tasks that only exist on the other side", func(t *testing.T) {
		other := source.NewMemory(&model.Task{ExchangeID: "ghost", LastModified: t2})

		res, _ := runSync(t, source.NewMemory(), other)

		assert.Empty(t, other.Calls())
		assert.Equal(t, 0, res.Pairs)
	})
}

func TestSyncAll_Errors(t *testing.T) {
	t.Run("Should abort before mutating when the exchange fetch fails", func(t *testing.T) {
		boom := errors.New("unreachable")
		exchange := source.NewMemory()
		exchange.FailFetch(boom)
		other := source.NewMemory()

		res, err := New(exchange, other).SyncAll(context.Background(), &Statistics{})

		require.ErrorIs(t, err, boom)
		assert.Nil(t, res)
		assert.Empty(t, other.Calls())
	})

	t.Run("Should abort when the other fetch fails", func(t *testing.T) {
		boom := errors.New("denied")
		exchange := source.NewMemory(&model.Task{ExchangeID: "E1", LastModified: t1})
		other := source.NewMemory()
		other.FailFetch(boom)

		_, err := New(exchange, other).SyncAll(context.Background(), &Statistics{})

		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "fetching other tasks")
		assert.Empty(t, other.Calls())
	})

	t.Run("Should not count failed mutations and keep going", func(t *testing.T) {
		boom := errors.New("quota")
		exchange := source.NewMemory(
			&model.Task{ExchangeID: "E1", LastModified: t1},
			&model.Task{ExchangeID: "E2", LastModified: t2, Completed: true, DueDate: d1},
		)
		other := source.NewMemory(&model.Task{ExchangeID: "E2", LastModified: t1, DueDate: d0})
		other.FailMutation("AddTask", boom)
		other.FailMutation("UpdateCompletedFlag", boom)

		res, stats := runSync(t, exchange, other)

		assert.Len(t, other.Calls(), 3)
		assert.EqualValues(t, 0, stats.Added())
		assert.EqualValues(t, 1, stats.Updated())
		assert.Equal(t, 2, res.Failed)
		for _, err := range res.Errors {
			assert.ErrorIs(t, err, boom)
		}
	})
}

func TestSyncAll_Concurrent(t *testing.T) {
	t.Run("Should reconcile every pair with bounded workers", func(t *testing.T) {
		var exTasks, otTasks []*model.Task
		for i := 0; i < 50; i++ {
			id := fmt.Sprintf("E%02d", i)
			exTasks = append(exTasks, &model.Task{ExchangeID: id, LastModified: t2, Completed: true})
			if i%2 == 0 {
				otTasks = append(otTasks, &model.Task{ExchangeID: id, LastModified: t1})
			}
		}
		for i := 50; i < 60; i++ {
			exTasks = append(exTasks, &model.Task{ExchangeID: fmt.Sprintf("E%02d", i), LastModified: t1})
		}
		other := source.NewMemory(otTasks...)

		res, stats := runSync(t, source.NewMemory(exTasks...), other, WithConcurrency(8))

		assert.Equal(t, 60, res.Pairs)
		assert.EqualValues(t, 10, stats.Added())
		assert.EqualValues(t, 25, stats.Updated())
		assert.Len(t, other.Calls(), 35)
	})
}

// countingCollector is deliberately unsynchronized.
type countingCollector struct {
	added, updated int
}

func (c *countingCollector) TaskAdded()   { c.added++ }
func (c *countingCollector) TaskUpdated() { c.updated++ }

func TestSyncAll_CollectorCalls(t *testing.T) {
	t.Run("Should call a plain collector one at a time under concurrency", func(t *testing.T) {
		var exTasks, otTasks []*model.Task
		for i := 0; i < 200; i++ {
			id := fmt.Sprintf("E%03d", i)
			exTasks = append(exTasks, &model.Task{ExchangeID: id, LastModified: t2, Completed: true})
			if i%2 == 0 {
				otTasks = append(otTasks, &model.Task{ExchangeID: id, LastModified: t1})
			}
		}
		for i := 200; i < 300; i++ {
			exTasks = append(exTasks, &model.Task{ExchangeID: fmt.Sprintf("E%03d", i), LastModified: t1})
		}
		collector := &countingCollector{}

		res, err := New(source.NewMemory(exTasks...), source.NewMemory(otTasks...), WithConcurrency(16)).
			SyncAll(context.Background(), collector)

		require.NoError(t, err)
		assert.Equal(t, 100, collector.added)
		assert.Equal(t, 100, collector.updated)
		assert.EqualValues(t, collector.added, res.Added)
		assert.EqualValues(t, collector.updated, res.Updated)
	})
}

func TestSyncAll_ConcurrentFileStore(t *testing.T) {
	t.Run("Should persist every counted mutation", func(t *testing.T) {
		ctx := context.Background()
		var exTasks []*model.Task
		for i := 0; i < 40; i++ {
			exTasks = append(exTasks, &model.Task{
				ExchangeID:   fmt.Sprintf("E%02d", i),
				LastModified: t1,
				Description:  fmt.Sprintf("Task %d", i),
				DueDate:      d0,
			})
		}
		other := filestore.New(filepath.Join(t.TempDir(), "other.yaml"), source.RoleOther)

		res, err := New(source.NewMemory(exTasks...), other, WithConcurrency(8)).SyncAll(ctx, nil)

		require.NoError(t, err)
		assert.Zero(t, res.Failed)
		assert.EqualValues(t, 40, res.Added)
		stored, err := other.GetAllTasks(ctx)
		require.NoError(t, err)
		assert.Len(t, stored, int(res.Added))
		assert.Len(t, ExchangeIDIndex(stored), 40)
	})
}

func TestReconcile(t *testing.T) {
	t.Run("Should ignore a pair without an exchange task", func(t *testing.T) {
		other := source.NewMemory()
		s := New(source.NewMemory(), other)

		err := s.Reconcile(context.Background(), Pair{Other: &model.Task{ExchangeID: "x"}}, &Statistics{})

		require.NoError(t, err)
		assert.Empty(t, other.Calls())
	})
}
