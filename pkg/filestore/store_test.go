package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harrisonrobin/taskbridge/pkg/model"
	"github.com/harrisonrobin/taskbridge/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, role source.Role, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	s := New(path, role)
	s.now = func() time.Time { return fixedNow }
	return s
}

const fixture = `version: 1
tasks:
  - id: a1
    exchange_id: E1
    description: Water plants
    tags: [home]
    completed: false
    due: 2024-06-01T00:00:00Z
    modified: 2024-05-01T09:00:00Z
  - id: a2
    description: Unlinked
    completed: true
    modified: 2024-05-02T09:00:00Z
`

func TestStore_GetAllTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return nothing for a missing file", func(t *testing.T) {
		s := newTestStore(t, source.RoleOther, "")
		got, err := s.GetAllTasks(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Should read the stored link on the other side", func(t *testing.T) {
		s := newTestStore(t, source.RoleOther, fixture)

		got, err := s.GetAllTasks(ctx)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "E1", got[0].ExchangeID)
		assert.Equal(t, "a1", got[0].SourceID)
		assert.Equal(t, []string{"home"}, got[0].Tags)
		assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *got[0].DueDate)
		assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), got[0].LastModified)
		assert.Empty(t, got[1].ExchangeID)
		assert.True(t, got[1].Completed)
		assert.Nil(t, got[1].DueDate)
	})

	t.Run("Should key exchange-side tasks by record id", func(t *testing.T) {
		s := newTestStore(t, source.RoleExchange, fixture)

		got, err := s.GetAllTasks(ctx)

		require.NoError(t, err)
		assert.Equal(t, "a1", got[0].ExchangeID)
		assert.Equal(t, "a2", got[1].ExchangeID)
	})

	t.Run("Should report malformed files", func(t *testing.T) {
		s := newTestStore(t, source.RoleOther, "tasks: [unterminated")
		_, err := s.GetAllTasks(ctx)
		assert.ErrorContains(t, err, "failed to parse")
	})
}

func TestStore_AddTask(t *testing.T) {
	ctx := context.Background()
	due := model.Date(time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC))

	t.Run("Should append a linked record and leave the input alone", func(t *testing.T) {
		s := newTestStore(t, source.RoleOther, fixture)
		ex := &model.Task{ExchangeID: "E9", Description: "Book flights", Completed: true, DueDate: due, Project: "travel"}

		require.NoError(t, s.AddTask(ctx, ex))

		got, err := s.GetAllTasks(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		added := got[2]
		assert.Equal(t, "E9", added.ExchangeID)
		assert.NotEmpty(t, added.SourceID)
		assert.Equal(t, "Book flights", added.Description)
		assert.Equal(t, "travel", added.Project)
		assert.True(t, added.Completed)
		assert.True(t, model.DatesEqual(due, added.DueDate))
		assert.Equal(t, fixedNow, added.LastModified)
		assert.Empty(t, ex.SourceID)
	})

	t.Run("Should create the file and its directory on first write", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "tasks.yaml")
		s := New(path, source.RoleOther)

		require.NoError(t, s.AddTask(ctx, &model.Task{ExchangeID: "E1", Description: "First"}))

		_, err := os.Stat(path)
		require.NoError(t, err)
		leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, leftovers)
	})

	t.Run("Should keep every record when adds run concurrently", func(t *testing.T) {
		s := newTestStore(t, source.RoleOther, "")
		const n = 40

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.AddTask(ctx, &model.Task{ExchangeID: fmt.Sprintf("E%02d", i), Description: "Concurrent"})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := s.GetAllTasks(ctx)
		require.NoError(t, err)
		assert.Len(t, got, n)
		ids := make(map[string]bool, n)
		for _, task := range got {
			ids[task.ExchangeID] = true
		}
		assert.Len(t, ids, n)
	})
}

func TestStore_Updates(t *testing.T) {
	ctx := context.Background()

	t.Run("Should flip completion and stamp the record", func(t *testing.T) {
		s := newTestStore(t, source.RoleOther, fixture)

		require.NoError(t, s.UpdateCompletedFlag(ctx, &model.Task{SourceID: "a1", Completed: true}))

		got, err := s.GetAllTasks(ctx)
		require.NoError(t, err)
		assert.True(t, got[0].Completed)
		assert.Equal(t, fixedNow, got[0].LastModified)
		assert.Equal(t, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), got[1].LastModified)
	})

	t.Run("Should set and clear the due date", func(t *testing.T) {
		s := newTestStore(t, source.RoleOther, fixture)
		due := model.Date(time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC))

		require.NoError(t, s.UpdateDueDate(ctx, &model.Task{SourceID: "a2", DueDate: due}))
		got, err := s.GetAllTasks(ctx)
		require.NoError(t, err)
		assert.True(t, model.DatesEqual(due, got[1].DueDate))

		require.NoError(t, s.UpdateDueDate(ctx, &model.Task{SourceID: "a1"}))
		got, err = s.GetAllTasks(ctx)
		require.NoError(t, err)
		assert.Nil(t, got[0].DueDate)
	})

	t.Run("Should return not found for unknown records", func(t *testing.T) {
		s := newTestStore(t, source.RoleOther, fixture)
		err := s.UpdateCompletedFlag(ctx, &model.Task{SourceID: "zz"})
		assert.ErrorIs(t, err, source.ErrNotFound)
	})

	t.Run("Should fail when another process holds the lock", func(t *testing.T) {
		s := newTestStore(t, source.RoleOther, fixture)
		other := New(s.path, source.RoleOther)
		locked, err := other.lock.TryLock()
		require.NoError(t, err)
		require.True(t, locked)
		defer other.lock.Unlock()

		ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		err = s.UpdateDueDate(ctx, &model.Task{SourceID: "a1"})

		assert.Error(t, err)
	})
}
