package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/housekeeping/internal/application/booking"
	"github.com/rezkam/housekeeping/internal/application/reconcile"
	"github.com/rezkam/housekeeping/internal/application/task"
	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/infrastructure/blob/fs"
	"github.com/rezkam/housekeeping/internal/infrastructure/persistence/sqlite"
	"github.com/rezkam/housekeeping/internal/infrastructure/persistence/storetest"
	"github.com/rezkam/housekeeping/internal/ptr"
)

type fixture struct {
	sh    *shell
	out   *bytes.Buffer
	store *sqlite.Store
	clock time.Time
}

// newFixture opens a shell for maria over an in-memory store holding one
// task for room 101 on the fixture day.
func newFixture(t *testing.T, staffID string) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.NewStoreWithConfig(ctx, sqlite.DBConfig{DSN: sqlite.MemoryDSN})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SaveCatalog(ctx, storetest.Catalog))

	_, err = store.CreateTask(ctx, storetest.NewTask("101", storetest.Day, "maria"))
	require.NoError(t, err)

	photos, err := fs.NewStore(t.TempDir(), "/photos")
	require.NoError(t, err)

	scope, err := sessionScope("maria", "2026-03-02", false, time.Time{})
	require.NoError(t, err)
	cache := reconcile.NewCache(store, scope)
	require.NoError(t, cache.Refetch(ctx))

	f := &fixture{
		out:   &bytes.Buffer{},
		store: store,
		clock: storetest.Day.Add(8 * time.Hour),
	}
	now := func() time.Time { return f.clock }
	f.sh = &shell{
		out:     f.out,
		staffID: staffID,
		cache:   cache,
		machine: task.NewMachine(store, cache, task.WithUploader(photos), task.WithClock(now)),
		guard:   booking.NewGuard(store, store, store, booking.WithClock(now)),
		now:     now,
	}
	return f
}

// run executes line and returns what it printed.
func (f *fixture) run(t *testing.T, line string) (string, error) {
	t.Helper()
	f.out.Reset()
	err := f.sh.exec(context.Background(), line)
	return f.out.String(), err
}

func TestShellLifecycle(t *testing.T) {
	f := newFixture(t, "maria")

	out, err := f.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Room 101")
	assert.Contains(t, out, "todo")

	out, err = f.run(t, "start 1")
	require.NoError(t, err)
	assert.Contains(t, out, "in_progress")

	out, err = f.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1*", "active task is marked")

	f.clock = f.clock.Add(10 * time.Minute)
	_, err = f.run(t, "pause 1")
	require.NoError(t, err)

	f.clock = f.clock.Add(5 * time.Minute)
	_, err = f.run(t, "resume 1")
	require.NoError(t, err)

	f.clock = f.clock.Add(35 * time.Minute)
	out, err = f.run(t, "stop 1")
	require.NoError(t, err)
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "actual=45m")
	assert.Contains(t, out, "diff=+15m")
}

func TestShellRejectsInvalidTransition(t *testing.T) {
	f := newFixture(t, "maria")

	_, err := f.run(t, "pause 1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.True(t, domain.IsValidation(err))
}

func TestShellRequiresStaff(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.run(t, "start 1")
	assert.ErrorIs(t, err, errNoStaff)
}

func TestShellReportIssueWithPhoto(t *testing.T) {
	f := newFixture(t, "maria")

	photo := filepath.Join(t.TempDir(), "tap.png")
	require.NoError(t, os.WriteFile(photo, []byte("\x89PNG\r\n\x1a\nfake image"), 0o600))

	out, err := f.run(t, "issue 1 dripping tap --photo "+photo)
	require.NoError(t, err)
	assert.Contains(t, out, "repair_needed")
	assert.Contains(t, out, "photo=/photos/")

	tasks := f.sh.cache.Get()
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].IssueDescription)
	assert.Equal(t, "dripping tap", *tasks[0].IssueDescription)
	assert.True(t, tasks[0].IssueFlag)
}

func TestShellReportIssueNeedsDescription(t *testing.T) {
	f := newFixture(t, "maria")

	_, err := f.run(t, "issue 1")
	assert.ErrorIs(t, err, domain.ErrIssueDescriptionRequired)
}

func TestShellNotes(t *testing.T) {
	f := newFixture(t, "maria")

	_, err := f.run(t, "notes 1 towels missing")
	require.NoError(t, err)

	tasks := f.sh.cache.Get()
	require.Len(t, tasks, 1)
	assert.Equal(t, "towels missing", tasks[0].HousekeepingNotes)
	assert.Equal(t, domain.TaskStatusTodo, tasks[0].Status)
}

func TestShellRoomsAndCreate(t *testing.T) {
	f := newFixture(t, "maria")

	out, err := f.run(t, "rooms 2026-03-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Room 102")
	assert.Contains(t, out, "Suite 201")
	assert.NotContains(t, out, "Room 101")

	_, err = f.run(t, "create 101 2026-03-02 departure")
	assert.ErrorIs(t, err, domain.ErrRoomConflict)

	out, err = f.run(t, "create 102 2026-03-02 departure 4p")
	require.NoError(t, err)
	assert.Contains(t, out, "Room 102 todo")

	ids, err := f.store.FindTasks(context.Background(), domain.TaskFilter{RoomID: ptr.To("102")})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.NotNil(t, ids[0].TimeLimit)
	assert.Equal(t, 45, *ids[0].TimeLimit)
}

func TestShellInputErrors(t *testing.T) {
	f := newFixture(t, "maria")

	tests := []struct {
		line    string
		wantErr string
	}{
		{"dance", "unknown command"},
		{"start", "usage: start <task>"},
		{"start 7", "no task number 7"},
		{"rooms tomorrow", "invalid date"},
		{"create 102", "usage: create"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := f.run(t, tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	out, err := f.run(t, "   ")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestShellLoop(t *testing.T) {
	f := newFixture(t, "maria")

	in := strings.NewReader("help\nbogus\nquit\nlist\n")
	require.NoError(t, f.sh.loop(context.Background(), in))

	out := f.out.String()
	assert.Contains(t, out, "commands:")
	assert.Contains(t, out, `error: unknown command "bogus"`)
	assert.NotContains(t, out, "ROOM", "commands after quit are not run")
}

// endless yields "list" lines forever.
type endless struct{}

func (endless) Read(p []byte) (int, error) {
	n := 0
	for n+5 <= len(p) {
		n += copy(p[n:], "list\n")
	}
	return n, nil
}

func TestReadLinesStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lines := readLines(ctx, endless{})
	assert.Equal(t, "list", <-lines)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-lines:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond, "the reader goroutine exits instead of blocking on send")
}

func TestSessionScope(t *testing.T) {
	now := time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)

	scope, err := sessionScope("maria", "", false, now)
	require.NoError(t, err)
	require.NotNil(t, scope.StaffID)
	assert.Equal(t, "maria", *scope.StaffID)
	require.NotNil(t, scope.Date)
	assert.Equal(t, storetest.Day, *scope.Date)

	scope, err = sessionScope("maria", "", true, now)
	require.NoError(t, err)
	assert.Nil(t, scope.Date)

	scope, err = sessionScope("", "2026-03-05", false, now)
	require.NoError(t, err)
	assert.Nil(t, scope.StaffID)
	assert.Equal(t, "2026-03-05", domain.FormatDate(*scope.Date))

	_, err = sessionScope("maria", "05/03/2026", false, now)
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}
