package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/lesson-runner/internal/executor"
	"github.com/sakif/lesson-runner/internal/model"
)

// newTestDB opens a fresh in-memory database that is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testEntry(category, identifier string, i int, success bool) model.HistoryEntry {
	req := executor.ExecutionRequest{Category: category, Identifier: identifier, Mode: executor.ModeRemote}
	ms := 12.5
	kb := int64(3200 + i)
	res := executor.ExecutionResult{
		Success:     success,
		Stdout:      fmt.Sprintf("out %d\n", i),
		StatusLabel: executor.StatusAccepted,
		TimeMillis:  &ms,
		MemoryKB:    &kb,
		Token:       fmt.Sprintf("tok-%d", i),
		Mode:        executor.ModeRemote,
		Lesson:      req.Ref(),
	}
	if !success {
		res.StatusLabel = "Compilation Error"
		res.Stderr = "SyntaxError: invalid syntax"
	}
	return model.NewHistoryEntry(req, res, time.Date(2026, 3, 4, 5, 6, i, 1000*i, time.UTC))
}

func TestLoad_Empty(t *testing.T) {
	db := newTestDB(t)

	entries, err := db.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestAppend_LoadPreservesOrderAndFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	want := []model.HistoryEntry{
		testEntry("basics", "01_hello", 1, true),
		testEntry("basics", "02_loops", 2, false),
		testEntry("advanced", "01_async", 3, true),
	}
	for _, e := range want {
		require.NoError(t, db.Append(ctx, e))
	}

	got, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAppend_DuplicateIDRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := testEntry("basics", "01_hello", 1, true)

	require.NoError(t, db.Append(ctx, e))
	assert.Error(t, db.Append(ctx, e))

	entries, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListByLesson(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Append(ctx, testEntry("basics", "01_hello", 1, false)))
	require.NoError(t, db.Append(ctx, testEntry("basics", "02_loops", 2, true)))
	require.NoError(t, db.Append(ctx, testEntry("basics", "01_hello", 3, true)))

	got, err := db.ListByLesson(ctx, "basics", "01_hello")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].Result.Success)
	assert.True(t, got[1].Result.Success)

	none, err := db.ListByLesson(ctx, "basics", "99_missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReopenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	db, err := New(path)
	require.NoError(t, err)
	for i := range 4 {
		require.NoError(t, db.Append(ctx, testEntry("basics", fmt.Sprintf("%02d_x", i), i, true)))
	}
	require.NoError(t, db.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	entries, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("%02d_x", i), e.Identifier)
	}
}

func TestAppend_ClosedDatabase(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = db.Append(context.Background(), testEntry("basics", "01_hello", 1, true))
	assert.Error(t, err)
}
