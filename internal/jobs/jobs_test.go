package jobs

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(slog.Default())
}

func TestCreate_StartsPendingWithZeroProgress(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeFileIngestion)

	snap, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusPending, snap.Status)
	assert.Equal(t, 0.0, snap.Progress)
	assert.Equal(t, TypeFileIngestion, snap.Type)
	assert.Nil(t, snap.CompletedAt)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestStart_TransitionsToProcessing(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeURLScraping)

	m.Start(id)
	snap, _ := m.Get(id)
	assert.Equal(t, StatusProcessing, snap.Status)

	// Unknown ids are a no-op.
	m.Start("no-such-job")
}

func TestUpdateProgress_ClampsToUnitInterval(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeFileIngestion)
	m.Start(id)

	tests := []struct {
		in   float64
		want float64
	}{
		{-0.3, 0.0},
		{0.0, 0.0},
		{0.42, 0.42},
		{1.0, 1.0},
		{1.7, 1.0},
	}
	for _, tt := range tests {
		m.UpdateProgress(id, tt.in, "working")
		snap, _ := m.Get(id)
		assert.Equal(t, tt.want, snap.Progress, "progress %v", tt.in)
	}
}

func TestUpdateProgress_IgnoredOutsideProcessing(t *testing.T) {
	m := newTestManager()

	// Pending: update is a no-op.
	id := m.Create(TypeFileIngestion)
	m.UpdateProgress(id, 0.5, "too early")
	snap, _ := m.Get(id)
	assert.Equal(t, 0.0, snap.Progress)
	assert.Equal(t, "Job created", snap.Message)

	// Completed: late updates cannot corrupt the final record.
	m.Start(id)
	m.Complete(id, map[string]any{"chunks_created": 3})
	m.UpdateProgress(id, 0.1, "stale report")
	snap, _ = m.Get(id)
	assert.Equal(t, 1.0, snap.Progress)
	assert.Equal(t, "Job completed successfully", snap.Message)

	// Failed: same.
	id2 := m.Create(TypeFileIngestion)
	m.Start(id2)
	m.Fail(id2, "boom")
	m.UpdateProgress(id2, 0.9, "stale")
	snap, _ = m.Get(id2)
	assert.Equal(t, "Job failed: boom", snap.Message)
}

func TestComplete_SetsResultAndTimestamps(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeFileIngestion)
	m.Start(id)

	m.Complete(id, map[string]any{"documents_processed": 2})
	snap, _ := m.Get(id)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 1.0, snap.Progress)
	require.NotNil(t, snap.CompletedAt)
	assert.Equal(t, 2, snap.Result["documents_processed"])
}

func TestComplete_AllowedFromPending(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeFileIngestion)
	m.Complete(id, nil)

	snap, _ := m.Get(id)
	assert.Equal(t, StatusCompleted, snap.Status)
}

func TestFail_AllowedFromPending(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeFileIngestion)
	m.Fail(id, "unsupported file type: .exe")

	snap, _ := m.Get(id)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "unsupported file type: .exe", snap.Error)
	require.NotNil(t, snap.CompletedAt)
}

// Terminal transitions are first-commit-wins: a second Complete or Fail
// after a terminal state must not alter what is observable.
func TestTerminalTransitions_FirstCommitWins(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeFileIngestion)
	m.Start(id)
	m.Complete(id, map[string]any{"chunks_created": 1})

	first, _ := m.Get(id)

	m.Fail(id, "late failure")
	m.Complete(id, map[string]any{"chunks_created": 99})

	snap, _ := m.Get(id)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, first.Message, snap.Message)
	assert.Equal(t, first.CompletedAt, snap.CompletedAt)
	assert.Equal(t, 1, snap.Result["chunks_created"])
	assert.Empty(t, snap.Error)
}

func TestCleanup_RemovesOnlyOldTerminalJobs(t *testing.T) {
	m := newTestManager()

	done := m.Create(TypeFileIngestion)
	m.Start(done)
	m.Complete(done, nil)

	failed := m.Create(TypeURLScraping)
	m.Fail(failed, "nope")

	pending := m.Create(TypeFileIngestion)
	processing := m.Create(TypeWebsiteCrawling)
	m.Start(processing)

	// maxAge 0 removes every terminal job and no live job.
	removed := m.Cleanup(0)
	assert.Equal(t, 2, removed)

	_, ok := m.Get(done)
	assert.False(t, ok)
	_, ok = m.Get(failed)
	assert.False(t, ok)
	_, ok = m.Get(pending)
	assert.True(t, ok)
	_, ok = m.Get(processing)
	assert.True(t, ok)

	// Recent terminal jobs survive a large threshold.
	again := m.Create(TypeFileIngestion)
	m.Start(again)
	m.Complete(again, nil)
	assert.Equal(t, 0, m.Cleanup(24*time.Hour))
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	m := newTestManager()
	var ids []string
	for range 5 {
		ids = append(ids, m.Create(TypeFileIngestion))
		time.Sleep(time.Millisecond)
	}

	all := m.List(0)
	require.Len(t, all, 5)
	assert.Equal(t, ids[4], all[0].ID)
	assert.Equal(t, ids[0], all[4].ID)

	limited := m.List(2)
	require.Len(t, limited, 2)
	assert.Equal(t, ids[4], limited[0].ID)
}

func TestGet_UnknownJob(t *testing.T) {
	m := newTestManager()
	_, ok := m.Get("missing")
	assert.False(t, ok)
}
