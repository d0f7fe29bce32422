package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_MapsFractionIntoSubRange(t *testing.T) {
	var gotMsg string
	var gotFrac float64
	parent := ReporterFunc(func(msg string, frac float64) {
		gotMsg = msg
		gotFrac = frac
	})

	stage := Stage(parent, 0.3, 0.8)

	stage.Report("halfway", 0.5)
	assert.Equal(t, "halfway", gotMsg)
	assert.InDelta(t, 0.55, gotFrac, 1e-9)

	stage.Report("start", 0)
	assert.InDelta(t, 0.3, gotFrac, 1e-9)

	stage.Report("end", 1)
	assert.InDelta(t, 0.8, gotFrac, 1e-9)

	// Out-of-range stage fractions are clamped before mapping.
	stage.Report("over", 2.5)
	assert.InDelta(t, 0.8, gotFrac, 1e-9)
}

func TestStage_NestedComposition(t *testing.T) {
	var gotFrac float64
	parent := ReporterFunc(func(_ string, frac float64) { gotFrac = frac })

	outer := Stage(parent, 0.5, 1.0)
	inner := Stage(outer, 0.0, 0.4)

	inner.Report("nested", 0.5)
	assert.InDelta(t, 0.6, gotFrac, 1e-9)
}

func TestStage_NilParent(t *testing.T) {
	r := Stage(nil, 0, 1)
	assert.NotPanics(t, func() { r.Report("noop", 0.5) })
}

func TestRun_SuccessfulWorkCompletesJob(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeFileIngestion)

	m.Run(context.Background(), id, func(ctx context.Context, r Reporter) Result {
		// The job must be processing while the work runs, so progress
		// reports land.
		snap, _ := m.Get(id)
		assert.Equal(t, StatusProcessing, snap.Status)

		r.Report("chunking", 0.5)
		snap, _ = m.Get(id)
		assert.Equal(t, 0.5, snap.Progress)
		assert.Equal(t, "chunking", snap.Message)

		return Result{Success: true, Data: map[string]any{"chunks_created": 4}}
	})

	snap, _ := m.Get(id)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 1.0, snap.Progress)
	assert.Equal(t, 4, snap.Result["chunks_created"])
}

func TestRun_FailedResultFailsJob(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeURLScraping)

	m.Run(context.Background(), id, func(ctx context.Context, r Reporter) Result {
		return Result{Success: false, Error: "Failed to scrape URL"}
	})

	snap, _ := m.Get(id)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "Failed to scrape URL", snap.Error)
}

func TestRun_FailedResultWithoutMessage(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeURLScraping)

	m.Run(context.Background(), id, func(ctx context.Context, r Reporter) Result {
		return Result{}
	})

	snap, _ := m.Get(id)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "Unknown error", snap.Error)
}

func TestRun_PanicIsCommittedAsFailure(t *testing.T) {
	m := newTestManager()
	id := m.Create(TypeFileIngestion)

	require.NotPanics(t, func() {
		m.Run(context.Background(), id, func(ctx context.Context, r Reporter) Result {
			panic("parser exploded")
		})
	})

	snap, _ := m.Get(id)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Contains(t, snap.Error, "parser exploded")
}
