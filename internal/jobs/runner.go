package jobs

import (
	"context"
	"fmt"
)

// Reporter receives progress from a pipeline stage. Fractions are in [0,1]
// relative to whatever interval the reporter covers.
type Reporter interface {
	Report(message string, fraction float64)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(message string, fraction float64)

func (f ReporterFunc) Report(message string, fraction float64) { f(message, fraction) }

// Discard ignores all progress reports. Useful for synchronous callers
// that have no job to report into.
var Discard Reporter = ReporterFunc(func(string, float64) {})

// Stage returns a reporter that maps its [0,1] input onto the [lo,hi]
// sub-range of the parent. Each pipeline stage owns one sub-range, which
// keeps multi-stage progress composition out of the stages themselves.
func Stage(parent Reporter, lo, hi float64) Reporter {
	if parent == nil {
		return Discard
	}
	return ReporterFunc(func(message string, fraction float64) {
		parent.Report(message, lo+clamp(fraction)*(hi-lo))
	})
}

// Result is the outcome a pipeline returns to the job driver.
type Result struct {
	Success bool
	Error   string
	Data    map[string]any
}

// Work is a unit of background work bound to a job. It reports progress
// through the supplied Reporter and never touches the Manager directly.
type Work func(ctx context.Context, r Reporter) Result

// Run drives a job through its lifecycle: it marks the job processing,
// invokes the work with a reporter bound to the job id, and commits the
// terminal state from the returned result. A panic inside the work is
// recovered and committed as a failure so the job record never hangs.
func (m *Manager) Run(ctx context.Context, id string, work Work) {
	m.Start(id)

	defer func() {
		if r := recover(); r != nil {
			m.log.Error("job panicked", "job_id", id, "panic", r)
			m.Fail(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	reporter := ReporterFunc(func(message string, fraction float64) {
		m.UpdateProgress(id, fraction, message)
	})

	result := work(ctx, reporter)
	if result.Success {
		m.Complete(id, result.Data)
		return
	}
	errMsg := result.Error
	if errMsg == "" {
		errMsg = "Unknown error"
	}
	m.Fail(id, errMsg)
}
