// Package run holds the shared vocabulary of one engine run: modes, date
// windows, run records and lifecycle events.
package run

import (
	"time"

	"github.com/google/uuid"

	"github.com/sofiapulse/pulse/pkg/serrors"
)

// Mode selects which rows of the source a run processes.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
	ModeDateRange   Mode = "date_range"
)

// ParseMode validates a caller-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeIncremental, ModeDateRange:
		return Mode(s), nil
	case "":
		return "", serrors.NewFieldRequiredError("mode")
	default:
		return "", serrors.NewFieldInvalidError("mode", "expected full|incremental|date_range")
	}
}

// Window is a date range interpreted as the half-open interval
// [Since, Until+1d). Either bound may be zero.
type Window struct {
	Since time.Time
	Until time.Time
}

func (w Window) IsZero() bool {
	return w.Since.IsZero() && w.Until.IsZero()
}

// UpperBound returns the exclusive upper bound of the window.
func (w Window) UpperBound() time.Time {
	return w.Until.AddDate(0, 0, 1)
}

// Component identifies which half of the engine executed a run.
type Component string

const (
	ComponentNormalizer Component = "normalizer"
	ComponentAggregator Component = "aggregator"
)

// Status is the terminal state of a run. Runs move
// pending -> running -> (committed | rolled_back).
type Status string

const (
	StatusRunning    Status = "running"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// Record is one row of collector_runs: the observability contract external
// collaborators consume.
type Record struct {
	RunID          uuid.UUID
	Component      Component
	Target         string
	Mode           Mode
	Params         map[string]any
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         Status
	ItemsProcessed int64
	ItemsFailed    int64
	ErrorMessage   string
}

// Started is published on the event bus when a run opens its transaction.
type Started struct {
	RunID     uuid.UUID
	Component Component
	Target    string
	Mode      Mode
	DryRun    bool
}

// Completed is published when a run reaches a terminal state.
type Completed struct {
	RunID     uuid.UUID
	Component Component
	Target    string
	Mode      Mode
	DryRun    bool
	Status    Status
	Affected  int64
	Duration  time.Duration
	Err       error
}
