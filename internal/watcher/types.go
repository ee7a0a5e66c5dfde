package watcher

import (
	"context"
	"time"

	"ytnotify/internal/source"
)

// Outcome is the result class of one cycle.
type Outcome string

const (
	OutcomeNoOp             Outcome = "noop"
	OutcomeInitialized      Outcome = "initialized"
	OutcomeNotified         Outcome = "notified"
	OutcomeSkippedStale     Outcome = "skipped_stale"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeNotifyFailed     Outcome = "notify_failed"
)

// Outcomes lists every outcome, for metric pre-registration.
var Outcomes = []Outcome{
	OutcomeNoOp,
	OutcomeInitialized,
	OutcomeNotified,
	OutcomeSkippedStale,
	OutcomeSkippedDuplicate,
	OutcomeNotifyFailed,
}

// Notifier delivers one alert. A nil error means the destination
// acknowledged it.
type Notifier interface {
	Notify(ctx context.Context, c source.Candidate) error
}

// Result describes one cycle.
//
// Err carries the fetch or delivery error behind NoOp/NotifyFailed.
// SaveErr is set when the state changed in memory but could not be persisted.
type Result struct {
	CycleID   string
	Outcome   Outcome
	Candidate source.Candidate
	Err       error
	SaveErr   error
	Took      time.Duration
}

// Status is a read-only snapshot for health endpoints and the CLI.
type Status struct {
	LastVideoID string    `json:"last_video"`
	Initialized bool      `json:"initialized"`
	LastOutcome Outcome   `json:"last_outcome,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at,omitempty"`
	Cycles      uint64    `json:"cycles"`
}

// Bus event types published by the service.
const (
	EventCycle       = "watcher.cycle"
	EventTickDropped = "watcher.tick_dropped"
)

// CycleEvent is the Data of an EventCycle event.
type CycleEvent struct {
	Outcome    Outcome
	VideoID    string
	Took       time.Duration
	SaveFailed bool
}
