package watcher

import (
	"time"

	"ytnotify/internal/source"
	"ytnotify/internal/storage"
)

type action int

const (
	actSkipStale action = iota
	actBaseline
	actSkipDuplicate
	actNotify
)

// decide is the pure part of a cycle: what to do with a fetched candidate
// given the committed state.
func decide(st storage.State, c source.Candidate, now time.Time, staleAfter time.Duration) action {
	if now.Sub(c.PublishedAt) > staleAfter {
		return actSkipStale
	}
	if !st.Initialized {
		return actBaseline
	}
	if c.ID == st.LastVideoID {
		return actSkipDuplicate
	}
	return actNotify
}

func (a action) outcome() Outcome {
	switch a {
	case actSkipStale:
		return OutcomeSkippedStale
	case actBaseline:
		return OutcomeInitialized
	case actSkipDuplicate:
		return OutcomeSkippedDuplicate
	default:
		return OutcomeNotified
	}
}
