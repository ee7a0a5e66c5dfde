// Package source defines what the watcher needs from a content platform:
// the newest item of one channel, or a classified failure.
package source

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoResult means the channel has no videos. It is not a failure.
	ErrNoResult = errors.New("no videos")

	// ErrTransport covers network errors, timeouts and non-auth HTTP failures.
	ErrTransport = errors.New("source transport failure")
	// ErrAuth covers rejected credentials and exhausted quota.
	ErrAuth = errors.New("source auth or quota failure")
	// ErrMalformed means the response was missing expected fields.
	ErrMalformed = errors.New("source response malformed")
)

// Candidate is the newest item returned for the watched channel.
type Candidate struct {
	ID          string
	Title       string
	PublishedAt time.Time
}

// Fetcher returns the single newest video of a channel.
// It returns ErrNoResult when there is none; every other error wraps one of
// ErrTransport, ErrAuth or ErrMalformed.
type Fetcher interface {
	Latest(ctx context.Context, channelID string) (Candidate, error)
}
