package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// State is the durable dedup record.
//
// LastVideoID is empty until the first baseline is taken; it is persisted as
// null in that case.
type State struct {
	LastVideoID string
	Initialized bool
}

// Store loads and saves State.
//
// Load returns the zero State with a nil error when no record exists yet.
// When a record exists but cannot be read, Load returns the zero State together
// with the error; callers treat that as a cold start.
//
// Save returns only once the record has been forced to stable storage.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON document at Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// record is the on-disk JSON shape shared by the file driver and CLI output.
type record struct {
	LastVideoID *string `json:"last_video_id"`
	Initialized bool    `json:"initialized"`
}

func toRecord(st State) record {
	r := record{Initialized: st.Initialized}
	if st.LastVideoID != "" {
		id := st.LastVideoID
		r.LastVideoID = &id
	}
	return r
}

func fromRecord(r record) State {
	st := State{Initialized: r.Initialized}
	if r.LastVideoID != nil {
		st.LastVideoID = *r.LastVideoID
	}
	return st
}
