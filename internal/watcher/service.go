// Package watcher runs the detect-and-notify cycle for one channel.
//
// A Service owns the dedup state and a single run lock. The priming cycle,
// every scheduled cycle and the shutdown flush all take that lock, so the
// sequence of committed states is totally ordered.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ytnotify/internal/eventbus"
	"ytnotify/internal/source"
	"ytnotify/internal/storage"
	logx "ytnotify/pkg/logx"
)

const DefaultStaleAfter = 24 * time.Hour

type Config struct {
	ChannelID string
	// StaleAfter is the maximum candidate age still eligible for an alert.
	StaleAfter time.Duration
}

type Option func(*Service)

func WithLogger(log logx.Logger) Option { return func(s *Service) { s.log = log } }

func WithBus(bus eventbus.Bus) Option { return func(s *Service) { s.bus = bus } }

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

type Service struct {
	cfg      Config
	fetcher  source.Fetcher
	notifier Notifier
	store    storage.Store
	log      logx.Logger
	bus      eventbus.Bus
	now      func() time.Time

	// run is the run-exclusion lock; state is only touched while holding it.
	run   sync.Mutex
	state storage.State

	snapMu sync.RWMutex
	snap   Status
}

// New loads the persisted state and returns a ready service.
// A load failure is logged and treated as a cold start.
func New(ctx context.Context, cfg Config, fetcher source.Fetcher, notifier Notifier, store storage.Store, opts ...Option) (*Service, error) {
	if strings.TrimSpace(cfg.ChannelID) == "" {
		return nil, errors.New("watcher: channel id is empty")
	}
	if fetcher == nil || notifier == nil || store == nil {
		return nil, errors.New("watcher: fetcher, notifier and store are required")
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	s := &Service{
		cfg:      cfg,
		fetcher:  fetcher,
		notifier: notifier,
		store:    store,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.With(logx.String("comp", "watcher"))

	st, err := store.Load(ctx)
	if err != nil {
		s.log.Warn("state unreadable, starting cold", logx.Err(err))
		st = storage.State{}
	}
	s.state = st
	s.snap = Status{LastVideoID: st.LastVideoID, Initialized: st.Initialized}
	s.log.Info("state loaded",
		logx.String("channel_id", cfg.ChannelID),
		logx.String("last_video_id", st.LastVideoID),
		logx.Bool("initialized", st.Initialized),
		logx.Duration("stale_after", cfg.StaleAfter),
	)
	return s, nil
}

// RunCycle waits for the run lock and executes one cycle.
func (s *Service) RunCycle(ctx context.Context) Result {
	s.run.Lock()
	defer s.run.Unlock()
	return s.cycle(ctx)
}

// TryRun executes one cycle unless another one holds the run lock, in which
// case the call is dropped and ok is false.
func (s *Service) TryRun(ctx context.Context) (res Result, ok bool) {
	if !s.run.TryLock() {
		s.log.Debug("cycle still running, tick dropped")
		s.publish(EventTickDropped, nil)
		return Result{}, false
	}
	defer s.run.Unlock()
	return s.cycle(ctx), true
}

// Flush re-persists the current in-memory state. It waits for an in-flight
// cycle to finish first.
func (s *Service) Flush(ctx context.Context) error {
	s.run.Lock()
	defer s.run.Unlock()
	if err := s.store.Save(context.WithoutCancel(ctx), s.state); err != nil {
		s.log.Error("final state flush failed", logx.Err(err))
		return fmt.Errorf("flush state: %w", err)
	}
	s.log.Info("state flushed",
		logx.String("last_video_id", s.state.LastVideoID),
		logx.Bool("initialized", s.state.Initialized),
	)
	return nil
}

// Evaluate fetches the newest candidate and reports the outcome a real cycle
// would reach, without notifying or persisting.
func (s *Service) Evaluate(ctx context.Context) (Result, error) {
	s.run.Lock()
	st := s.state
	s.run.Unlock()

	start := s.now()
	c, err := s.fetcher.Latest(ctx, s.cfg.ChannelID)
	if err != nil {
		res := Result{Outcome: OutcomeNoOp, Err: err, Took: s.now().Sub(start)}
		if errors.Is(err, source.ErrNoResult) {
			return res, nil
		}
		return res, err
	}
	act := decide(st, c, s.now(), s.cfg.StaleAfter)
	return Result{Outcome: act.outcome(), Candidate: c, Took: s.now().Sub(start)}, nil
}

// State returns the in-memory committed state.
func (s *Service) State() storage.State {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return storage.State{LastVideoID: s.snap.LastVideoID, Initialized: s.snap.Initialized}
}

// Status never blocks on a running cycle.
func (s *Service) Status() Status {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// cycle runs with s.run held. Network calls are bounded by their transport
// timeouts only; cancellation of ctx does not abort an in-flight cycle.
func (s *Service) cycle(ctx context.Context) Result {
	ctx = context.WithoutCancel(ctx)
	start := s.now()
	res := Result{CycleID: uuid.NewString()}
	log := s.log.With(logx.String("cycle_id", res.CycleID))

	res.Outcome, res.Candidate, res.Err, res.SaveErr = s.step(ctx, log)
	res.Took = s.now().Sub(start)

	s.snapMu.Lock()
	s.snap.LastVideoID = s.state.LastVideoID
	s.snap.Initialized = s.state.Initialized
	s.snap.LastOutcome = res.Outcome
	s.snap.LastCycleAt = start
	s.snap.Cycles++
	s.snapMu.Unlock()

	log.Debug("cycle done", logx.String("outcome", string(res.Outcome)), logx.Duration("took", res.Took))
	s.publish(EventCycle, CycleEvent{
		Outcome:    res.Outcome,
		VideoID:    res.Candidate.ID,
		Took:       res.Took,
		SaveFailed: res.SaveErr != nil,
	})
	return res
}

func (s *Service) step(ctx context.Context, log logx.Logger) (Outcome, source.Candidate, error, error) {
	c, err := s.fetcher.Latest(ctx, s.cfg.ChannelID)
	if err != nil {
		if errors.Is(err, source.ErrNoResult) {
			log.Debug("channel has no videos")
		} else {
			log.Warn("fetch failed", logx.Err(err))
		}
		return OutcomeNoOp, source.Candidate{}, err, nil
	}
	log = log.With(logx.String("video_id", c.ID))

	switch decide(s.state, c, s.now(), s.cfg.StaleAfter) {
	case actSkipStale:
		log.Info("newest video is stale, skipping", logx.Time("published_at", c.PublishedAt))
		return OutcomeSkippedStale, c, nil, nil

	case actBaseline:
		saveErr := s.commit(ctx, log, c.ID)
		log.Info("baseline taken, no alert sent", logx.String("title", c.Title))
		return OutcomeInitialized, c, nil, saveErr

	case actSkipDuplicate:
		log.Debug("already notified")
		return OutcomeSkippedDuplicate, c, nil, nil
	}

	if err := s.notifier.Notify(ctx, c); err != nil {
		log.Error("notification failed, will retry next cycle", logx.Err(err))
		return OutcomeNotifyFailed, c, err, nil
	}
	saveErr := s.commit(ctx, log, c.ID)
	log.Info("new video notified", logx.String("title", c.Title))
	return OutcomeNotified, c, nil, saveErr
}

// commit adopts id as the last notified video and persists it. The in-memory
// state moves even when the save fails.
func (s *Service) commit(ctx context.Context, log logx.Logger, id string) error {
	s.state = storage.State{LastVideoID: id, Initialized: true}
	if err := s.store.Save(ctx, s.state); err != nil {
		log.Error("state save failed", logx.Err(err))
		return err
	}
	return nil
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}
