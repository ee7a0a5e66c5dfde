package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"ytnotify/internal/watcher"
	logx "ytnotify/pkg/logx"
)

// Lifecycle is the externally visible state of a Poller.
type Lifecycle int32

const (
	Idle Lifecycle = iota
	Running
	Draining
	Stopped
)

func (l Lifecycle) String() string {
	switch l {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Target is what the poller drives. *watcher.Service implements it.
type Target interface {
	RunCycle(ctx context.Context) watcher.Result
	TryRun(ctx context.Context) (watcher.Result, bool)
	Flush(ctx context.Context) error
}

type Config struct {
	// Schedule accepts anything ParseSchedule does. Default "10m".
	Schedule string
	Timezone string // IANA TZ for cron schedules; empty means Local
}

const DefaultSchedule = "10m"

// Hooks are optional lifecycle callbacks. They run on the Run goroutine.
type Hooks struct {
	// Primed runs after the startup cycle, before the first tick.
	Primed func(watcher.Result)
	// Draining runs once shutdown starts.
	Draining func()
}

type Poller struct {
	cfg    Config
	spec   ParsedSpec
	sched  cron.Schedule
	loc    *time.Location
	target Target
	hooks  Hooks
	log    logx.Logger

	state   atomic.Int32
	ticks   atomic.Uint64
	dropped atomic.Uint64

	mu    sync.Mutex
	c     *cron.Cron
	entry cron.EntryID
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func New(cfg Config, target Target, hooks Hooks, log logx.Logger) (*Poller, error) {
	if target == nil {
		return nil, errors.New("scheduler: target is nil")
	}
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = DefaultSchedule
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "scheduler"))

	ps, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	var sched cron.Schedule
	if ps.Kind == SpecInterval {
		sched = intervalSchedule{every: ps.Every}
	} else {
		sched, err = cronParser.Parse(ps.Cron)
		if err != nil {
			return nil, err
		}
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}

	return &Poller{cfg: cfg, spec: ps, sched: sched, loc: loc, target: target, hooks: hooks, log: log}, nil
}

// Run primes, then ticks until ctx is done, then drains: no new ticks, the
// in-flight cycle (if any) finishes, and the state is flushed.
//
// The returned error is the flush error, if any.
func (p *Poller) Run(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return errors.New("scheduler: already started")
	}
	p.log.Info("poller started", logx.String("schedule", p.spec.String()), logx.String("tz", p.loc.String()))

	res := p.target.RunCycle(ctx)
	p.log.Info("priming cycle done", logx.String("outcome", string(res.Outcome)), logx.Duration("took", res.Took))
	if p.hooks.Primed != nil {
		p.hooks.Primed(res)
	}

	if ctx.Err() == nil {
		p.startCron(ctx)
		<-ctx.Done()
	}

	p.state.Store(int32(Draining))
	p.log.Info("draining")
	if p.hooks.Draining != nil {
		p.hooks.Draining()
	}
	start := time.Now()
	p.stopCron()

	err := p.target.Flush(context.WithoutCancel(ctx))
	p.state.Store(int32(Stopped))
	p.log.Info("poller stopped",
		logx.Uint64("ticks", p.ticks.Load()),
		logx.Uint64("dropped", p.dropped.Load()),
		logx.Duration("drain", time.Since(start)),
	)
	return err
}

func (p *Poller) startCron(ctx context.Context) {
	cl := cronLogger{log: p.log}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(p.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	id := c.Schedule(p.sched, cron.FuncJob(func() { p.tick(ctx) }))

	p.mu.Lock()
	p.c, p.entry = c, id
	p.mu.Unlock()

	c.Start()
	if next := c.Entry(id).Next; !next.IsZero() {
		p.log.Debug("next check", logx.Time("at", next))
	}
}

// stopCron stops triggering and waits for a running tick to return.
func (p *Poller) stopCron() {
	p.mu.Lock()
	c := p.c
	p.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

func (p *Poller) tick(ctx context.Context) {
	p.ticks.Add(1)
	if _, ok := p.target.TryRun(ctx); !ok {
		p.dropped.Add(1)
	}
}

// Snapshot is a point-in-time view for status output.
type Snapshot struct {
	Lifecycle Lifecycle
	Schedule  string
	Next      time.Time
	Prev      time.Time
	Ticks     uint64
	Dropped   uint64
}

func (p *Poller) Lifecycle() Lifecycle { return Lifecycle(p.state.Load()) }

func (p *Poller) Snapshot() Snapshot {
	s := Snapshot{
		Lifecycle: p.Lifecycle(),
		Schedule:  p.spec.String(),
		Ticks:     p.ticks.Load(),
		Dropped:   p.dropped.Load(),
	}
	p.mu.Lock()
	c, id := p.c, p.entry
	p.mu.Unlock()
	if c != nil && s.Lifecycle == Running {
		e := c.Entry(id)
		s.Next, s.Prev = e.Next, e.Prev
	}
	return s
}

// intervalSchedule fires every `every` after the previous activation. Unlike
// cron.Every it keeps sub-second precision.
type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time { return t.Add(s.every) }

// cronLogger routes robfig/cron's internal logging into logx. cron reports
// every wake-up at Info, which is trace noise here.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, kv ...any) {
	if !l.log.Enabled(logx.LevelTrace) {
		return
	}
	l.log.Trace("cron "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
