// Package metrics exposes watcher activity as Prometheus metrics. It learns
// about cycles from the event bus, so the watcher never imports it.
package metrics

import (
	"context"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"ytnotify/internal/eventbus"
	"ytnotify/internal/watcher"
)

const namespace = "ytnotify"

type Recorder struct {
	cycles       *prom.CounterVec
	duration     prom.Histogram
	dropped      prom.Counter
	saveFailures prom.Counter
	lastNotified prom.Gauge
}

// NewRecorder registers the watcher metrics plus Go runtime and process
// collectors on reg. A nil reg gets a fresh registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		cycles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Check cycles by outcome",
		}, []string{"outcome"}),
		duration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a check cycle including fetch and delivery",
			Buckets:   prom.DefBuckets,
		}),
		dropped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_dropped_total",
			Help:      "Poll ticks dropped because a cycle was still running",
		}),
		saveFailures: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "state_save_failures_total",
			Help:      "Cycles whose state change could not be persisted",
		}),
		lastNotified: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_notified_timestamp_seconds",
			Help:      "Unix time of the last delivered alert",
		}),
	}
	for _, o := range watcher.Outcomes {
		r.cycles.WithLabelValues(string(o))
	}
	reg.MustRegister(
		r.cycles, r.duration, r.dropped, r.saveFailures, r.lastNotified,
		promcollect.NewGoCollector(),
		promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
	)
	return r
}

// Observe folds one bus event into the metrics. Unknown events are ignored.
func (r *Recorder) Observe(e eventbus.Event) {
	if r == nil {
		return
	}
	switch e.Type {
	case watcher.EventTickDropped:
		r.dropped.Inc()
	case watcher.EventCycle:
		ce, ok := e.Data.(watcher.CycleEvent)
		if !ok {
			return
		}
		r.cycles.WithLabelValues(string(ce.Outcome)).Inc()
		r.duration.Observe(ce.Took.Seconds())
		if ce.SaveFailed {
			r.saveFailures.Inc()
		}
		if ce.Outcome == watcher.OutcomeNotified {
			ts := e.Time
			if ts.IsZero() {
				ts = time.Now()
			}
			r.lastNotified.Set(float64(ts.Unix()))
		}
	}
}

// Consume feeds bus events into Observe until ctx is done.
func (r *Recorder) Consume(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			r.Observe(e)
		}
	}
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
