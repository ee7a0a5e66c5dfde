package scheduler

import (
	"testing"
	"time"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
		rendered string
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron", rendered: "*/5 * * * *"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron", rendered: "0 0 * * *"},
		{name: "descriptor", raw: "@every 10m", kind: SpecCron, source: "cron", rendered: "@every 10m"},
		{name: "duration", raw: "10m", kind: SpecInterval, source: "duration", duration: 10 * time.Minute, rendered: "@every 10m0s"},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix", raw: "every: 00:10", kind: SpecInterval, source: "hhmm", duration: 10 * time.Minute},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
			if tt.rendered != "" && got.String() != tt.rendered {
				t.Fatalf("String() = %q, want %q", got.String(), tt.rendered)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "0s", "-5m", "00:00", "01:75", "cron:"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q): expected error", raw)
		}
	}
}
