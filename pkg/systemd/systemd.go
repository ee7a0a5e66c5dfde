// Package systemd speaks the sd_notify protocol: readiness, stopping and
// watchdog keep-alives. Outside systemd (no NOTIFY_SOCKET) every call is a
// no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Ready reports READY=1. sent is false when not running under systemd.
func Ready() (sent bool, err error) { return daemon.SdNotify(false, daemon.SdNotifyReady) }

// Stopping reports STOPPING=1.
func Stopping() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyStopping) }

// Status sets the free-form unit status line shown by systemctl.
func Status(msg string) (bool, error) { return daemon.SdNotify(false, "STATUS="+msg) }

// WatchdogInterval returns the keep-alive period, or 0 when the unit has no
// WatchdogSec or the watchdog is meant for another process.
func WatchdogInterval() (time.Duration, error) {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0, err
	}
	return d / 2, nil
}

// Watchdog sends WATCHDOG=1 every half watchdog period until ctx is done.
// healthy gates each ping; a nil healthy always pings.
func Watchdog(ctx context.Context, healthy func() bool) error {
	every, err := WatchdogInterval()
	if err != nil || every <= 0 {
		return err
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if healthy != nil && !healthy() {
				continue
			}
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				return err
			}
		}
	}
}
