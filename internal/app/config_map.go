package app

import (
	"strings"
	"time"

	"ytnotify/internal/config"
	"ytnotify/internal/observability/statusd"
	"ytnotify/internal/source/youtube"
	"ytnotify/internal/task/scheduler"
	kit "ytnotify/internal/transport"
	"ytnotify/internal/transport/telegram"
	"ytnotify/internal/watcher"
	logx "ytnotify/pkg/logx"
)

func mapYouTubeConfig(cfg *config.Config) (youtube.Config, error) {
	timeout, err := config.ParseDurationOrDefault("youtube.timeout", cfg.YouTube.Timeout, config.DefaultYouTubeTimeout)
	if err != nil {
		return youtube.Config{}, err
	}
	return youtube.Config{
		APIKey:   cfg.YouTube.APIKey,
		Endpoint: strings.TrimSpace(cfg.YouTube.Endpoint),
		Timeout:  timeout,
	}, nil
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, kit.ChatTarget, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, config.DefaultTelegramTimeout)
	if err != nil {
		return telegram.Config{}, kit.ChatTarget{}, err
	}
	target, err := kit.ParseChatTarget(cfg.Telegram.Channel)
	if err != nil {
		return telegram.Config{}, kit.ChatTarget{}, err
	}
	target.ThreadID = cfg.Telegram.ThreadID
	return telegram.Config{Token: cfg.Telegram.Token, APIURL: cfg.Telegram.APIURL, Timeout: timeout}, target, nil
}

func mapWatcherConfig(cfg *config.Config) (watcher.Config, error) {
	stale, err := config.ParseDurationOrDefault("watcher.stale_after", cfg.Watcher.StaleAfter, config.DefaultStaleAfter)
	if err != nil {
		return watcher.Config{}, err
	}
	return watcher.Config{ChannelID: strings.TrimSpace(cfg.YouTube.ChannelID), StaleAfter: stale}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Schedule: cfg.Watcher.PollInterval, Timezone: cfg.Watcher.Timezone}
}

func mapStatusConfig(cfg *config.Config) statusd.Config {
	return statusd.Config{
		Addr:          cfg.Status.Addr,
		Pprof:         cfg.Status.Pprof,
		Token:         cfg.Status.Token,
		AllowInsecure: cfg.Status.AllowInsecure,
	}
}

// mapLogConfig also returns the ops chat for the Telegram log sink, if any.
func mapLogConfig(cfg *config.Config) (logx.Config, kit.ChatTarget) {
	lc := cfg.Logging
	out := logx.Config{
		Level:   lc.Level,
		Console: cfg.ConsoleEnabled(),
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
	var target kit.ChatTarget
	if lc.Telegram.Enabled {
		t, err := kit.ParseChatTarget(lc.Telegram.Chat)
		if err != nil {
			out.Telegram.Enabled = false
		} else {
			target = t
			target.ThreadID = lc.Telegram.ThreadID
		}
	}
	return out, target
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
