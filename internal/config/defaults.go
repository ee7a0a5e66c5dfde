package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ytnotify/internal/task/scheduler"
	kit "ytnotify/internal/transport"
)

const (
	DefaultPollInterval    = "10m"
	DefaultStaleAfter      = 24 * time.Hour
	DefaultYouTubeTimeout  = 15 * time.Second
	DefaultTelegramTimeout = 25 * time.Second
	DefaultStorageDriver   = "file"
	DefaultStatePath       = "./bot_state.json"
	DefaultStatusAddr      = "0.0.0.0:8000"
	DefaultLogLevel        = "info"
)

// ErrMissing marks a required setting that is empty after file, environment
// and defaults have been applied.
var ErrMissing = errors.New("missing required setting")

// ApplyDefaults fills empty optional fields in place.
func ApplyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Watcher.PollInterval) == "" {
		cfg.Watcher.PollInterval = DefaultPollInterval
	}
	if strings.TrimSpace(cfg.Watcher.StaleAfter) == "" {
		cfg.Watcher.StaleAfter = DefaultStaleAfter.String()
	}
	if strings.TrimSpace(cfg.Storage.Driver) == "" {
		cfg.Storage.Driver = DefaultStorageDriver
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" && strings.EqualFold(cfg.Storage.Driver, DefaultStorageDriver) {
		cfg.Storage.Path = DefaultStatePath
	}
	if strings.TrimSpace(cfg.Status.Addr) == "" {
		cfg.Status.Addr = DefaultStatusAddr
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
}

// Validate reports every problem at once.
func Validate(cfg *Config) error {
	var errs []error
	missing := func(field, env string) {
		errs = append(errs, fmt.Errorf("%s (env %s): %w", field, env, ErrMissing))
	}

	if strings.TrimSpace(cfg.YouTube.APIKey) == "" {
		missing("youtube.api_key", EnvYouTubeKey)
	}
	if strings.TrimSpace(cfg.YouTube.ChannelID) == "" {
		missing("youtube.channel_id", EnvYouTubeChannel)
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		missing("telegram.token", EnvTelegramToken)
	}
	if strings.TrimSpace(cfg.Telegram.Channel) == "" {
		missing("telegram.channel", EnvTelegramChannel)
	} else if _, err := kit.ParseChatTarget(cfg.Telegram.Channel); err != nil {
		errs = append(errs, fmt.Errorf("telegram.channel: %w", err))
	}

	if _, err := scheduler.ParseSchedule(cfg.Watcher.PollInterval); err != nil {
		errs = append(errs, fmt.Errorf("watcher.poll_interval: %w", err))
	}
	if d, err := ParseDurationField("watcher.stale_after", cfg.Watcher.StaleAfter); err != nil {
		errs = append(errs, err)
	} else if d <= 0 {
		errs = append(errs, errors.New("watcher.stale_after: must be > 0"))
	}
	for path, raw := range map[string]string{
		"youtube.timeout":      cfg.YouTube.Timeout,
		"telegram.timeout":     cfg.Telegram.Timeout,
		"storage.busy_timeout": cfg.Storage.BusyTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" && !strings.EqualFold(cfg.Storage.Driver, "file") {
			errs = append(errs, fmt.Errorf("storage.path: %w", ErrMissing))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	if lt := cfg.Logging.Telegram; lt.Enabled {
		if _, err := kit.ParseChatTarget(lt.Chat); err != nil {
			errs = append(errs, fmt.Errorf("logging.telegram.chat: %w", err))
		}
	}
	return errors.Join(errs...)
}
