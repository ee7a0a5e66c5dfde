package config

// Config is the on-disk configuration. Every section is optional; missing
// values come from the environment and then from defaults.
//
// Durations are Go duration strings ("15s", "10m", "24h").
type Config struct {
	YouTube  YouTubeConfig  `json:"youtube"`
	Telegram TelegramConfig `json:"telegram"`
	Watcher  WatcherConfig  `json:"watcher"`
	Storage  StorageConfig  `json:"storage"`
	Status   StatusConfig   `json:"status"`
	Logging  LoggingConfig  `json:"logging"`
}

type YouTubeConfig struct {
	APIKey    string `json:"api_key"` // env YT_KEY (do not log)
	ChannelID string `json:"channel_id"`
	// Endpoint overrides the Data API base URL; leave empty in production.
	Endpoint string `json:"endpoint,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"` // env TG_TOKEN (do not log)
	// Channel is the alert destination: "@channel" or a numeric chat id.
	Channel  string `json:"channel"`
	ThreadID int    `json:"thread_id,omitempty"`
	APIURL   string `json:"api_url,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

// WatcherConfig controls polling.
//
// PollInterval accepts a duration ("10m"), HH:MM ("00:10") or a cron
// expression ("*/10 * * * *", "@every 10m").
type WatcherConfig struct {
	PollInterval string `json:"poll_interval"`
	StaleAfter   string `json:"stale_after"`
	Timezone     string `json:"timezone,omitempty"` // cron schedules only
}

// StorageConfig selects the dedup state backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./ytnotify.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// StatusConfig controls the HTTP status server.
//
// Security note:
//   - pprof is only mounted when enabled. On a non-loopback address it also
//     needs a token, or allow_insecure.
type StatusConfig struct {
	Enabled       *bool  `json:"enabled,omitempty"` // default true
	Addr          string `json:"addr,omitempty"`
	Metrics       *bool  `json:"metrics,omitempty"` // default true
	Pprof         bool   `json:"pprof,omitempty"`
	Token         string `json:"token,omitempty"` // bearer token for pprof (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  *bool           `json:"console,omitempty"` // default true
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards warnings and errors to an ops chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	Chat       string `json:"chat"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StatusEnabled reports the effective status.enabled.
func (c *Config) StatusEnabled() bool { return c.Status.Enabled == nil || *c.Status.Enabled }

// MetricsEnabled reports the effective status.metrics.
func (c *Config) MetricsEnabled() bool { return c.Status.Metrics == nil || *c.Status.Metrics }

// ConsoleEnabled reports the effective logging.console.
func (c *Config) ConsoleEnabled() bool { return c.Logging.Console == nil || *c.Logging.Console }
