package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

var requiredEnv = map[string]string{
	EnvTelegramToken:   "123:abc",
	EnvTelegramChannel: "@news",
	EnvYouTubeKey:      "yt-key",
	EnvYouTubeChannel:  "UC123",
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadEnvOnlyAppliesDefaults(t *testing.T) {
	t.Parallel()

	m := NewManager("")
	m.SetLookup(envMap(requiredEnv))
	cfg, err := m.Load()
	require.NoError(t, err)

	require.Equal(t, "123:abc", cfg.Telegram.Token)
	require.Equal(t, "@news", cfg.Telegram.Channel)
	require.Equal(t, "UC123", cfg.YouTube.ChannelID)
	require.Equal(t, DefaultPollInterval, cfg.Watcher.PollInterval)
	require.Equal(t, "24h0m0s", cfg.Watcher.StaleAfter)
	require.Equal(t, "file", cfg.Storage.Driver)
	require.Equal(t, DefaultStatePath, cfg.Storage.Path)
	require.Equal(t, DefaultStatusAddr, cfg.Status.Addr)
	require.True(t, cfg.StatusEnabled())
	require.True(t, cfg.MetricsEnabled())
	require.True(t, cfg.ConsoleEnabled())
	require.Same(t, cfg, m.Get())
}

func TestLoadMissingRequired(t *testing.T) {
	t.Parallel()

	m := NewManager("")
	m.SetLookup(envMap(nil))
	_, err := m.Load()
	require.ErrorIs(t, err, ErrMissing)
	for _, want := range []string{"TG_TOKEN", "TG_CHANNEL", "YT_KEY", "YT_CHANNEL_ID"} {
		require.Contains(t, err.Error(), want)
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "ytnotify.yaml", `
youtube:
  api_key: file-key
  channel_id: UCfile
  timeout: 5s
telegram:
  token: "1:file"
  channel: "-100200"
watcher:
  poll_interval: "00:05"
  stale_after: 2h
storage:
  driver: sqlite
  path: ./state.db
status:
  enabled: false
`)
	env := map[string]string{EnvYouTubeKey: "env-key", EnvStaleAfter: "3h"}
	m := NewManager(p)
	m.SetLookup(envMap(env))
	cfg, err := m.Load()
	require.NoError(t, err)

	require.Equal(t, "env-key", cfg.YouTube.APIKey)
	require.Equal(t, "UCfile", cfg.YouTube.ChannelID)
	require.Equal(t, "00:05", cfg.Watcher.PollInterval)
	require.Equal(t, "3h", cfg.Watcher.StaleAfter)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Equal(t, "./state.db", cfg.Storage.Path)
	require.False(t, cfg.StatusEnabled())
}

func TestParseStrictJSON(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "c.json", `{"youtube":{"api_key":"k","chanel_id":"typo"}}`)
	_, err := NewManager(p).Parse()
	require.Error(t, err)
	require.Contains(t, err.Error(), "chanel_id")

	p = writeFile(t, "c.json", `{"youtube":{}} {"x":1}`)
	_, err = NewManager(p).Parse()
	require.Error(t, err)
}

func TestExampleConfigResolves(t *testing.T) {
	t.Parallel()

	m := NewManager(filepath.Join("..", "..", "config.example.yaml"))
	m.SetLookup(envMap(map[string]string{EnvTelegramToken: "123:abc", EnvYouTubeKey: "yt-key"}))
	cfg, err := m.Resolve()
	require.NoError(t, err)
	require.Equal(t, "10m", cfg.Watcher.PollInterval)
	require.Equal(t, "@my_channel", cfg.Telegram.Channel)
	require.True(t, cfg.MetricsEnabled())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		cfg := &Config{}
		ApplyEnv(cfg, envMap(requiredEnv))
		ApplyDefaults(cfg)
		return cfg
	}
	require.NoError(t, Validate(base()))

	tests := map[string]func(*Config){
		"watcher.poll_interval": func(c *Config) { c.Watcher.PollInterval = "often" },
		"watcher.stale_after":   func(c *Config) { c.Watcher.StaleAfter = "0s" },
		"telegram.timeout":      func(c *Config) { c.Telegram.Timeout = "soon" },
		"telegram.channel":      func(c *Config) { c.Telegram.Channel = "news" },
		"storage.driver":        func(c *Config) { c.Storage.Driver = "redis" },
		"logging.telegram.chat": func(c *Config) { c.Logging.Telegram.Enabled = true },
	}
	for field, mutate := range tests {
		t.Run(field, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), field)
		})
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	p := writeFile(t, ".env", "YTN_TEST_A=from-file\nYTN_TEST_B=from-file\n")
	t.Setenv("YTN_TEST_A", "from-env")
	t.Setenv("YTN_TEST_B", "")
	require.NoError(t, os.Unsetenv("YTN_TEST_B"))

	require.NoError(t, LoadDotEnv(p, filepath.Join(t.TempDir(), "missing.env")))
	require.Equal(t, "from-env", os.Getenv("YTN_TEST_A"))
	require.Equal(t, "from-file", os.Getenv("YTN_TEST_B"))
}

func TestChangedSections(t *testing.T) {
	t.Parallel()

	a := &Config{Logging: LoggingConfig{Level: "info"}}
	b := &Config{Logging: LoggingConfig{Level: "debug"}, Watcher: WatcherConfig{PollInterval: "5m"}}
	require.Equal(t, []string{"watcher", "logging"}, ChangedSections(a, b))
	require.Empty(t, ChangedSections(a, a))
	require.True(t, HotReloadable("logging"))
	require.False(t, HotReloadable("watcher"))
}

func TestWatchPublishesReload(t *testing.T) {
	t.Parallel()

	body := `{"youtube":{"api_key":"k","channel_id":"UC1"},"telegram":{"token":"t","channel":"@c"},"logging":{"level":"%s"}}`
	p := writeFile(t, "c.json", strings.Replace(body, "%s", "info", 1))
	m := NewManager(p)
	m.SetLookup(envMap(nil))
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(p, []byte(strings.Replace(body, "%s", "debug", 1)), 0o600))

	select {
	case cfg := <-ch:
		require.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("reload not published")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestWatchWithoutFile(t *testing.T) {
	t.Parallel()

	err := NewManager("").Watch(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrMissing))
}
