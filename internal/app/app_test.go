package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ytnotify/internal/config"
	"ytnotify/internal/storage"
	kit "ytnotify/internal/transport"
	logx "ytnotify/pkg/logx"
)

func noEnv(string) (string, bool) { return "", false }

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	sc, err := mapStorageConfig(&config.Config{})
	require.NoError(t, err)
	require.Equal(t, storage.Config{Driver: "file", Path: storage.DefaultPath}, sc)

	sc, err = mapStorageConfig(&config.Config{Storage: config.StorageConfig{Driver: "SQLite", Path: "x.db", BusyTimeout: "3s"}})
	require.NoError(t, err)
	require.Equal(t, storage.Config{Driver: "sqlite", Path: "x.db", BusyTimeout: 3 * time.Second}, sc)

	_, err = mapStorageConfig(&config.Config{Storage: config.StorageConfig{Driver: "sqlite"}})
	require.Error(t, err)
	_, err = mapStorageConfig(&config.Config{Storage: config.StorageConfig{Driver: "redis"}})
	require.Error(t, err)
}

func TestMapTelegramConfig(t *testing.T) {
	t.Parallel()

	tc, target, err := mapTelegramConfig(&config.Config{Telegram: config.TelegramConfig{
		Token:    "123:abc",
		Channel:  "@alerts",
		ThreadID: 7,
	}})
	require.NoError(t, err)
	require.Equal(t, "123:abc", tc.Token)
	require.Equal(t, config.DefaultTelegramTimeout, tc.Timeout)
	require.Equal(t, kit.ChatTarget{Username: "@alerts", ThreadID: 7}, target)

	_, _, err = mapTelegramConfig(&config.Config{Telegram: config.TelegramConfig{Channel: "@alerts", Timeout: "soon"}})
	require.Error(t, err)
}

func TestMapLogConfigDisablesTelegramOnBadChat(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Logging: config.LoggingConfig{
		Level:    "debug",
		Telegram: config.LoggingTelegram{Enabled: true, Chat: "not a chat"},
	}}
	lc, target := mapLogConfig(cfg)
	require.True(t, lc.Console)
	require.False(t, lc.Telegram.Enabled)
	require.Equal(t, kit.ChatTarget{}, target)

	cfg.Logging.Telegram.Chat = "-1001"
	cfg.Logging.Telegram.ThreadID = 3
	lc, target = mapLogConfig(cfg)
	require.True(t, lc.Telegram.Enabled)
	require.Equal(t, kit.ChatTarget{ChatID: -1001, ThreadID: 3}, target)
}

// fakeAPIs serves the YouTube search endpoint and the Bot API sendMessage
// method from one httptest server.
type fakeAPIs struct {
	mu      sync.Mutex
	videoID string
	sent    []string
}

func (f *fakeAPIs) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/search"):
		f.mu.Lock()
		id := f.videoID
		f.mu.Unlock()
		published := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
		_, _ = fmt.Fprintf(w, `{"items":[{"id":{"kind":"youtube#video","videoId":%q},"snippet":{"title":"Fresh","publishedAt":%q}}]}`, id, published)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		raw, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.sent = append(f.sent, string(raw))
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":1700000000,"chat":{"id":-1001,"type":"channel"},"text":"x"}}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPIs) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestAppNotifiesNewVideoAndFlushesOnStop(t *testing.T) {
	api := &fakeAPIs{videoID: "xyz"}
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"last_video_id":"abc","initialized":true}`), 0o600))

	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`{
		"youtube": {"api_key": "k", "channel_id": "UC123", "endpoint": %q, "timeout": "2s"},
		"telegram": {"token": "123:abc", "channel": "@alerts", "api_url": %q, "timeout": "2s"},
		"watcher": {"poll_interval": "1h"},
		"storage": {"driver": "file", "path": %q},
		"status": {"enabled": false},
		"logging": {"level": "error"}
	}`, srv.URL+"/", srv.URL, statePath)), 0o600))

	cfgm := config.NewManager(cfgPath)
	cfgm.SetLookup(noEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, cfgm)
	require.NoError(t, err)
	require.NoError(t, a.Start(ctx))

	require.Eventually(t, func() bool { return api.sentCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return a.report().LastOutcome == "notified" }, 5*time.Second, 10*time.Millisecond)

	rep := a.report()
	require.NotNil(t, rep.LastVideo)
	require.Equal(t, "xyz", *rep.LastVideo)
	require.True(t, rep.Initialized)
	require.Equal(t, "running", rep.Lifecycle)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopAppStop))
	require.Equal(t, "stopped", a.report().Lifecycle)

	store, err := storage.Open(storage.Config{Driver: "file", Path: statePath}, logx.Nop())
	require.NoError(t, err)
	defer store.Close()
	st, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, storage.State{LastVideoID: "xyz", Initialized: true}, st)
	require.Equal(t, 1, api.sentCount())
}
