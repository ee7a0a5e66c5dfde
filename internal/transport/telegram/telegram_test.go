package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	kit "ytnotify/internal/transport"
	logx "ytnotify/pkg/logx"
)

type botAPI struct {
	mu     sync.Mutex
	calls  []map[string]any
	status int
	body   string
}

func (b *botAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(raw, &payload)

		b.mu.Lock()
		b.calls = append(b.calls, payload)
		status, body := b.status, b.body
		b.mu.Unlock()

		if status == 0 {
			status = http.StatusOK
			body = `{"ok":true,"result":{"message_id":42,"date":1700000000,"chat":{"id":-1001,"type":"channel"},"text":"x"}}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestAdapter(t *testing.T, api *botAPI) *Adapter {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	a, err := New(Config{Token: "123:abc", APIURL: srv.URL, Timeout: 2 * time.Second}, logx.Nop())
	require.NoError(t, err)
	return a
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Token: "  "}, logx.Nop())
	require.Error(t, err)
}

func TestSendTextDelivers(t *testing.T) {
	t.Parallel()
	api := &botAPI{}
	a := newTestAdapter(t, api)

	ref, err := a.SendText(context.Background(), kit.ChatTarget{Username: "@news"}, "<b>hi</b>", &kit.SendOptions{ParseMode: kit.ParseModeHTML})
	require.NoError(t, err)
	require.Equal(t, 42, ref.MessageID)
	require.Equal(t, int64(-1001), ref.ChatID)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.calls, 1)
	require.Equal(t, "@news", api.calls[0]["chat_id"])
	require.Equal(t, "<b>hi</b>", api.calls[0]["text"])
	require.Equal(t, "HTML", api.calls[0]["parse_mode"])
}

func TestSendTextReportsAPIError(t *testing.T) {
	t.Parallel()
	api := &botAPI{status: http.StatusBadRequest, body: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`}
	a := newTestAdapter(t, api)

	_, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: -1001}, "hello", nil)
	require.Error(t, err)
}

func TestSendTextRejectsEmptyTarget(t *testing.T) {
	t.Parallel()
	api := &botAPI{}
	a := newTestAdapter(t, api)

	_, err := a.SendText(context.Background(), kit.ChatTarget{}, "hello", nil)
	require.Error(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Empty(t, api.calls)
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"short"}, splitTelegramText("short", 10, ""))

	long := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	require.Equal(t, []string{strings.Repeat("a", 8), strings.Repeat("b", 8)}, splitTelegramText(long, 10, ""))

	// The cut must not land inside an HTML tag.
	html := "aaaaaaa<b>bb</b>"
	for _, chunk := range splitTelegramText(html, 9, kit.ParseModeHTML) {
		require.Equal(t, strings.Count(chunk, "<"), strings.Count(chunk, ">"), "chunk %q", chunk)
	}
}
