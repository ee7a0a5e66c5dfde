package statusd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "ytnotify/pkg/logx"
)

func strPtr(s string) *string { return &s }

func get(t *testing.T, h http.Handler, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReportEndpoint(t *testing.T) {
	t.Parallel()

	s := New(Config{Addr: "127.0.0.1:0"}, func() Report {
		return Report{LastVideo: strPtr("xyz"), Initialized: true, Lifecycle: "running", LastOutcome: "notified"}
	}, nil, logx.Nop())

	rec := get(t, s.Handler(), "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"status":"ok","last_video":"xyz","initialized":true,"lifecycle":"running","last_outcome":"notified"}`, rec.Body.String())

	require.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/nope", nil).Code)
	require.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/metrics", nil).Code)
}

func TestReportColdStart(t *testing.T) {
	t.Parallel()

	s := New(Config{}, func() Report { return Report{} }, nil, logx.Nop())
	rec := get(t, s.Handler(), "/", nil)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Contains(t, body, "last_video")
	require.Nil(t, body["last_video"])
	require.Equal(t, false, body["initialized"])
}

func TestHealthzAndMetrics(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "m 1\n") })
	s := New(Config{}, nil, metrics, logx.Nop())

	rec := get(t, s.Handler(), "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = get(t, s.Handler(), "/metrics", nil)
	require.Equal(t, "m 1\n", rec.Body.String())
}

func TestPprofGating(t *testing.T) {
	t.Parallel()

	// Public bind without token: refused.
	s := New(Config{Addr: "0.0.0.0:8000", Pprof: true}, nil, nil, logx.Nop())
	require.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/debug/pprof/", nil).Code)

	// Token set: mounted behind auth.
	s = New(Config{Addr: "0.0.0.0:8000", Pprof: true, Token: "sekret"}, nil, nil, logx.Nop())
	require.Equal(t, http.StatusUnauthorized, get(t, s.Handler(), "/debug/pprof/", nil).Code)
	require.Equal(t, http.StatusUnauthorized, get(t, s.Handler(), "/debug/pprof/?token=wrong", nil).Code)
	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/debug/pprof/?token=sekret", nil).Code)
	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/debug/pprof/", map[string]string{"Authorization": "Bearer sekret"}).Code)

	// Loopback: no token needed.
	s = New(Config{Addr: "127.0.0.1:0", Pprof: true}, nil, nil, logx.Nop())
	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/debug/pprof/", nil).Code)
}

func TestRunServesUntilCancelled(t *testing.T) {
	t.Parallel()

	s := New(Config{Addr: "127.0.0.1:0"}, nil, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
	require.Empty(t, s.Addr())
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:1":    true,
		"[::1]:80":       true,
		"0.0.0.0:8000":   false,
		":8000":          false,
		"10.0.0.1:80":    false,
		"garbage":        false,
	}
	for addr, want := range cases {
		require.Equal(t, want, isLoopbackAddr(addr), addr)
	}
}
