package systemd

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func readMsg(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	buf := make([]byte, 256)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestNoSocketIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	sent, err := Ready()
	require.NoError(t, err)
	require.False(t, sent)

	// Without WATCHDOG_USEC the loop returns immediately.
	require.NoError(t, Watchdog(context.Background(), nil))
}

func TestReadyAndStopping(t *testing.T) {
	conn := listenNotify(t)

	sent, err := Ready()
	require.NoError(t, err)
	require.True(t, sent)
	require.Equal(t, "READY=1", readMsg(t, conn))

	_, err = Status("watching UC123")
	require.NoError(t, err)
	require.Equal(t, "STATUS=watching UC123", readMsg(t, conn))

	_, err = Stopping()
	require.NoError(t, err)
	require.Equal(t, "STOPPING=1", readMsg(t, conn))
}

func TestWatchdogPings(t *testing.T) {
	conn := listenNotify(t)
	t.Setenv("WATCHDOG_USEC", "40000") // 40ms
	t.Setenv("WATCHDOG_PID", strconv.Itoa(os.Getpid()))

	every, err := WatchdogInterval()
	require.NoError(t, err)
	require.Equal(t, 20*time.Millisecond, every)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watchdog(ctx, func() bool { return true }) }()

	require.Equal(t, "WATCHDOG=1", readMsg(t, conn))
	cancel()
	require.NoError(t, <-done)
}
