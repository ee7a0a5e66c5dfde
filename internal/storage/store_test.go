package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	logx "ytnotify/pkg/logx"
)

func openTestStore(t *testing.T, driver, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStoreDrivers(t *testing.T) {
	t.Parallel()

	drivers := []struct {
		driver string
		file   string
	}{
		{driver: "file", file: "state.json"},
		{driver: "sqlite", file: "state.db"},
	}
	for _, d := range drivers {
		d := d
		t.Run(d.driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", d.file)

			st := openTestStore(t, d.driver, path)
			got, err := st.Load(ctx)
			require.NoError(t, err, "missing record is a cold start")
			require.Equal(t, State{}, got)

			require.NoError(t, st.Save(ctx, State{LastVideoID: "abc", Initialized: true}))
			require.NoError(t, st.Save(ctx, State{LastVideoID: "xyz", Initialized: true}))
			require.NoError(t, st.Close())

			// A fresh handle (new process) sees the last write.
			reopened := openTestStore(t, d.driver, path)
			got, err = reopened.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, State{LastVideoID: "xyz", Initialized: true}, got)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, driver := range []string{"file", "sqlite"} {
		st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "s")}, logx.Nop())
		require.NoError(t, err)
		require.NoError(t, st.Close())
		require.ErrorIs(t, st.Save(ctx, State{Initialized: true}), ErrClosed, driver)
		_, err = st.Load(ctx)
		require.ErrorIs(t, err, ErrClosed, driver)
	}
}

func TestFileStoreLayout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bot_state.json")
	st := openTestStore(t, "file", path)

	require.NoError(t, st.Save(ctx, State{Initialized: false}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"last_video_id": null, "initialized": false}`, string(b))

	require.NoError(t, st.Save(ctx, State{LastVideoID: "dQw4w9WgXcQ", Initialized: true}))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"last_video_id": "dQw4w9WgXcQ", "initialized": true}`, string(b))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileStoreCorruptRecord(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bot_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	st := openTestStore(t, "file", path)
	got, err := st.Load(context.Background())
	require.Error(t, err)
	require.Equal(t, State{}, got)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	require.Error(t, err)
}
