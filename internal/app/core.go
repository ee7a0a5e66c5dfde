package app

import (
	"context"
	"errors"
	"fmt"

	"ytnotify/internal/config"
	"ytnotify/internal/eventbus"
	"ytnotify/internal/notify"
	"ytnotify/internal/source/youtube"
	"ytnotify/internal/storage"
	"ytnotify/internal/transport/telegram"
	"ytnotify/internal/watcher"
	logx "ytnotify/pkg/logx"
)

// Core is the detect-and-notify stack without any long-running servers.
// The daemon and the one-shot CLI commands both build one.
type Core struct {
	Store   storage.Store
	Adapter *telegram.Adapter
	Watcher *watcher.Service
}

// NewCore opens the state store and wires the fetcher, the sink and the
// watcher. bus may be nil.
func NewCore(ctx context.Context, cfg *config.Config, log logx.Logger, bus eventbus.Bus) (*Core, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(sc, log)
	if err != nil {
		return nil, err
	}

	adapter, err := newAdapter(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	c, err := buildCore(ctx, cfg, log, bus, store, adapter)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return c, nil
}

func openStore(sc storage.Config, log logx.Logger) (storage.Store, error) {
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	return store, nil
}

func newAdapter(cfg *config.Config, log logx.Logger) (*telegram.Adapter, error) {
	tc, _, err := mapTelegramConfig(cfg)
	if err != nil {
		return nil, err
	}
	return telegram.New(tc, log.With(logx.String("comp", "telegram")))
}

func buildCore(ctx context.Context, cfg *config.Config, log logx.Logger, bus eventbus.Bus, store storage.Store, adapter *telegram.Adapter) (*Core, error) {
	yc, err := mapYouTubeConfig(cfg)
	if err != nil {
		return nil, err
	}
	fetcher, err := youtube.New(ctx, yc, log.With(logx.String("comp", "youtube")))
	if err != nil {
		return nil, err
	}

	_, target, err := mapTelegramConfig(cfg)
	if err != nil {
		return nil, err
	}
	sink, err := notify.NewTelegram(adapter, target, log.With(logx.String("comp", "notify")))
	if err != nil {
		return nil, err
	}

	wc, err := mapWatcherConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts := []watcher.Option{watcher.WithLogger(log)}
	if bus != nil {
		opts = append(opts, watcher.WithBus(bus))
	}
	w, err := watcher.New(ctx, wc, fetcher, sink, store, opts...)
	if err != nil {
		return nil, err
	}
	return &Core{Store: store, Adapter: adapter, Watcher: w}, nil
}

func (c *Core) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	if err := c.Store.Close(); err != nil && !errors.Is(err, storage.ErrClosed) {
		return err
	}
	return nil
}
