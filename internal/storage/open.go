package storage

import (
	"encoding/json"
	"errors"
	"strings"

	logx "ytnotify/pkg/logx"
)

const DefaultPath = "./bot_state.json"

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		if strings.TrimSpace(cfg.Path) == "" {
			cfg.Path = DefaultPath
		}
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// MarshalState renders st in the persisted record layout
// ({"last_video_id": ..., "initialized": ...}).
func MarshalState(st State) ([]byte, error) {
	return json.MarshalIndent(toRecord(st), "", "  ")
}
