package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names. The first four match the variables the bot
// has always been deployed with.
const (
	EnvTelegramToken   = "TG_TOKEN"
	EnvTelegramChannel = "TG_CHANNEL"
	EnvYouTubeKey      = "YT_KEY"
	EnvYouTubeChannel  = "YT_CHANNEL_ID"

	EnvPollInterval = "YTN_POLL_INTERVAL"
	EnvStaleAfter   = "YTN_STALE_AFTER"
	EnvStatePath    = "YTN_STATE_PATH"
	EnvStatusAddr   = "YTN_STATUS_ADDR"
	EnvLogLevel     = "YTN_LOG_LEVEL"
)

// LoadDotEnv loads KEY=VALUE files into the process environment. Variables
// that are already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overrides cfg with non-empty environment values.
// lookup defaults to os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Telegram.Token, EnvTelegramToken)
	set(&cfg.Telegram.Channel, EnvTelegramChannel)
	set(&cfg.YouTube.APIKey, EnvYouTubeKey)
	set(&cfg.YouTube.ChannelID, EnvYouTubeChannel)
	set(&cfg.Watcher.PollInterval, EnvPollInterval)
	set(&cfg.Watcher.StaleAfter, EnvStaleAfter)
	set(&cfg.Storage.Path, EnvStatePath)
	set(&cfg.Status.Addr, EnvStatusAddr)
	set(&cfg.Logging.Level, EnvLogLevel)
}
