package config

import "reflect"

// ChangedSections lists the top-level sections that differ between two
// configs, in declaration order. Secrets are compared but never returned.
func ChangedSections(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var out []string
	add := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out = append(out, name)
		}
	}
	add("youtube", oldCfg.YouTube, newCfg.YouTube)
	add("telegram", oldCfg.Telegram, newCfg.Telegram)
	add("watcher", oldCfg.Watcher, newCfg.Watcher)
	add("storage", oldCfg.Storage, newCfg.Storage)
	add("status", oldCfg.Status, newCfg.Status)
	add("logging", oldCfg.Logging, newCfg.Logging)
	return out
}

// HotReloadable reports whether a section is applied without a restart.
func HotReloadable(section string) bool { return section == "logging" }
