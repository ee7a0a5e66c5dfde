// Package tgui provides small helpers for building Telegram messages that are
// safe under ParseMode="HTML" (auto escaping, bounded lengths).
package tgui
