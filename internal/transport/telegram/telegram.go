package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "ytnotify/internal/transport"
	logx "ytnotify/pkg/logx"
)

const (
	defaultTimeout    = 25 * time.Second
	telegramTextLimit = 4000
)

type Config struct {
	Token string
	// APIURL overrides the Bot API base URL (tests, local bot API servers).
	APIURL  string
	Timeout time.Duration
}

// Adapter is a send-only Telegram Bot API client.
//
// The bot is created offline (no getMe round-trip), so construction never
// touches the network; credentials are validated on the first send.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   strings.TrimSpace(cfg.Token),
		URL:     strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Client:  &http.Client{Timeout: cfg.Timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

type recipient string

func (r recipient) Recipient() string { return string(r) }

// SendText delivers text, splitting it into several messages when it exceeds
// Telegram's size limit. The returned ref points at the first message.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	rcpt := to.Recipient()
	if rcpt == "" {
		return kit.MessageRef{}, errors.New("telegram: empty chat target")
	}

	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.bot.Send(recipient(rcpt), chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			a.log.Debug("send failed", logx.String("chat", rcpt), logx.Int("chunk", i), logx.Err(err))
			return first, fmt.Errorf("telegram send: %w", err)
		}
		if i == 0 && msg != nil {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
			if msg.Chat != nil {
				first.ChatID = msg.Chat.ID
			}
		}
	}
	return first, nil
}

// splitTelegramText splits long messages into chunks that are safe to send to Telegram.
// It prefers newline boundaries and avoids splitting inside HTML tags when parseMode is HTML.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// Avoid extremely small chunks.
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, kit.ParseModeHTML) && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
