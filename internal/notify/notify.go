// Package notify turns a source.Candidate into the fixed-layout alert and
// delivers it through a transport.Adapter.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ytnotify/internal/source"
	kit "ytnotify/internal/transport"
	logx "ytnotify/pkg/logx"
	"ytnotify/pkg/tgui"
)

const (
	// VideoLinkBase prefixes a video id to form the public watch link.
	VideoLinkBase = "https://youtu.be/"

	maxTitleRunes = 512
)

// Telegram delivers alerts to one chat. Success means the Bot API
// acknowledged the message; timeouts and API errors are failures.
type Telegram struct {
	adapter kit.Adapter
	target  kit.ChatTarget
	log     logx.Logger
}

func NewTelegram(adapter kit.Adapter, target kit.ChatTarget, log logx.Logger) (*Telegram, error) {
	if adapter == nil {
		return nil, errors.New("notify: adapter is nil")
	}
	if target.Recipient() == "" {
		return nil, errors.New("notify: destination chat is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{adapter: adapter, target: target, log: log}, nil
}

func (t *Telegram) Notify(ctx context.Context, c source.Candidate) error {
	start := time.Now()
	ref, err := t.adapter.SendText(ctx, t.target, FormatAlert(c), &kit.SendOptions{ParseMode: kit.ParseModeHTML})
	if err != nil {
		return fmt.Errorf("deliver %s: %w", c.ID, err)
	}
	t.log.Info("alert delivered",
		logx.String("video_id", c.ID),
		logx.String("chat", t.target.Recipient()),
		logx.Int("message_id", ref.MessageID),
		logx.Duration("took", time.Since(start)),
	)
	return nil
}

// VideoURL builds the public link for a video id.
func VideoURL(id string) string { return VideoLinkBase + id }

// FormatAlert renders the alert in Telegram HTML.
func FormatAlert(c source.Candidate) string {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = c.ID
	}
	return tgui.JoinH("\n\n",
		tgui.Esc("🎥 New video!"),
		tgui.B(tgui.TruncRunes(title, maxTitleRunes)),
		tgui.Esc("Link: ")+tgui.Esc(VideoURL(c.ID)),
	).String()
}
