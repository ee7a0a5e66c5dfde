package transport

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ChatTarget addresses a chat either by numeric ID or by public @username.
// Username wins when both are set.
type ChatTarget struct {
	ChatID   int64
	Username string
	ThreadID int // telegram forum topic thread id (0 if none)
}

// Recipient renders the target the way the Bot API expects chat_id.
func (t ChatTarget) Recipient() string {
	if t.Username != "" {
		return t.Username
	}
	if t.ChatID != 0 {
		return strconv.FormatInt(t.ChatID, 10)
	}
	return ""
}

// ParseChatTarget accepts "-1001234567890" or "@channel".
func ParseChatTarget(raw string) (ChatTarget, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ChatTarget{}, errors.New("chat target is empty")
	}
	if strings.HasPrefix(s, "@") {
		if len(s) < 2 {
			return ChatTarget{}, errors.New("chat username is empty")
		}
		return ChatTarget{Username: s}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ChatTarget{}, errors.New("chat target must be a numeric id or @username: " + s)
	}
	return ChatTarget{ChatID: id}, nil
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

const (
	ParseModeHTML = "HTML"
)

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the outbound side of a messaging platform.
// SendText returns only after the platform acknowledged the message
// (or the transport gave up).
type Adapter interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
