package transport

import (
	"context"
	"time"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

// Update is one inbound event from the long-poll stream.
// ID is the stream position; the poller confirms it by requesting ID+1.
type Update struct {
	ID       int64
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSuperGroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

type Message struct {
	ID           int
	ChatID       int64
	ChatType     ChatType
	ChatTitle    string
	FromID       int64
	FromUsername string
	Text         string
	HasMedia     bool
}

// IsGroup reports whether the message originates from a group or supergroup.
func (m *Message) IsGroup() bool {
	return m != nil && (m.ChatType == ChatGroup || m.ChatType == ChatSuperGroup)
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type BotIdentity struct {
	ID       int64
	Username string
	Name     string
}

// Button is either a URL button or a callback button (Data set).
type Button struct {
	Text string
	URL  string
	Data string
}

type Keyboard struct {
	Rows [][]Button
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Keyboard       *Keyboard
}

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVoice MediaKind = "voice"
	MediaAudio MediaKind = "audio"
)

// Media is a local file uploaded with an optional caption.
type Media struct {
	Kind    MediaKind
	Path    string
	Caption string
}

// Sender is the outbound half of the messaging transport.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendMedia(ctx context.Context, to ChatTarget, m Media, opt *SendOptions) (MessageRef, error)
}

// UpdateSource is the long-poll half of the messaging transport.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, limit int, timeout time.Duration) ([]Update, error)
}

// Client is the full surface the bot needs from the messaging platform.
type Client interface {
	Sender
	UpdateSource
	GetMe(ctx context.Context) (BotIdentity, error)
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
