package adapter

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	kit "azkarbot/internal/transport"
	logx "azkarbot/pkg/logx"
)

const DefaultAPIURL = "https://api.telegram.org"

type Config struct {
	Token string
	// APIURL overrides the Bot API base, for tests and local Bot API servers.
	APIURL      string
	HTTPTimeout time.Duration
	Retry       kit.RetryPolicy
}

// Adapter talks to the Telegram Bot API. Sends go through telebot; the
// long-poll and identity calls are plain JSON requests so the caller owns
// the update cursor.
type Adapter struct {
	cfg  Config
	log  logx.Logger
	bot  *tele.Bot
	http *http.Client
}

var _ kit.Client = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = kit.DefaultRetryPolicy()
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  client,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:  cfg,
		log:  log.With(logx.String("comp", "telegram.adapter")),
		bot:  b,
		http: client,
	}, nil
}

const (
	textLimit    = 4000
	captionLimit = 1024
)

// splitText cuts long messages into chunks Telegram accepts, preferring
// newline boundaries.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
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
			for i := end - 1; i > start+limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
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

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	chat := &tele.Chat{ID: to.ChatID}
	var first kit.MessageRef
	for i, chunk := range splitText(text, textLimit) {
		// Keyboard goes on the first chunk only.
		sendOpt := sendOptions(opt, i == 0)
		var msg *tele.Message
		err := a.send(ctx, "sendMessage", func() (err error) {
			msg, err = a.bot.Send(chat, chunk, sendOpt)
			return err
		})
		if err != nil {
			return first, err
		}
		if i == 0 && msg != nil {
			first = kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}
		}
	}
	return first, nil
}

func (a *Adapter) SendMedia(ctx context.Context, to kit.ChatTarget, m kit.Media, opt *kit.SendOptions) (kit.MessageRef, error) {
	caption := truncateRunes(m.Caption, captionLimit)
	var (
		what   any
		method string
	)
	switch m.Kind {
	case kit.MediaPhoto:
		method = "sendPhoto"
		what = &tele.Photo{File: tele.FromDisk(m.Path), Caption: caption}
	case kit.MediaVoice:
		method = "sendVoice"
		what = &tele.Voice{File: tele.FromDisk(m.Path), Caption: caption}
	case kit.MediaAudio:
		method = "sendAudio"
		what = &tele.Audio{File: tele.FromDisk(m.Path), Caption: caption}
	default:
		return kit.MessageRef{}, errors.New("telegram: unsupported media kind " + string(m.Kind))
	}

	chat := &tele.Chat{ID: to.ChatID}
	sendOpt := sendOptions(opt, true)
	var msg *tele.Message
	err := a.send(ctx, method, func() (err error) {
		msg, err = a.bot.Send(chat, what, sendOpt)
		return err
	})
	if err != nil {
		return kit.MessageRef{}, err
	}
	if msg == nil {
		return kit.MessageRef{ChatID: to.ChatID}, nil
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	return a.send(ctx, "answerCallbackQuery", func() error {
		return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
	})
}

// send runs one telebot call under the retry policy. telebot calls take no
// context, so cancellation is checked between attempts.
func (a *Adapter) send(ctx context.Context, method string, call func() error) error {
	attempt := 0
	err := kit.Retry(ctx, a.cfg.Retry, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := mapError(method, call())
		if err != nil && attempt < a.cfg.Retry.Attempts {
			switch kit.Classify(err) {
			case kit.ClassRateLimited, kit.ClassTransient:
				a.log.Debug("telegram call failed; retrying", logx.String("method", method), logx.Int("attempt", attempt), logx.Err(err))
			}
		}
		return err
	})
	return err
}

func sendOptions(opt *kit.SendOptions, withKeyboard bool) *tele.SendOptions {
	out := &tele.SendOptions{}
	if opt == nil {
		return out
	}
	out.ParseMode = tele.ParseMode(opt.ParseMode)
	out.DisableWebPagePreview = opt.DisablePreview
	if withKeyboard && opt.Keyboard != nil {
		out.ReplyMarkup = inlineMarkup(opt.Keyboard)
	}
	return out
}

func inlineMarkup(kb *kit.Keyboard) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(kb.Rows))
	for _, r := range kb.Rows {
		row := make([]tele.InlineButton, 0, len(r))
		for _, b := range r {
			row = append(row, tele.InlineButton{Text: b.Text, URL: b.URL, Data: b.Data})
		}
		rows = append(rows, row)
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// mapError turns telebot errors into *kit.APIError so callers can classify
// them without importing telebot.
func mapError(method string, err error) error {
	if err == nil {
		return nil
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &kit.APIError{
			Method:      method,
			Status:      http.StatusTooManyRequests,
			Description: "too many requests",
			RetryAfter:  time.Duration(flood.RetryAfter) * time.Second,
		}
	}
	var floodPtr *tele.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil {
		return &kit.APIError{
			Method:      method,
			Status:      http.StatusTooManyRequests,
			Description: "too many requests",
			RetryAfter:  time.Duration(floodPtr.RetryAfter) * time.Second,
		}
	}
	var te *tele.Error
	if errors.As(err, &te) && te != nil && te.Code != 0 {
		return &kit.APIError{Method: method, Status: te.Code, Description: te.Description}
	}
	var migrated tele.GroupError
	if errors.As(err, &migrated) {
		return &kit.APIError{Method: method, Status: http.StatusBadRequest, Description: migrated.Error()}
	}
	// Descriptions telebot has no sentinel for arrive as plain
	// "telegram: <description> (<code>)" errors.
	if m := untypedAPIError.FindStringSubmatch(err.Error()); m != nil {
		if code, convErr := strconv.Atoi(m[2]); convErr == nil && code >= 400 {
			return &kit.APIError{Method: method, Status: code, Description: m[1]}
		}
	}
	return err
}

var untypedAPIError = regexp.MustCompile(`^telegram: (.*) \((\d{3})\)$`)
