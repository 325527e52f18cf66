// Package router turns inbound updates into bot actions: group
// registration, /start, and the admin panel.
package router

import (
	"context"
	"strings"
	"time"

	"azkarbot/internal/task/scheduler"
	kit "azkarbot/internal/transport"
	logx "azkarbot/pkg/logx"
)

// Callback tags carried by admin panel buttons.
const (
	CallbackStats   = "admin_stats"
	CallbackJobs    = "admin_jobs"
	CallbackPrayers = "admin_prayers"
)

// Registry is the group set as seen by the dispatcher.
type Registry interface {
	Contains(id int64) bool
	Add(ctx context.Context, id int64) (bool, error)
	Len() int
}

// Client is the messaging surface the dispatcher replies through.
type Client interface {
	kit.Sender
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Welcomer greets a newly registered group.
type Welcomer interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type TextCounter interface {
	Count() int
}

type JobLister interface {
	List() []scheduler.JobInfo
}

// PrayerRefresher recomputes today's prayer jobs on demand.
type PrayerRefresher interface {
	Recompute(ctx context.Context) error
}

type Config struct {
	AdminID     int64
	BotUsername string
	Location    *time.Location
	// StartKeyboard is attached to the /start reply.
	StartKeyboard *kit.Keyboard
	Timeout       time.Duration
}

type Deps struct {
	Client   Client
	Registry Registry
	Welcomer Welcomer
	Texts    TextCounter
	Jobs     JobLister
	Prayers  PrayerRefresher
}

// Request is one routed update.
type Request struct {
	Update  kit.Update
	ChatID  int64
	FromID  int64
	Command string
	Log     logx.Logger
}

type Dispatcher struct {
	cfg  Config
	deps Deps
	log  logx.Logger
	now  func() time.Time

	commands  map[string]route
	callbacks map[string]route
}

type route struct {
	adminOnly bool
	handle    HandlerFunc
}

func New(cfg Config, deps Deps, log logx.Logger) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{
		cfg:  cfg,
		deps: deps,
		log:  log.With(logx.String("comp", "router")),
		now:  time.Now,
	}
	d.commands = map[string]route{
		"start": {handle: d.handleStart},
		"admin": {adminOnly: true, handle: d.handleAdmin},
	}
	d.callbacks = map[string]route{
		CallbackStats:   {adminOnly: true, handle: d.handleStats},
		CallbackJobs:    {adminOnly: true, handle: d.handleJobs},
		CallbackPrayers: {adminOnly: true, handle: d.handlePrayers},
	}
	return d
}

// Handle routes one update and returns once it has been fully processed.
func (d *Dispatcher) Handle(ctx context.Context, up kit.Update) error {
	switch up.Kind {
	case kit.UpdateMessage:
		return d.routeMessage(ctx, up)
	case kit.UpdateCallback:
		return d.routeCallback(ctx, up)
	}
	return nil
}

func (d *Dispatcher) isAdmin(id int64) bool { return d.cfg.AdminID != 0 && id == d.cfg.AdminID }

func (d *Dispatcher) routeMessage(ctx context.Context, up kit.Update) error {
	msg := up.Message
	if msg == nil {
		return nil
	}

	if msg.IsGroup() && !d.deps.Registry.Contains(msg.ChatID) {
		d.registerGroup(ctx, msg)
	}

	word, ok := d.commandWord(msg.Text)
	if !ok {
		return nil
	}
	r, ok := d.commands[word]
	if !ok || (r.adminOnly && !d.isAdmin(msg.FromID)) {
		return nil
	}
	return d.run(ctx, up, msg.ChatID, msg.FromID, "/"+word, r)
}

// registerGroup adds the chat and welcomes it once. A persist failure keeps
// the group in memory, so the welcome still goes out and the message is
// routed as usual.
func (d *Dispatcher) registerGroup(ctx context.Context, msg *kit.Message) {
	added, err := d.deps.Registry.Add(ctx, msg.ChatID)
	if err != nil {
		d.log.Error("group persist failed", logx.Int64("chat_id", msg.ChatID), logx.Bool("added", added), logx.Err(err))
	}
	if !added {
		return
	}
	d.log.Info("group registered", logx.Int64("chat_id", msg.ChatID), logx.String("title", msg.ChatTitle), logx.Int("groups", d.deps.Registry.Len()))
	if d.deps.Welcomer == nil {
		return
	}
	if err := d.deps.Welcomer.SendText(ctx, msg.ChatID, welcomeText); err != nil {
		d.log.Warn("welcome failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
	}
}

// commandWord extracts "start" from "/start", "/start@bot" or "/start arg".
// Commands addressed to another bot are ignored.
func (d *Dispatcher) commandWord(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		target := word[i+1:]
		word = word[:i]
		if d.cfg.BotUsername != "" && !strings.EqualFold(target, d.cfg.BotUsername) {
			return "", false
		}
	}
	word = strings.ToLower(word)
	return word, word != ""
}

func (d *Dispatcher) routeCallback(ctx context.Context, up kit.Update) error {
	cb := up.Callback
	if cb == nil {
		return nil
	}
	r, ok := d.callbacks[strings.TrimSpace(cb.Data)]
	if !ok || (r.adminOnly && !d.isAdmin(cb.FromID)) {
		// Dropped without an answer.
		return nil
	}
	err := d.run(ctx, up, cb.ChatID, cb.FromID, "cb:"+cb.Data, r)
	if aerr := d.deps.Client.AnswerCallback(ctx, cb.ID, ""); aerr != nil {
		d.log.Debug("answer callback failed", logx.Err(aerr))
	}
	return err
}

func (d *Dispatcher) run(ctx context.Context, up kit.Update, chatID, fromID int64, cmd string, r route) error {
	req := &Request{
		Update:  up,
		ChatID:  chatID,
		FromID:  fromID,
		Command: cmd,
		Log: d.log.With(
			logx.Int64("update_id", up.ID),
			logx.Int64("chat_id", chatID),
			logx.String("cmd", cmd),
		),
	}
	final := Chain(r.handle, MWPanicRecover(), MWRequestLog(), MWMetrics(), MWTimeout(d.cfg.Timeout))
	return final(ctx, req)
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string, kb *kit.Keyboard) error {
	_, err := d.deps.Client.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, &kit.SendOptions{
		ParseMode:      "Markdown",
		DisablePreview: true,
		Keyboard:       kb,
	})
	return err
}

func (d *Dispatcher) handleStart(ctx context.Context, req *Request) error {
	return d.reply(ctx, req.ChatID, startText, d.cfg.StartKeyboard)
}
