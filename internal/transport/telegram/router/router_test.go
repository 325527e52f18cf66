package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"azkarbot/internal/metrics"
	"azkarbot/internal/task/scheduler"
	kit "azkarbot/internal/transport"
	logx "azkarbot/pkg/logx"
)

const adminID = 42

type sent struct {
	chatID int64
	text   string
	opt    *kit.SendOptions
}

type fakeClient struct {
	mu       sync.Mutex
	sent     []sent
	answered []string
}

func (c *fakeClient) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sent{chatID: to.ChatID, text: text, opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(c.sent)}, nil
}

func (c *fakeClient) SendMedia(context.Context, kit.ChatTarget, kit.Media, *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{}, errors.New("unexpected media")
}

func (c *fakeClient) AnswerCallback(_ context.Context, id, _ string) error {
	c.mu.Lock()
	c.answered = append(c.answered, id)
	c.mu.Unlock()
	return nil
}

// fakeRegistry keeps an added id even when persisting it fails.
type fakeRegistry struct {
	ids        map[int64]bool
	persistErr error
}

func (r *fakeRegistry) Contains(id int64) bool { return r.ids[id] }
func (r *fakeRegistry) Len() int               { return len(r.ids) }
func (r *fakeRegistry) Add(_ context.Context, id int64) (bool, error) {
	if r.ids[id] {
		return false, nil
	}
	r.ids[id] = true
	err := r.persistErr
	r.persistErr = nil
	return true, err
}

type fakeWelcomer struct{ chats []int64 }

func (w *fakeWelcomer) SendText(_ context.Context, chatID int64, _ string) error {
	w.chats = append(w.chats, chatID)
	return nil
}

type countTexts int

func (c countTexts) Count() int { return int(c) }

type fakeJobs []scheduler.JobInfo

func (f fakeJobs) List() []scheduler.JobInfo { return f }

type fakeRefresher struct {
	calls int
	err   error
}

func (r *fakeRefresher) Recompute(context.Context) error {
	r.calls++
	return r.err
}

type fixture struct {
	d   *Dispatcher
	cli *fakeClient
	reg *fakeRegistry
	wel *fakeWelcomer
	ref *fakeRefresher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cli: &fakeClient{},
		reg: &fakeRegistry{ids: map[int64]bool{}},
		wel: &fakeWelcomer{},
		ref: &fakeRefresher{},
	}
	next := time.Date(2026, 10, 16, 14, 55, 0, 0, time.UTC)
	f.d = New(Config{
		AdminID:       adminID,
		BotUsername:   "azkar_bot",
		Location:      time.UTC,
		StartKeyboard: &kit.Keyboard{Rows: [][]kit.Button{{{Text: "src", URL: "https://example.com"}}}},
	}, Deps{
		Client:   f.cli,
		Registry: f.reg,
		Welcomer: f.wel,
		Texts:    countTexts(7),
		Prayers:  f.ref,
		Jobs: fakeJobs{
			{ID: "rotation", Kind: "interval", Trigger: "every 5m0s", Next: next},
			{ID: "prayer:alert:Asr:20261016", Kind: "date", Trigger: "at", Next: next},
		},
	}, logx.Nop())
	f.d.now = func() time.Time { return time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC) }
	return f
}

func message(chatID int64, chatType kit.ChatType, from int64, text string) kit.Update {
	return kit.Update{ID: 1, Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: chatID, ChatType: chatType, FromID: from, Text: text,
	}}
}

func callback(from int64, data string) kit.Update {
	return kit.Update{ID: 2, Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID: "cb", FromID: from, ChatID: from, Data: data,
	}}
}

func TestGroupMessageRegistersOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := f.d.Handle(ctx, message(-100, kit.ChatSuperGroup, 7, "hello")); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	if !f.reg.ids[-100] {
		t.Fatalf("group not registered")
	}
	if len(f.wel.chats) != 1 || f.wel.chats[0] != -100 {
		t.Fatalf("welcomes = %v, want [-100]", f.wel.chats)
	}
}

func TestPrivateMessageDoesNotRegister(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if err := f.d.Handle(context.Background(), message(7, kit.ChatPrivate, 7, "hi")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(f.reg.ids) != 0 || len(f.wel.chats) != 0 || len(f.cli.sent) != 0 {
		t.Fatalf("unexpected side effects: reg=%v wel=%v sent=%v", f.reg.ids, f.wel.chats, f.cli.sent)
	}
}

func TestPersistFailureStillWelcomesAndRoutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.reg.persistErr = errors.New("s3: 503")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := f.d.Handle(ctx, message(-100, kit.ChatGroup, 7, "/start")); err != nil {
			t.Fatalf("message %d: Handle: %v", i, err)
		}
	}
	if !f.reg.ids[-100] {
		t.Fatalf("group not registered")
	}
	if len(f.wel.chats) != 1 || f.wel.chats[0] != -100 {
		t.Fatalf("welcomes=%v want exactly one to -100", f.wel.chats)
	}
	if len(f.cli.sent) != 2 {
		t.Fatalf("start replies=%d want 2", len(f.cli.sent))
	}
}

func TestStartCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text  string
		reply bool
	}{
		{"/start", true},
		{"/start@azkar_bot", true},
		{"/START payload", true},
		{"/start@other_bot", false},
		{"start", false},
		{"/unknown", false},
	}
	for _, tc := range cases {
		f := newFixture(t)
		if err := f.d.Handle(context.Background(), message(7, kit.ChatPrivate, 7, tc.text)); err != nil {
			t.Fatalf("%q: Handle: %v", tc.text, err)
		}
		if got := len(f.cli.sent) == 1; got != tc.reply {
			t.Fatalf("%q: replied=%v, want %v", tc.text, got, tc.reply)
		}
		if tc.reply {
			s := f.cli.sent[0]
			if s.text != startText || s.opt == nil || s.opt.Keyboard == nil || s.opt.ParseMode != "Markdown" {
				t.Fatalf("%q: reply = %+v", tc.text, s)
			}
		}
	}
}

func TestAdminPanelOnlyForAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_ = f.d.Handle(ctx, message(7, kit.ChatPrivate, 7, "/admin"))
	if len(f.cli.sent) != 0 {
		t.Fatalf("non-admin got the panel")
	}

	_ = f.d.Handle(ctx, message(adminID, kit.ChatPrivate, adminID, "/admin"))
	if len(f.cli.sent) != 1 {
		t.Fatalf("admin panel not sent")
	}
	kb := f.cli.sent[0].opt.Keyboard
	if kb == nil || kb.Rows[0][0].Data != CallbackStats {
		t.Fatalf("panel keyboard = %+v", kb)
	}
}

func TestCallbacks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		from     int64
		data     string
		contains string
	}{
		{"stats", adminID, CallbackStats, "*النصوص:* 7"},
		{"jobs", adminID, CallbackJobs, "`rotation`"},
		{"prayers", adminID, CallbackPrayers, "`alert:Asr:20261016`"},
		{"non-admin", 7, CallbackStats, ""},
		{"unknown tag", adminID, "nope", ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			if err := f.d.Handle(context.Background(), callback(tc.from, tc.data)); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if tc.contains == "" {
				if len(f.cli.sent) != 0 || len(f.cli.answered) != 0 {
					t.Fatalf("dropped callback had effects: sent=%v answered=%v", f.cli.sent, f.cli.answered)
				}
				return
			}
			if len(f.cli.sent) != 1 || !strings.Contains(f.cli.sent[0].text, tc.contains) {
				t.Fatalf("reply = %+v, want containing %q", f.cli.sent, tc.contains)
			}
			if len(f.cli.answered) != 1 {
				t.Fatalf("callback not answered")
			}
		})
	}
}

func TestJobsViewHidesPrayerJobs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_ = f.d.Handle(context.Background(), callback(adminID, CallbackJobs))
	if strings.Contains(f.cli.sent[0].text, "prayer:") {
		t.Fatalf("jobs view lists per-day prayer jobs: %s", f.cli.sent[0].text)
	}
}

func TestPrayersCallbackRecomputes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_ = f.d.Handle(context.Background(), callback(adminID, CallbackPrayers))
	if f.ref.calls != 1 {
		t.Fatalf("recompute calls = %d, want 1", f.ref.calls)
	}
	if !strings.Contains(f.cli.sent[0].text, "✅") {
		t.Fatalf("reply = %q", f.cli.sent[0].text)
	}

	f.ref.err = errors.New("aladhan down")
	_ = f.d.Handle(context.Background(), callback(adminID, CallbackPrayers))
	if got := f.cli.sent[1].text; !strings.Contains(got, "⚠️") || !strings.Contains(got, "alert:Asr") {
		t.Fatalf("failure reply = %q", got)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.d.deps.Texts = nil
	f.d.deps.Registry = nil // stats handler dereferences the registry

	err := f.d.Handle(context.Background(), callback(adminID, CallbackStats))
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("err = %v, want recovered panic", err)
	}
}

func TestHandledRouteIsObserved(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	before := testutil.CollectAndCount(metrics.HandlerSeconds)
	if err := f.d.Handle(context.Background(), message(adminID, kit.ChatPrivate, adminID, "/admin")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if after := testutil.CollectAndCount(metrics.HandlerSeconds); after < 1 || after < before {
		t.Fatalf("series before=%d after=%d", before, after)
	}
}
