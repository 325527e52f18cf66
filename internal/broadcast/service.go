package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"azkarbot/internal/content"
	"azkarbot/internal/eventbus"
	"azkarbot/internal/metrics"
	"azkarbot/internal/transport"
	logx "azkarbot/pkg/logx"
)

type Config struct {
	ChannelURL  string
	RatePerSec  int
	SendTimeout time.Duration
}

// Registry is the group set as seen by broadcasts.
type Registry interface {
	Snapshot() []int64
	Remove(ctx context.Context, id int64) (bool, error)
}

type Picker interface {
	Pick(category content.Category, exts []string) (content.Item, bool)
}

type TextSource interface {
	Random() string
}

type Service struct {
	cfg    Config
	sender transport.Sender
	reg    Registry
	picker Picker
	texts  TextSource
	rot    *content.Rotation
	lim    *rate.Limiter
	events eventbus.Publisher
	log    logx.Logger
}

// Report summarizes one push.
type Report struct {
	Name    string
	Turn    content.Turn
	Targets int
	Sent    int
	Failed  int
	Removed int
}

type payload struct {
	text  string
	media *transport.Media
}

func New(cfg Config, sender transport.Sender, reg Registry, picker Picker, texts TextSource, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 60 * time.Second
	}
	return &Service{
		cfg:    cfg,
		sender: sender,
		reg:    reg,
		picker: picker,
		texts:  texts,
		rot:    &content.Rotation{},
		lim:    rate.NewLimiter(rate.Limit(rps), rps),
		log:    log.With(logx.String("comp", "broadcast")),
	}
}

func (s *Service) Rotation() *content.Rotation { return s.rot }

// SetEvents publishes a push.done event after every completed push.
func (s *Service) SetEvents(p eventbus.Publisher) { s.events = p }

// Keyboard is attached to every push.
func (s *Service) Keyboard() *transport.Keyboard {
	if s.cfg.ChannelURL == "" {
		return nil
	}
	return &transport.Keyboard{Rows: [][]transport.Button{{{Text: content.ChannelButtonText, URL: s.cfg.ChannelURL}}}}
}

// Rotate sends the next rotation turn. The turn advances even when no file
// of the turn's kind exists; those groups get a text entry instead.
func (s *Service) Rotate(ctx context.Context) (Report, error) {
	turn := s.rot.Next()
	rep, err := s.broadcast(ctx, "rotation", func() payload { return s.rotationPayload(turn) })
	rep.Turn = turn
	return rep, err
}

func (s *Service) rotationPayload(turn content.Turn) payload {
	var (
		item content.Item
		ok   bool
		kind transport.MediaKind
	)
	switch turn {
	case content.TurnImage:
		item, ok = s.picker.Pick(content.CategoryRandom, content.ImageExts)
		kind = transport.MediaPhoto
	case content.TurnVoice:
		item, ok = s.picker.Pick(content.CategoryVoices, content.VoiceExts)
		kind = transport.MediaVoice
	case content.TurnAudio:
		item, ok = s.picker.Pick(content.CategoryAudios, content.AudioExts)
		kind = transport.MediaAudio
	}
	if !ok {
		return payload{text: bold(s.texts.Random())}
	}
	caption := ""
	if item.Caption != "" {
		caption = bold(item.Caption)
	}
	return payload{media: &transport.Media{Kind: kind, Path: item.Path, Caption: caption}}
}

func (s *Service) Morning(ctx context.Context) (Report, error) {
	return s.imagePush(ctx, "morning", content.CategoryMorning, content.MorningCaption, content.MorningFallback)
}

func (s *Service) Evening(ctx context.Context) (Report, error) {
	return s.imagePush(ctx, "evening", content.CategoryEvening, content.EveningCaption, content.EveningFallback)
}

func (s *Service) AfterPrayer(ctx context.Context) (Report, error) {
	return s.imagePush(ctx, "after_prayer", content.CategoryPrayers, content.AfterPrayerCaption, content.AfterPrayerFallback)
}

// Alert sends a fixed text to every group.
func (s *Service) Alert(ctx context.Context, text string) (Report, error) {
	return s.broadcast(ctx, "alert", func() payload { return payload{text: text} })
}

func (s *Service) imagePush(ctx context.Context, name string, cat content.Category, caption, fallback string) (Report, error) {
	return s.broadcast(ctx, name, func() payload {
		if item, ok := s.picker.Pick(cat, content.ImageExts); ok {
			return payload{media: &transport.Media{Kind: transport.MediaPhoto, Path: item.Path, Caption: caption}}
		}
		return payload{text: fallback}
	})
}

// SendText delivers one text with the channel keyboard to a single chat.
// A permanent failure deregisters the chat.
func (s *Service) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := s.deliver(ctx, chatID, payload{text: text})
	return err
}

// broadcast walks a registry snapshot. build runs once per target so media
// picks vary between groups.
func (s *Service) broadcast(ctx context.Context, name string, build func() payload) (Report, error) {
	targets := s.reg.Snapshot()
	rep := Report{Name: name, Targets: len(targets)}
	if len(targets) == 0 {
		s.log.Debug("no groups registered; push skipped", logx.String("push", name))
		return rep, nil
	}

	start := time.Now()
	for _, id := range targets {
		if err := s.lim.Wait(ctx); err != nil {
			return rep, fmt.Errorf("%s: %w", name, err)
		}
		removed, err := s.deliver(ctx, id, build())
		switch {
		case err == nil:
			rep.Sent++
		case removed:
			rep.Failed++
			rep.Removed++
		default:
			rep.Failed++
		}
		if ctx.Err() != nil {
			return rep, fmt.Errorf("%s: %w", name, ctx.Err())
		}
	}

	s.log.Info("push done",
		logx.String("push", name),
		logx.Int("targets", rep.Targets),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", rep.Failed),
		logx.Int("removed", rep.Removed),
		logx.Duration("took", time.Since(start)),
	)
	if s.events != nil {
		s.events.Publish(eventbus.Event{Type: eventbus.TypePushDone, Name: name, Data: rep})
	}
	if rep.Sent == 0 && rep.Failed > rep.Removed {
		return rep, fmt.Errorf("%s: every delivery failed", name)
	}
	return rep, nil
}

func (s *Service) deliver(ctx context.Context, chatID int64, p payload) (removed bool, err error) {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	to := transport.ChatTarget{ChatID: chatID}
	opt := &transport.SendOptions{ParseMode: "Markdown", DisablePreview: true, Keyboard: s.Keyboard()}
	if p.media != nil {
		_, err = s.sender.SendMedia(sendCtx, to, *p.media, opt)
	} else {
		_, err = s.sender.SendText(sendCtx, to, p.text, opt)
	}
	if err == nil {
		metrics.Sends.WithLabelValues("ok").Inc()
		return false, nil
	}

	if errors.Is(err, transport.ErrRecipientGone) {
		metrics.Sends.WithLabelValues("gone").Inc()
		ok, rerr := s.reg.Remove(ctx, chatID)
		if ok {
			metrics.GroupsRemoved.Inc()
			s.log.Info("group removed after permanent delivery failure", logx.Int64("chat_id", chatID), logx.Err(err))
		}
		if rerr != nil {
			s.log.Error("persist after removal failed", logx.Int64("chat_id", chatID), logx.Err(rerr))
		}
		return true, err
	}

	metrics.Sends.WithLabelValues("error").Inc()
	s.log.Warn("delivery failed", logx.Int64("chat_id", chatID), logx.String("class", string(transport.Classify(err))), logx.Err(err))
	return false, err
}

func bold(s string) string { return "*" + s + "*" }
