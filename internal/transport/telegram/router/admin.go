package router

import (
	"context"
	"fmt"
	"strings"

	"azkarbot/internal/content"
	"azkarbot/internal/prayer"
	kit "azkarbot/internal/transport"
	logx "azkarbot/pkg/logx"
)

const (
	startText   = content.StartText
	welcomeText = content.WelcomeText

	adminPanelText = `🔧 *لوحة التحكم* 🔧

✅ البوت يعمل بشكل طبيعي
📊 اختر ما تريد عرضه`
)

func adminKeyboard() *kit.Keyboard {
	return &kit.Keyboard{Rows: [][]kit.Button{
		{{Text: "📊 الإحصائيات", Data: CallbackStats}},
		{{Text: "🗓 المهام", Data: CallbackJobs}, {Text: "🕌 مواعيد الصلاة", Data: CallbackPrayers}},
	}}
}

func (d *Dispatcher) handleAdmin(ctx context.Context, req *Request) error {
	return d.reply(ctx, req.ChatID, adminPanelText, adminKeyboard())
}

func (d *Dispatcher) handleStats(ctx context.Context, req *Request) error {
	texts := 0
	if d.deps.Texts != nil {
		texts = d.deps.Texts.Count()
	}
	text := fmt.Sprintf("📊 *إحصائيات البوت:*\n\n👥 *المجموعات:* %d\n📝 *النصوص:* %d\n⏰ *الوقت:* %s",
		d.deps.Registry.Len(),
		texts,
		d.now().In(d.cfg.Location).Format("15:04"),
	)
	return d.reply(ctx, req.ChatID, text, nil)
}

func (d *Dispatcher) handleJobs(ctx context.Context, req *Request) error {
	var b strings.Builder
	b.WriteString("🗓 *المهام المجدولة:*\n")
	n := 0
	if d.deps.Jobs != nil {
		for _, j := range d.deps.Jobs.List() {
			if strings.HasPrefix(j.ID, prayer.JobPrefix) {
				continue
			}
			n++
			fmt.Fprintf(&b, "\n• `%s` %s ← %s", j.ID, j.Trigger, j.Next.In(d.cfg.Location).Format("01-02 15:04"))
		}
	}
	if n == 0 {
		b.WriteString("\nلا توجد مهام")
	}
	return d.reply(ctx, req.ChatID, b.String(), nil)
}

// handlePrayers recomputes the prayer jobs and lists what is installed.
func (d *Dispatcher) handlePrayers(ctx context.Context, req *Request) error {
	var b strings.Builder
	if d.deps.Prayers != nil {
		if err := d.deps.Prayers.Recompute(ctx); err != nil {
			req.Log.Warn("prayer recompute from panel failed", logx.Err(err))
			b.WriteString("⚠️ تعذر تحديث مواعيد الصلاة، الجدول الحالي باقٍ\n\n")
		} else {
			b.WriteString("✅ تم تحديث مواعيد الصلاة\n\n")
		}
	}
	b.WriteString("🕌 *تنبيهات الصلاة القادمة:*\n")
	n := 0
	if d.deps.Jobs != nil {
		for _, j := range d.deps.Jobs.List() {
			if !strings.HasPrefix(j.ID, prayer.JobPrefix) {
				continue
			}
			n++
			fmt.Fprintf(&b, "\n• `%s` %s", strings.TrimPrefix(j.ID, prayer.JobPrefix), j.Next.In(d.cfg.Location).Format("01-02 15:04"))
		}
	}
	if n == 0 {
		b.WriteString("\nلا توجد تنبيهات مجدولة")
	}
	return d.reply(ctx, req.ChatID, b.String(), nil)
}
