package app

import (
	"context"
	"slices"
	"strings"

	"azkarbot/internal/config"
	logx "azkarbot/pkg/logx"
)

// reloadLoop applies published configs. Only logging is live; other
// sections are reported as needing a restart.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			next = latest(sub, next)
			a.applyConfig(last, next)
			last = next
		}
	}
}

// latest drains queued configs and keeps the newest.
func latest(sub chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer := <-sub:
			if newer != nil {
				cur = newer
			}
		default:
			return cur
		}
	}
}

func (a *App) applyConfig(prev, next *config.Config) {
	sections, _ := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		return
	}
	if slices.Contains(sections, "logging") {
		a.logs.Apply(logConfig(next.Logging))
		a.log.Debug("logging reconfigured", logx.String("level", next.Logging.Level))
	}
	if pending := config.RestartRequired(sections); len(pending) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("sections", strings.Join(pending, ",")))
	}
}
