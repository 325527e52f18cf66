package config

import (
	"reflect"
	"strings"

	logx "azkarbot/pkg/logx"
)

// SummarizeConfigChange lists the changed sections and safe fields to log.
// Tokens and keys are reported only as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		changed []string
		attrs   []logx.Field
	)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.AdminID != nt.AdminID || ot.APIURL != nt.APIURL ||
		ot.PollTimeout != nt.PollTimeout || ot.PollLimit != nt.PollLimit ||
		ot.DeveloperURL != nt.DeveloperURL || ot.SourceURL != nt.SourceURL {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.Int64("telegram.admin_id", nt.AdminID),
			logx.String("telegram.poll_timeout", nt.PollTimeout),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.admin", newCfg.Logging.Admin.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
			logx.String("scheduler.rotation_every", newCfg.Scheduler.RotationEvery),
			logx.String("scheduler.morning_slots", strings.Join(newCfg.Scheduler.MorningSlots, ",")),
			logx.String("scheduler.evening_slots", strings.Join(newCfg.Scheduler.EveningSlots, ",")),
		)
	}

	if !reflect.DeepEqual(oldCfg.Prayer, newCfg.Prayer) {
		changed = append(changed, "prayer")
		attrs = append(attrs,
			logx.String("prayer.recompute", newCfg.Prayer.Recompute),
			logx.String("prayer.city", newCfg.Prayer.City),
			logx.Int("prayer.method", newCfg.Prayer.Method),
		)
	}

	if !reflect.DeepEqual(oldCfg.Content, newCfg.Content) {
		changed = append(changed, "content")
	}
	if !reflect.DeepEqual(oldCfg.Broadcast, newCfg.Broadcast) {
		changed = append(changed, "broadcast")
		attrs = append(attrs, logx.Int("broadcast.rate_per_sec", newCfg.Broadcast.RatePerSec))
	}

	os3, ns3 := oldCfg.Storage.S3, newCfg.Storage.S3
	if oldCfg.Storage.Driver != newCfg.Storage.Driver || oldCfg.Storage.Path != newCfg.Storage.Path ||
		oldCfg.Storage.BusyTimeout != newCfg.Storage.BusyTimeout ||
		os3.Bucket != ns3.Bucket || os3.Key != ns3.Key || os3.Region != ns3.Region || os3.Endpoint != ns3.Endpoint ||
		os3.AccessKeyID != ns3.AccessKeyID || os3.SecretAccessKey != ns3.SecretAccessKey || os3.ForcePathStyle != ns3.ForcePathStyle {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.s3", ns3.Bucket != ""),
		)
	}

	if oldCfg.Ops.Enabled != newCfg.Ops.Enabled || oldCfg.Ops.Addr != newCfg.Ops.Addr ||
		oldCfg.Ops.Pprof != newCfg.Ops.Pprof || (oldCfg.Ops.Token != "") != (newCfg.Ops.Token != "") {
		changed = append(changed, "ops")
		attrs = append(attrs,
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.String("ops.addr", newCfg.Ops.Addr),
			logx.Bool("ops.token_set", newCfg.Ops.Token != ""),
		)
	}

	return changed, attrs
}

// RestartRequired reports sections whose changes only take effect on restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		if s != "logging" {
			out = append(out, s)
		}
	}
	return out
}
