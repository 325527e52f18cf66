package app

import (
	"strings"

	"azkarbot/internal/config"
	"azkarbot/internal/storage"
	kit "azkarbot/internal/transport"
	logx "azkarbot/pkg/logx"
)

func logConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		Admin: logx.AdminConfig{
			Enabled:    c.Admin.Enabled,
			MinLevel:   c.Admin.MinLevel,
			RatePerSec: c.Admin.RatePerSec,
		},
	}
}

func storageConfig(c config.StorageConfig, res *config.Resolved) storage.Config {
	return storage.Config{
		Driver:      c.Driver,
		Path:        c.Path,
		BusyTimeout: res.BusyTimeout,
		S3: storage.S3Config{
			Bucket:          strings.TrimSpace(c.S3.Bucket),
			Key:             c.S3.Key,
			Region:          c.S3.Region,
			Endpoint:        c.S3.Endpoint,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			ForcePathStyle:  c.S3.ForcePathStyle,
		},
	}
}

// startKeyboard is the /start reply keyboard: an add-to-group deep link
// plus the developer and source links when configured.
func startKeyboard(c config.TelegramConfig, username string) *kit.Keyboard {
	var rows [][]kit.Button
	if username != "" {
		rows = append(rows, []kit.Button{{Text: "➕ أضف البوت إلى مجموعتك", URL: "https://t.me/" + username + "?startgroup=inpvbtn"}})
	}
	var links []kit.Button
	if c.DeveloperURL != "" {
		links = append(links, kit.Button{Text: "👨‍💻 المطور", URL: c.DeveloperURL})
	}
	if c.SourceURL != "" {
		links = append(links, kit.Button{Text: "📂 السورس", URL: c.SourceURL})
	}
	if len(links) > 0 {
		rows = append(rows, links)
	}
	if len(rows) == 0 {
		return nil
	}
	return &kit.Keyboard{Rows: rows}
}
