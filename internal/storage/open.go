package storage

import (
	"context"
	"errors"
	"strings"

	logx "azkarbot/pkg/logx"
)

const DefaultS3Key = "active_groups.json"

// Open initializes the configured group store. A configured S3 bucket
// takes precedence over the local driver.
func Open(ctx context.Context, cfg Config, log logx.Logger) (GroupStore, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"))

	if cfg.S3.Enabled() {
		log.Info("group store: s3", logx.String("bucket", cfg.S3.Bucket), logx.String("key", s3Key(cfg.S3)))
		return openS3(ctx, cfg.S3, log)
	}

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "file", "json":
		log.Info("group store: file", logx.String("path", cfg.Path))
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		log.Info("group store: sqlite", logx.String("path", cfg.Path))
		return openSQLite(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func s3Key(c S3Config) string {
	if k := strings.TrimSpace(c.Key); k != "" {
		return k
	}
	return DefaultS3Key
}
