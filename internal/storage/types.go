package storage

import (
	"context"
	"time"
)

// GroupStore loads and saves the full group set. Save replaces what is stored.
type GroupStore interface {
	Load(ctx context.Context) ([]int64, error)
	Save(ctx context.Context, groups []int64) error
	Close() error
}

type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only
	S3          S3Config
}

type S3Config struct {
	Bucket          string
	Key             string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// Enabled reports whether remote storage is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }
