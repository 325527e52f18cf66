package config

// Config is the on-disk configuration. Every section is optional; zero
// values fall back to the defaults applied by Defaults and Resolve.
//
// Secrets normally come from the environment (see applyEnv); the env tags
// below name the variables that override the file.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Prayer    PrayerConfig    `json:"prayer"`
	Content   ContentConfig   `json:"content"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Storage   StorageConfig   `json:"storage"`
	Ops       OpsConfig       `json:"ops"`
}

type TelegramConfig struct {
	Token   string `json:"token" env:"BOT_TOKEN"`
	AdminID int64  `json:"admin_id" env:"ADMIN_ID"`
	// APIURL overrides the Bot API base (local Bot API server).
	APIURL string `json:"api_url,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout"`
	PollLimit   int    `json:"poll_limit"`

	DeveloperURL string `json:"developer_url,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
}

type LoggingConfig struct {
	Level   string       `json:"level" env:"LOG_LEVEL"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Admin   LoggingAdmin `json:"admin"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAdmin forwards warnings and errors to the admin chat.
type LoggingAdmin struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type SchedulerConfig struct {
	Timezone      string   `json:"timezone"`
	RotationEvery string   `json:"rotation_every"`
	WarmStart     string   `json:"warm_start"`
	RotationGrace string   `json:"rotation_grace"`
	PushGrace     string   `json:"push_grace"`
	MorningSlots  []string `json:"morning_slots"`
	EveningSlots  []string `json:"evening_slots"`
	Heartbeat     string   `json:"heartbeat"`
	JobTimeout    string   `json:"job_timeout,omitempty"`
}

type PrayerConfig struct {
	Recompute  string `json:"recompute"`
	AlertLead  string `json:"alert_lead"`
	AfterDelay string `json:"after_delay"`
	City       string `json:"city"`
	Country    string `json:"country"`
	Method     int    `json:"method"`
	APIURL     string `json:"api_url,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

type ContentConfig struct {
	Root      string `json:"root"`
	TextsFile string `json:"texts_file"`
}

type BroadcastConfig struct {
	ChannelURL  string `json:"channel_url"`
	RatePerSec  int    `json:"rate_per_sec"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

// StorageConfig selects the group store. A configured S3 bucket wins over
// the local driver.
//
//	"storage": { "driver": "sqlite", "path": "./azkarbot.db" }
type StorageConfig struct {
	Driver      string   `json:"driver"`
	Path        string   `json:"path"`
	BusyTimeout string   `json:"busy_timeout,omitempty"`
	S3          S3Config `json:"s3"`
}

type S3Config struct {
	Bucket          string `json:"bucket" env:"S3_BUCKET"`
	Key             string `json:"key" env:"S3_KEY"`
	Region          string `json:"region" env:"S3_REGION"`
	Endpoint        string `json:"endpoint" env:"S3_ENDPOINT"`
	AccessKeyID     string `json:"access_key_id,omitempty" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secret_access_key,omitempty" env:"AWS_SECRET_ACCESS_KEY"`
	ForcePathStyle  bool   `json:"force_path_style,omitempty"`
}

// OpsConfig controls the local HTTP server for /metrics, /healthz and pprof.
//
// Prefer a loopback address; pprof on a public address needs a token.
type OpsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9090"
	Pprof   bool   `json:"pprof,omitempty"`
	Token   string `json:"token,omitempty"` // bearer token for pprof (do not log)
}

// Defaults returns the configuration used when no file exists.
func Defaults() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout:  "10s",
			PollLimit:    50,
			DeveloperURL: "https://t.me/mavdiii",
			SourceURL:    "https://github.com/Mavdii/bot",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Admin:   LoggingAdmin{MinLevel: "error", RatePerSec: 1},
		},
		Scheduler: SchedulerConfig{
			Timezone:      "Africa/Cairo",
			RotationEvery: "5m",
			WarmStart:     "30s",
			RotationGrace: "60s",
			PushGrace:     "300s",
			MorningSlots:  []string{"05:30", "07:00", "08:00"},
			EveningSlots:  []string{"18:00", "19:00", "20:00"},
			Heartbeat:     "30m",
		},
		Prayer: PrayerConfig{
			Recompute:  "00:05",
			AlertLead:  "5m",
			AfterDelay: "20m",
			City:       "cairo",
			Country:    "egypt",
			Method:     8,
		},
		Content: ContentConfig{Root: ".", TextsFile: "Azkar.txt"},
		Broadcast: BroadcastConfig{
			ChannelURL: "https://t.me/Telawat_Quran_0",
			RatePerSec: 20,
		},
		Storage: StorageConfig{Driver: "file", Path: "active_groups.json"},
		Ops:     OpsConfig{Addr: "127.0.0.1:9090"},
	}
}
