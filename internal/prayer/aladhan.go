package prayer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"azkarbot/internal/task/scheduler"
)

const DefaultAladhanURL = "https://api.aladhan.com"

type AladhanConfig struct {
	BaseURL string
	City    string
	Country string
	Method  int
	Timeout time.Duration
}

// Aladhan reads timings from the aladhan.com timingsByCity endpoint.
type Aladhan struct {
	cfg    AladhanConfig
	client *http.Client
}

// NewAladhan returns a Source. client may be nil.
func NewAladhan(cfg AladhanConfig, client *http.Client) *Aladhan {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAladhanURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Aladhan{cfg: cfg, client: client}
}

type timingsResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   struct {
		Timings map[string]string `json:"timings"`
	} `json:"data"`
}

func (a *Aladhan) Fetch(ctx context.Context, date time.Time) (Set, error) {
	q := url.Values{}
	q.Set("city", a.cfg.City)
	q.Set("country", a.cfg.Country)
	q.Set("method", strconv.Itoa(a.cfg.Method))
	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/timingsByCity/" + date.Format("02-01-2006") + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aladhan: status %d", resp.StatusCode)
	}

	var out timingsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("aladhan: decode: %w", err)
	}
	if out.Code != http.StatusOK {
		return nil, fmt.Errorf("aladhan: code %d (%s)", out.Code, out.Status)
	}

	set := Set{}
	for _, n := range Names {
		raw, ok := out.Data.Timings[string(n)]
		if !ok {
			continue
		}
		h, m, err := scheduler.ParseClock(raw)
		if err != nil {
			return nil, fmt.Errorf("aladhan: %s: %w", n, err)
		}
		set[n] = Clock{Hour: h, Minute: m}
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("aladhan: %w", err)
	}
	return set, nil
}
