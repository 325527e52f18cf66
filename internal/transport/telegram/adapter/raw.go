package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	kit "azkarbot/internal/transport"
)

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type wireUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type wireChat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type wireMessage struct {
	MessageID int             `json:"message_id"`
	From      *wireUser       `json:"from"`
	Chat      wireChat        `json:"chat"`
	Text      string          `json:"text"`
	Caption   string          `json:"caption"`
	Photo     json.RawMessage `json:"photo"`
	Voice     json.RawMessage `json:"voice"`
	Audio     json.RawMessage `json:"audio"`
	Document  json.RawMessage `json:"document"`
	Video     json.RawMessage `json:"video"`
	Sticker   json.RawMessage `json:"sticker"`
}

type wireCallback struct {
	ID      string       `json:"id"`
	From    wireUser     `json:"from"`
	Message *wireMessage `json:"message"`
	Data    string       `json:"data"`
}

type wireUpdate struct {
	UpdateID      int64         `json:"update_id"`
	Message       *wireMessage  `json:"message"`
	CallbackQuery *wireCallback `json:"callback_query"`
}

var allowedUpdates = []string{"message", "callback_query"}

// GetUpdates issues one getUpdates long-poll. Update kinds other than
// message and callback are returned with an empty Kind so the cursor still
// moves past them.
func (a *Adapter) GetUpdates(ctx context.Context, offset int64, limit int, timeout time.Duration) ([]kit.Update, error) {
	params := map[string]any{
		"offset":          offset,
		"limit":           limit,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": allowedUpdates,
	}
	// The server holds the request for up to timeout.
	var raw []wireUpdate
	if err := a.call(ctx, "getUpdates", params, timeout+10*time.Second, &raw); err != nil {
		return nil, err
	}

	out := make([]kit.Update, 0, len(raw))
	for _, u := range raw {
		out = append(out, convertUpdate(u))
	}
	return out, nil
}

func (a *Adapter) GetMe(ctx context.Context) (kit.BotIdentity, error) {
	var u wireUser
	if err := a.call(ctx, "getMe", nil, a.cfg.HTTPTimeout, &u); err != nil {
		return kit.BotIdentity{}, err
	}
	return kit.BotIdentity{ID: u.ID, Username: u.Username, Name: u.FirstName}, nil
}

func convertUpdate(u wireUpdate) kit.Update {
	up := kit.Update{ID: u.UpdateID}
	switch {
	case u.Message != nil:
		up.Kind = kit.UpdateMessage
		up.Message = convertMessage(u.Message)
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		up.Kind = kit.UpdateCallback
		up.Callback = &kit.Callback{ID: cb.ID, FromID: cb.From.ID, Data: cb.Data}
		if cb.Message != nil {
			up.Callback.ChatID = cb.Message.Chat.ID
			up.Callback.MessageID = cb.Message.MessageID
		}
	}
	return up
}

func convertMessage(m *wireMessage) *kit.Message {
	out := &kit.Message{
		ID:        m.MessageID,
		ChatID:    m.Chat.ID,
		ChatType:  kit.ChatType(m.Chat.Type),
		ChatTitle: m.Chat.Title,
		Text:      m.Text,
	}
	if out.Text == "" {
		out.Text = m.Caption
	}
	if m.From != nil {
		out.FromID = m.From.ID
		out.FromUsername = m.From.Username
	}
	for _, r := range []json.RawMessage{m.Photo, m.Voice, m.Audio, m.Document, m.Video, m.Sticker} {
		if len(r) > 0 && string(r) != "null" {
			out.HasMedia = true
			break
		}
	}
	return out
}

// call posts a JSON Bot API request and decodes result into out.
func (a *Adapter) call(ctx context.Context, method string, params map[string]any, timeout time.Duration, out any) error {
	var body io.Reader = http.NoBody
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := a.cfg.APIURL + "/bot" + a.cfg.Token + "/" + method
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// The shared client timeout is shorter than a long poll; use a copy
	// bounded by the request context instead.
	client := *a.http
	client.Timeout = 0
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("telegram %s: read: %w", method, err)
	}

	var ar apiResponse
	if err := json.Unmarshal(data, &ar); err != nil {
		if resp.StatusCode/100 != 2 {
			return &kit.APIError{Method: method, Status: resp.StatusCode}
		}
		return fmt.Errorf("telegram %s: decode: %w", method, err)
	}
	if resp.StatusCode/100 != 2 || !ar.OK {
		status := ar.ErrorCode
		if status == 0 {
			status = resp.StatusCode
		}
		return &kit.APIError{
			Method:      method,
			Status:      status,
			Description: ar.Description,
			RetryAfter:  time.Duration(ar.Parameters.RetryAfter) * time.Second,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(ar.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}
