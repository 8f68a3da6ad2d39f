package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"weather-telegram-bot/report"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// Client is a minimal Telegram Bot API client covering exactly the calls
// this bot needs: long-poll updates, thread-addressable text messages, and
// photo albums. The message_thread_id parameter requires Bot API 6.3, which
// is why the calls are issued directly.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// NewClient creates a Telegram client. The HTTP timeout leaves headroom
// over the long-poll window.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:      token,
		baseURL:    defaultAPIBaseURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update is one inbound Telegram update. Only plain messages are consumed.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID       int64  `json:"message_id"`
	From            *User  `json:"from"`
	Chat            Chat   `json:"chat"`
	Text            string `json:"text"`
	MessageThreadID *int   `json:"message_thread_id"`
}

// User is the sender of a message.
type User struct {
	ID int64 `json:"id"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// GetMe returns the bot's username, validating the token.
func (c *Client) GetMe(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "getMe", "", nil)
	if err != nil {
		return "", err
	}

	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(result, &me); err != nil {
		return "", fmt.Errorf("decode getMe result: %w", err)
	}
	return me.Username, nil
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSecs int) ([]Update, error) {
	values := url.Values{}
	values.Set("offset", strconv.FormatInt(offset, 10))
	values.Set("timeout", strconv.Itoa(timeoutSecs))
	values.Set("allowed_updates", `["message"]`)

	result, err := c.call(ctx, "getUpdates", "application/x-www-form-urlencoded",
		strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// SendText sends a plain text message to a chat and optional thread.
func (c *Client) SendText(ctx context.Context, chatID int64, threadID *int, text string) error {
	return c.sendMessage(ctx, chatID, threadID, text, false)
}

// SendMarkdown sends a message with Markdown parsing and link previews
// disabled, which is how the verbal forecast and its attribution links go
// out.
func (c *Client) SendMarkdown(ctx context.Context, chatID int64, threadID *int, text string) error {
	return c.sendMessage(ctx, chatID, threadID, text, true)
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, threadID *int, text string, markdown bool) error {
	values := url.Values{}
	values.Set("chat_id", strconv.FormatInt(chatID, 10))
	values.Set("text", text)
	if threadID != nil {
		values.Set("message_thread_id", strconv.Itoa(*threadID))
	}
	if markdown {
		values.Set("parse_mode", "Markdown")
		values.Set("disable_web_page_preview", "true")
	}

	_, err := c.call(ctx, "sendMessage", "application/x-www-form-urlencoded",
		strings.NewReader(values.Encode()))
	return err
}

// SendMediaGroup sends the rendered charts as one photo album with captions.
func (c *Client) SendMediaGroup(ctx context.Context, chatID int64, threadID *int, images []report.Image) error {
	if len(images) == 0 {
		return fmt.Errorf("no images to send")
	}

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("write chat_id: %w", err)
	}
	if threadID != nil {
		if err := w.WriteField("message_thread_id", strconv.Itoa(*threadID)); err != nil {
			return fmt.Errorf("write message_thread_id: %w", err)
		}
	}

	type inputMediaPhoto struct {
		Type    string `json:"type"`
		Media   string `json:"media"`
		Caption string `json:"caption,omitempty"`
	}
	media := make([]inputMediaPhoto, len(images))
	for i, img := range images {
		name := fmt.Sprintf("chart%d", i)
		media[i] = inputMediaPhoto{
			Type:    "photo",
			Media:   "attach://" + name,
			Caption: img.Caption,
		}

		part, err := w.CreateFormFile(name, name+".png")
		if err != nil {
			return fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
	}

	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("marshal media: %w", err)
	}
	if err := w.WriteField("media", string(mediaJSON)); err != nil {
		return fmt.Errorf("write media field: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	_, err = c.call(ctx, "sendMediaGroup", w.FormDataContentType(), body)
	return err
}

func (c *Client) call(ctx context.Context, method, contentType string, body io.Reader) (json.RawMessage, error) {
	reqURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	httpMethod := http.MethodPost
	if body == nil {
		httpMethod = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		if apiResp.Description != "" {
			return nil, fmt.Errorf("%s: telegram API error: %s", method, apiResp.Description)
		}
		return nil, fmt.Errorf("%s: telegram API returned not OK (status %d)", method, resp.StatusCode)
	}

	return apiResp.Result, nil
}
