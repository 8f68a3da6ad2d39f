package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultBaseURL = "https://api.openai.com"
)

// Attribution lines appended to every verbal forecast.
const (
	osmAttribution       = "[Map data © OpenStreetMap contributors](http://www.openstreetmap.org/copyright)"
	openMeteoAttribution = "[Weather data © Open-Meteo, licensed under CC BY 4.0](https://open-meteo.com/)"
)

// Summarizer turns a serialized forecast into a verbal weather report using
// the OpenAI chat completions API.
type Summarizer struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithModel sets the OpenAI model to use.
func WithModel(model string) Option {
	return func(s *Summarizer) {
		s.model = model
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(s *Summarizer) {
		s.baseURL = url
	}
}

// NewSummarizer creates a new OpenAI-based summarizer.
func NewSummarizer(apiKey string, opts ...Option) *Summarizer {
	s := &Summarizer{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize generates the verbal forecast for one pipeline run and appends
// the fixed attribution lines. Failures here abort the run; there is no
// fallback summary.
func (s *Summarizer) Summarize(ctx context.Context, forecastJSON, suburb string, at time.Time) (string, error) {
	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(forecastJSON, suburb, at)},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := s.baseURL + "/v1/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	text := chatResp.Choices[0].Message.Content
	return text + "\n" + osmAttribution + "\n" + openMeteoAttribution, nil
}

func buildPrompt(forecastJSON, suburb string, at time.Time) string {
	return fmt.Sprintf("Zeit: %s, Ort: %s Wetterbericht: %s. "+
		"Wandle diese Daten in einen verbalen Wetterbericht um, der die "+
		"Veränderungen über die Zeit in unter 800 Zeichen zusammenfassend "+
		"darstellt. Gib zum Schluss eine kurze Kleidungsempfehlung.",
		at.Format("02.01.2006, 15:04")+" Uhr", suburb, forecastJSON)
}

// OpenAI API types

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
