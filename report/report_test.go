package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"weather-telegram-bot/chart"
	"weather-telegram-bot/forecast"
	"weather-telegram-bot/storage"
)

// Mocks

type mockGeocoder struct {
	suburb     string
	shouldFail bool
	calls      int
}

func (m *mockGeocoder) ResolveSuburb(ctx context.Context, lat, lon float64) (string, error) {
	m.calls++
	if m.shouldFail {
		return "", errors.New("geocode failed")
	}
	return m.suburb, nil
}

type mockForecastClient struct {
	payload    *forecast.Payload
	shouldFail bool
	calls      int
}

func (m *mockForecastClient) Fetch(ctx context.Context, req forecast.Request) (*forecast.Payload, error) {
	m.calls++
	if m.shouldFail {
		return nil, errors.New("HTTP 500")
	}
	return m.payload, nil
}

type mockRenderer struct {
	shouldFail bool
	calls      int
}

func (m *mockRenderer) Render(spec *chart.Spec) ([]byte, error) {
	m.calls++
	if m.shouldFail {
		return nil, errors.New("render failed")
	}
	return []byte(fmt.Sprintf("png-%d", m.calls)), nil
}

type mockSummarizer struct {
	text       string
	shouldFail bool
	gotSuburb  string
}

func (m *mockSummarizer) Summarize(ctx context.Context, forecastJSON, suburb string, at time.Time) (string, error) {
	m.gotSuburb = suburb
	if m.shouldFail {
		return "", errors.New("summarize failed")
	}
	return m.text, nil
}

type sentMessage struct {
	chatID   int64
	threadID *int
	captions []string
	text     string
}

type mockSender struct {
	sent         []sentMessage
	failForChats map[int64]bool
}

func (m *mockSender) SendMediaGroup(ctx context.Context, chatID int64, threadID *int, images []Image) error {
	if m.failForChats[chatID] {
		return errors.New("send failed")
	}
	captions := make([]string, len(images))
	for i, img := range images {
		captions[i] = img.Caption
	}
	m.sent = append(m.sent, sentMessage{chatID: chatID, threadID: threadID, captions: captions})
	return nil
}

func (m *mockSender) SendMarkdown(ctx context.Context, chatID int64, threadID *int, text string) error {
	if m.failForChats[chatID] {
		return errors.New("send failed")
	}
	m.sent = append(m.sent, sentMessage{chatID: chatID, threadID: threadID, text: text})
	return nil
}

type mockSubscribers struct {
	subs []storage.Subscriber
}

func (m *mockSubscribers) All() []storage.Subscriber {
	return append([]storage.Subscriber(nil), m.subs...)
}

func intPtr(v int) *int { return &v }

func testPayload() *forecast.Payload {
	return &forecast.Payload{
		Timestamps: []string{"2024-05-01T13:00", "2024-05-01T14:00"},
		Units: map[string]string{
			"temperature_2m":            "°C",
			"precipitation_probability": "%",
			"rain":                      "mm",
			"showers":                   "mm",
			"snowfall":                  "cm",
			"cloud_cover":               "%",
			"wind_speed_10m":            "km/h",
		},
		Series: map[string][]float64{
			"temperature_2m":            {18, 19},
			"precipitation_probability": {10, 20},
			"rain":                      {0, 0.1},
			"showers":                   {0, 0},
			"snowfall":                  {0, 0},
			"cloud_cover":               {40, 60},
			"wind_speed_10m":            {10, 12},
		},
	}
}

type fixture struct {
	geocoder    *mockGeocoder
	forecasts   *mockForecastClient
	renderer    *mockRenderer
	summarizer  *mockSummarizer
	sender      *mockSender
	subscribers *mockSubscribers
	runner      *Runner
}

func newFixture(subs ...storage.Subscriber) *fixture {
	f := &fixture{
		geocoder:    &mockGeocoder{suburb: "Zentrum-West"},
		forecasts:   &mockForecastClient{payload: testPayload()},
		renderer:    &mockRenderer{},
		summarizer:  &mockSummarizer{text: "Heute wird es freundlich."},
		sender:      &mockSender{failForChats: map[int64]bool{}},
		subscribers: &mockSubscribers{subs: subs},
	}
	f.runner = NewRunner(
		f.geocoder, f.forecasts, f.renderer, f.summarizer, f.sender, f.subscribers,
		forecast.Request{Latitude: 51.3079, Longitude: 12.3761},
	)
	return f
}

// Tests

func TestRunProducesOrderedAlbum(t *testing.T) {
	f := newFixture()

	rep, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(rep.Images) != 5 {
		t.Fatalf("got %d images, want 5", len(rep.Images))
	}
	wantCaptions := []string{
		"Temperaturvorhersage",
		"Niederschlagsvorhersage",
		"Windgeschwindigkeit Vorhersage",
		"Bewölkung Vorhersage",
		"Niederschlagswahrscheinlichkeit Vorhersage",
	}
	for i, want := range wantCaptions {
		if rep.Images[i].Caption != want {
			t.Errorf("Images[%d].Caption = %q, want %q", i, rep.Images[i].Caption, want)
		}
		if len(rep.Images[i].Data) == 0 {
			t.Errorf("Images[%d] has no data", i)
		}
	}
	if rep.Summary != "Heute wird es freundlich." {
		t.Errorf("Summary = %q", rep.Summary)
	}
	if f.summarizer.gotSuburb != "Zentrum-West" {
		t.Errorf("summarizer got suburb %q", f.summarizer.gotSuburb)
	}
}

func TestRunGeocodeFailureUsesFallback(t *testing.T) {
	f := newFixture()
	f.geocoder.shouldFail = true

	_, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The fallback string is user-facing text and flows into the prompt.
	if f.summarizer.gotSuburb != fallbackSuburb {
		t.Errorf("summarizer got suburb %q, want fallback", f.summarizer.gotSuburb)
	}
}

func TestRunForecastFailureAborts(t *testing.T) {
	f := newFixture()
	f.forecasts.shouldFail = true

	_, err := f.runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when forecast fetch fails")
	}
	if f.renderer.calls != 0 {
		t.Errorf("renderer called %d times after fetch failure", f.renderer.calls)
	}
}

func TestRunSummaryFailureAborts(t *testing.T) {
	f := newFixture()
	f.summarizer.shouldFail = true

	_, err := f.runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when summary generation fails")
	}
}

func TestRunRenderFailureAborts(t *testing.T) {
	f := newFixture()
	f.renderer.shouldFail = true

	_, err := f.runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when rendering fails")
	}
}

func TestRunScheduledEmptySetShortCircuits(t *testing.T) {
	f := newFixture() // no subscribers

	f.runner.RunScheduled(context.Background())

	if f.forecasts.calls != 0 {
		t.Errorf("forecast fetched %d times with no subscribers", f.forecasts.calls)
	}
	if f.geocoder.calls != 0 {
		t.Errorf("geocoder called %d times with no subscribers", f.geocoder.calls)
	}
	if len(f.sender.sent) != 0 {
		t.Errorf("sent %d messages with no subscribers", len(f.sender.sent))
	}
}

func TestRunScheduledFailureSendsNothing(t *testing.T) {
	f := newFixture(storage.Subscriber{ChatID: 100})
	f.forecasts.shouldFail = true

	f.runner.RunScheduled(context.Background())

	if len(f.sender.sent) != 0 {
		t.Errorf("sent %d messages after pipeline failure", len(f.sender.sent))
	}
}

func TestDeliverAddressesThreads(t *testing.T) {
	f := newFixture(
		storage.Subscriber{ChatID: 100},
		storage.Subscriber{ChatID: 200, MessageThreadID: intPtr(7)},
	)

	f.runner.RunScheduled(context.Background())

	// Album then summary per subscriber.
	if len(f.sender.sent) != 4 {
		t.Fatalf("got %d sends, want 4", len(f.sender.sent))
	}

	album1, summary1 := f.sender.sent[0], f.sender.sent[1]
	album2, summary2 := f.sender.sent[2], f.sender.sent[3]

	if album1.chatID != 100 || album1.threadID != nil {
		t.Errorf("first album addressed to %d/%v", album1.chatID, album1.threadID)
	}
	if summary1.chatID != 100 || summary1.text == "" {
		t.Errorf("first summary addressed to %d with text %q", summary1.chatID, summary1.text)
	}
	if album2.chatID != 200 || album2.threadID == nil || *album2.threadID != 7 {
		t.Errorf("second album addressed to %d/%v", album2.chatID, album2.threadID)
	}
	if summary2.chatID != 200 || summary2.threadID == nil || *summary2.threadID != 7 {
		t.Errorf("second summary addressed to %d/%v", summary2.chatID, summary2.threadID)
	}
	if summary1.text != summary2.text {
		t.Error("subscribers should receive the same summary text")
	}
	if strings.Join(album1.captions, "|") != strings.Join(album2.captions, "|") {
		t.Error("subscribers should receive the same album")
	}
}

func TestDeliverIsolatesFailures(t *testing.T) {
	f := newFixture(
		storage.Subscriber{ChatID: 100},
		storage.Subscriber{ChatID: 200},
	)
	f.sender.failForChats[100] = true

	f.runner.RunScheduled(context.Background())

	// The failing subscriber must not block the next one.
	var delivered []int64
	for _, msg := range f.sender.sent {
		delivered = append(delivered, msg.chatID)
	}
	if len(delivered) != 2 || delivered[0] != 200 || delivered[1] != 200 {
		t.Errorf("delivered to %v, want album+summary for chat 200", delivered)
	}
}
