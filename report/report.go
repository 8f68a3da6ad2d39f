package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"weather-telegram-bot/chart"
	"weather-telegram-bot/forecast"
	"weather-telegram-bot/storage"
)

// fallbackSuburb stands in for the location name when reverse geocoding
// fails. It is deliberately the same user-facing string the original bot
// showed, and it flows into the summary prompt as-is.
const fallbackSuburb = "Unable to fetch data at the moment."

// Image is one rendered chart with its album caption.
type Image struct {
	Data    []byte
	Caption string
}

// Report is the outcome of one pipeline run: the chart album and the verbal
// forecast, shared by every subscriber of that run.
type Report struct {
	Images  []Image
	Summary string
}

// SuburbResolver reverse-geocodes the fixed coordinate.
type SuburbResolver interface {
	ResolveSuburb(ctx context.Context, lat, lon float64) (string, error)
}

// ForecastClient fetches the hourly forecast.
type ForecastClient interface {
	Fetch(ctx context.Context, req forecast.Request) (*forecast.Payload, error)
}

// Renderer rasterizes chart specs.
type Renderer interface {
	Render(spec *chart.Spec) ([]byte, error)
}

// Summarizer generates the verbal forecast.
type Summarizer interface {
	Summarize(ctx context.Context, forecastJSON, suburb string, at time.Time) (string, error)
}

// MediaSender delivers a report to one destination.
type MediaSender interface {
	SendMediaGroup(ctx context.Context, chatID int64, threadID *int, images []Image) error
	SendMarkdown(ctx context.Context, chatID int64, threadID *int, text string) error
}

// SubscriberSource lists current delivery destinations.
type SubscriberSource interface {
	All() []storage.Subscriber
}

// Runner orchestrates one pipeline run: resolve location, fetch the
// forecast, render the five charts, generate the summary, deliver.
type Runner struct {
	geocoder    SuburbResolver
	forecasts   ForecastClient
	renderer    Renderer
	summarizer  Summarizer
	sender      MediaSender
	subscribers SubscriberSource
	req         forecast.Request
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a pipeline runner for a fixed forecast request.
func NewRunner(
	geocoder SuburbResolver,
	forecasts ForecastClient,
	renderer Renderer,
	summarizer Summarizer,
	sender MediaSender,
	subscribers SubscriberSource,
	req forecast.Request,
	opts ...Option,
) *Runner {
	r := &Runner{
		geocoder:    geocoder,
		forecasts:   forecasts,
		renderer:    renderer,
		summarizer:  summarizer,
		sender:      sender,
		subscribers: subscribers,
		req:         req,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the pipeline once. Any stage failure other than reverse
// geocoding aborts the run and discards partial results. The summary call
// runs concurrently with chart rendering and is joined before assembly.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	suburb, err := r.geocoder.ResolveSuburb(ctx, r.req.Latitude, r.req.Longitude)
	if err != nil {
		slog.Warn("reverse geocode failed, using fallback name", "error", err)
		suburb = fallbackSuburb
	}

	payload, err := r.forecasts.Fetch(ctx, r.req)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	specs, err := chart.BuildSpecs(payload)
	if err != nil {
		return nil, fmt.Errorf("build chart specs: %w", err)
	}

	forecastJSON, err := payload.JSON()
	if err != nil {
		return nil, err
	}

	type summaryResult struct {
		text string
		err  error
	}
	summaryCh := make(chan summaryResult, 1)
	go func() {
		text, err := r.summarizer.Summarize(ctx, forecastJSON, suburb, r.now())
		summaryCh <- summaryResult{text: text, err: err}
	}()

	album := []struct {
		spec    *chart.Spec
		caption string
	}{
		{specs.Temperature, "Temperaturvorhersage"},
		{specs.Precipitation, "Niederschlagsvorhersage"},
		{specs.WindSpeed, "Windgeschwindigkeit Vorhersage"},
		{specs.CloudCover, "Bewölkung Vorhersage"},
		{specs.PrecipitationProbability, "Niederschlagswahrscheinlichkeit Vorhersage"},
	}

	images := make([]Image, 0, len(album))
	var renderErr error
	for _, entry := range album {
		data, err := r.renderer.Render(entry.spec)
		if err != nil {
			renderErr = fmt.Errorf("render %q: %w", entry.caption, err)
			break
		}
		images = append(images, Image{Data: data, Caption: entry.caption})
	}

	summary := <-summaryCh
	if renderErr != nil {
		return nil, renderErr
	}
	if summary.err != nil {
		return nil, fmt.Errorf("generate summary: %w", summary.err)
	}

	return &Report{Images: images, Summary: summary.text}, nil
}

// RunScheduled is the daily trigger entry point. With no subscribers the
// pipeline is skipped entirely; on failure it logs and skips that day's
// delivery. There is no retry and no backlog.
func (r *Runner) RunScheduled(ctx context.Context) {
	subs := r.subscribers.All()
	if len(subs) == 0 {
		slog.Info("no subscribers, skipping scheduled run")
		return
	}

	rep, err := r.Run(ctx)
	if err != nil {
		slog.Error("scheduled run failed", "error", err)
		return
	}

	r.Deliver(ctx, rep)
}

// Deliver fans the report out to every current subscriber: the album as one
// grouped message, then the summary text. A failure for one subscriber is
// logged and does not stop delivery to the rest.
func (r *Runner) Deliver(ctx context.Context, rep *Report) {
	subs := r.subscribers.All()
	delivered := 0
	for _, sub := range subs {
		if err := r.DeliverTo(ctx, sub, rep); err != nil {
			slog.Warn("delivery failed", "chat_id", sub.ChatID, "error", err)
			continue
		}
		delivered++
	}
	slog.Info("report delivered", "subscribers", len(subs), "delivered", delivered)
}

// DeliverTo sends the report to one destination.
func (r *Runner) DeliverTo(ctx context.Context, sub storage.Subscriber, rep *Report) error {
	if err := r.sender.SendMediaGroup(ctx, sub.ChatID, sub.MessageThreadID, rep.Images); err != nil {
		return fmt.Errorf("send media group: %w", err)
	}
	if err := r.sender.SendMarkdown(ctx, sub.ChatID, sub.MessageThreadID, rep.Summary); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}
	return nil
}
