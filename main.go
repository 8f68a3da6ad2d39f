package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"weather-telegram-bot/bot"
	"weather-telegram-bot/chart"
	"weather-telegram-bot/config"
	"weather-telegram-bot/forecast"
	"weather-telegram-bot/geocode"
	"weather-telegram-bot/report"
	"weather-telegram-bot/scheduler"
	"weather-telegram-bot/storage"
	"weather-telegram-bot/summarizer"
)

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Secrets may come from a local .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	slog.Info("starting weather bot")

	// Load configuration
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "path", configPath)

	// Load subscribers; a missing file just means nobody subscribed yet
	store := storage.Open(cfg.SubscriptionFile)
	slog.Info("subscriber store loaded", "path", cfg.SubscriptionFile, "subscribers", len(store.All()))

	// Initialize Telegram client
	tg := bot.NewClient(cfg.TelegramToken)
	username, err := tg.GetMe(context.Background())
	if err != nil {
		slog.Error("failed to reach Telegram", "error", err)
		os.Exit(1)
	}
	slog.Info("telegram bot initialized", "username", username)

	// Initialize pipeline components
	fetchTimeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second
	forecastClient := forecast.NewClient(forecast.WithTimeout(fetchTimeout))
	geocodeClient := geocode.NewClient(geocode.WithTimeout(fetchTimeout))
	verbalizer := summarizer.NewSummarizer(cfg.OpenAIAPIKey, summarizer.WithModel(cfg.OpenAIModel))
	renderer := chart.NewRenderer(chart.WithSize(cfg.ChartWidth, cfg.ChartHeight))

	runner := report.NewRunner(
		geocodeClient,
		forecastClient,
		renderer,
		verbalizer,
		tg,
		store,
		forecast.Request{
			Latitude:        cfg.Latitude,
			Longitude:       cfg.Longitude,
			Timezone:        cfg.Timezone,
			ForecastDays:    cfg.ForecastDays,
			ForecastHours:   cfg.ForecastHours,
			HourlyVariables: cfg.HourlyVariables,
		},
	)

	handler := bot.NewHandler(tg, store, runner,
		bot.WithOwnerID(cfg.OwnerID),
		bot.WithUpdateTime(cfg.UpdateTime),
	)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Schedule the daily report
	sched, err := scheduler.New(cfg.Timezone)
	if err != nil {
		slog.Error("failed to initialize scheduler", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}
	if err := sched.ScheduleDaily(cfg.UpdateTime, func() {
		runner.RunScheduled(context.Background())
	}); err != nil {
		slog.Error("failed to schedule daily report", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()
	slog.Info("daily report scheduled", "time", cfg.UpdateTime, "timezone", cfg.Timezone)

	// Poll for commands until shutdown
	slog.Info("starting bot polling")
	poll(ctx, tg, handler)
	slog.Info("bot stopped")
}

func poll(ctx context.Context, tg *bot.Client, handler *bot.Handler) {
	var offset int64
	const timeout = 30

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := tg.GetUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("failed to get updates", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Message != nil {
				handler.HandleMessage(ctx, update.Message)
			}
		}
	}
}
