package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"weather-telegram-bot/report"
	"weather-telegram-bot/storage"
)

// Reply texts. Subscription acknowledgments match the original bot's
// wording; the help text is German like the rest of the user-facing output.
const (
	subscribedText    = "You have subscribed to weather updates."
	alreadySubText    = "You are already subscribed."
	unsubscribedText  = "You have unsubscribed from weather updates."
	notSubscribedText = "You are not currently subscribed."
	saveFailedText    = "Could not update your subscription. Please try again later."
	fetchFailedText   = "Unable to fetch weather data at the moment."
)

// MessageSender sends plain text replies.
type MessageSender interface {
	SendText(ctx context.Context, chatID int64, threadID *int, text string) error
}

// SubscriptionStore mutates the persisted subscriber set.
type SubscriptionStore interface {
	Add(chatID int64, threadID *int) (bool, error)
	Remove(chatID int64, threadID *int) (bool, error)
}

// ReportRunner produces and delivers weather reports on demand.
type ReportRunner interface {
	Run(ctx context.Context) (*report.Report, error)
	DeliverTo(ctx context.Context, sub storage.Subscriber, rep *report.Report) error
}

// Handler dispatches the four bot commands. Each inbound message is handled
// independently; there is no per-chat state.
type Handler struct {
	sender     MessageSender
	store      SubscriptionStore
	runner     ReportRunner
	ownerID    int64
	updateTime string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithOwnerID sets the identity allowed to use /get_weather.
func WithOwnerID(id int64) HandlerOption {
	return func(h *Handler) {
		h.ownerID = id
	}
}

// WithUpdateTime sets the daily delivery time shown in the help text.
func WithUpdateTime(t string) HandlerOption {
	return func(h *Handler) {
		h.updateTime = t
	}
}

// NewHandler creates a command handler.
func NewHandler(sender MessageSender, store SubscriptionStore, runner ReportRunner, opts ...HandlerOption) *Handler {
	h := &Handler{
		sender:     sender,
		store:      store,
		runner:     runner,
		updateTime: "13:12",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleMessage matches the message text against the four fixed commands
// and dispatches. Unrecognized messages are ignored.
func (h *Handler) HandleMessage(ctx context.Context, msg *Message) {
	cmd := commandOf(msg.Text)
	if cmd == "" {
		return
	}

	slog.Info("received command", "chat_id", msg.Chat.ID, "command", cmd)

	switch cmd {
	case "/subscribe":
		h.handleSubscribe(ctx, msg)
	case "/unsubscribe":
		h.handleUnsubscribe(ctx, msg)
	case "/get_weather":
		h.handleGetWeather(ctx, msg)
	case "/start":
		h.handleStart(ctx, msg)
	}
}

// commandOf extracts the command keyword from the first word of a message,
// tolerating an @botname suffix.
func commandOf(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	switch cmd {
	case "/subscribe", "/unsubscribe", "/get_weather", "/start":
		return cmd
	}
	return ""
}

func (h *Handler) handleSubscribe(ctx context.Context, msg *Message) {
	added, err := h.store.Add(msg.Chat.ID, msg.MessageThreadID)
	if err != nil {
		slog.Error("failed to persist subscription", "chat_id", msg.Chat.ID, "error", err)
		h.reply(ctx, msg, saveFailedText)
		return
	}
	if added {
		h.reply(ctx, msg, subscribedText)
	} else {
		h.reply(ctx, msg, alreadySubText)
	}
}

func (h *Handler) handleUnsubscribe(ctx context.Context, msg *Message) {
	removed, err := h.store.Remove(msg.Chat.ID, msg.MessageThreadID)
	if err != nil {
		slog.Error("failed to persist unsubscription", "chat_id", msg.Chat.ID, "error", err)
		h.reply(ctx, msg, saveFailedText)
		return
	}
	if removed {
		h.reply(ctx, msg, unsubscribedText)
	} else {
		h.reply(ctx, msg, notSubscribedText)
	}
}

// handleGetWeather runs the full pipeline on demand. Non-owner senders get
// no response of any kind.
func (h *Handler) handleGetWeather(ctx context.Context, msg *Message) {
	if msg.From == nil || msg.From.ID != h.ownerID {
		return
	}

	rep, err := h.runner.Run(ctx)
	if err != nil {
		slog.Error("on-demand run failed", "chat_id", msg.Chat.ID, "error", err)
		h.reply(ctx, msg, fetchFailedText)
		return
	}

	sub := storage.Subscriber{ChatID: msg.Chat.ID, MessageThreadID: msg.MessageThreadID}
	if err := h.runner.DeliverTo(ctx, sub, rep); err != nil {
		slog.Warn("on-demand delivery failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *Message) {
	text := "Willkommen zum Wetter-Bot!\n\n" +
		"Hier sind einige Befehle, die du verwenden kannst:\n\n" +
		"/subscribe - Abonniere Wetteraktualisierungen für diesen Chat.\n" +
		"/unsubscribe - Deabonniere Wetteraktualisierungen für diesen Chat.\n" +
		"/get_weather - Erhalte aktuelle Wetterinformationen auf Anfrage (nur für den Bot-Besitzer).\n\n" +
		fmt.Sprintf("Du wirst automatisch jeden Tag um %s Uhr Wetteraktualisierungen erhalten, wenn du abonniert bist.", h.updateTime)

	h.reply(ctx, msg, text)
}

func (h *Handler) reply(ctx context.Context, msg *Message, text string) {
	if err := h.sender.SendText(ctx, msg.Chat.ID, msg.MessageThreadID, text); err != nil {
		slog.Warn("failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}
