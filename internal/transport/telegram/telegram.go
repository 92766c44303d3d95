// Package telegram connects the shop to the Telegram Bot API: updates become
// bot events and views become messages.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/chatshop/internal/bot"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const defaultPollTimeout = 30 * time.Second

// Dispatcher accepts converted events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev bot.Event) error
}

// Config configures New.
type Config struct {
	Token string
	// APIURL overrides the Bot API server, e.g. a local bot-api instance.
	APIURL string
	// WebhookSecret is sent by Telegram in X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret string
	PollTimeout   time.Duration
	// SkipGetMe skips the token check New performs against the API.
	SkipGetMe bool
}

// Bot owns the Bot API client and feeds received updates to a Dispatcher.
type Bot struct {
	api      *tgbot.Bot
	token    string
	secret   string
	dispatch Dispatcher
	logger   *slog.Logger
}

// New creates the client. Unless cfg.SkipGetMe is set the token is verified
// with getMe.
func New(cfg Config, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}

	b := &Bot{token: cfg.Token, secret: cfg.WebhookSecret, logger: logger}
	opts := []tgbot.Option{
		tgbot.WithDefaultHandler(b.onUpdate),
		// Updates must reach the dispatcher in the order Telegram sent them.
		tgbot.WithNotAsyncHandlers(),
		tgbot.WithErrorsHandler(func(err error) {
			logger.Warn("Telegram API error", "error", redact(err, cfg.Token))
		}),
		tgbot.WithHTTPClient(pollTimeout, &http.Client{Timeout: pollTimeout + 10*time.Second}),
	}
	if cfg.APIURL != "" {
		opts = append(opts, tgbot.WithServerURL(strings.TrimRight(cfg.APIURL, "/")))
	}
	if cfg.WebhookSecret != "" {
		opts = append(opts, tgbot.WithWebhookSecretToken(cfg.WebhookSecret))
	}
	if cfg.SkipGetMe {
		opts = append(opts, tgbot.WithSkipGetMe())
	}

	api, err := tgbot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", redact(err, cfg.Token))
	}
	b.api = api
	return b, nil
}

// Transport returns the render transport sending through this bot.
func (b *Bot) Transport() *Transport {
	return NewTransport(b.api, b.token)
}

// Username returns the bot's @username.
func (b *Bot) Username(ctx context.Context) (string, error) {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("getMe: %w", redact(err, b.token))
	}
	return me.Username, nil
}

func (b *Bot) onUpdate(ctx context.Context, api *tgbot.Bot, upd *models.Update) {
	ev, ok := ToEvent(upd, api)
	if !ok {
		return
	}
	if b.dispatch == nil {
		b.logger.Warn("Dropping update received before start", "user_id", ev.User.ID)
		return
	}
	if err := b.dispatch.Dispatch(ctx, ev); err != nil {
		b.logger.Warn("Dropping update", "user_id", ev.User.ID, "kind", ev.Kind.String(), "error", err)
	}
}

// Poll receives updates by long polling until ctx is done. Any registered
// webhook is removed first, since Telegram refuses getUpdates while one is set.
func (b *Bot) Poll(ctx context.Context, d Dispatcher) error {
	b.dispatch = d
	if _, err := b.api.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		b.logger.Warn("Failed to delete webhook before polling", "error", redact(err, b.token))
	}
	b.logger.Info("Telegram polling started")
	b.api.Start(ctx)
	b.logger.Info("Telegram polling stopped")
	return nil
}

// ServeWebhook registers hookURL with Telegram and processes pushed updates
// until ctx is done. WebhookHandler must be mounted at hookURL's path.
func (b *Bot) ServeWebhook(ctx context.Context, hookURL string, d Dispatcher) error {
	b.dispatch = d
	if _, err := b.api.SetWebhook(ctx, &tgbot.SetWebhookParams{URL: hookURL, SecretToken: b.secret}); err != nil {
		return fmt.Errorf("set webhook: %w", redact(err, b.token))
	}
	b.logger.Info("Telegram webhook registered")
	b.api.StartWebhook(ctx)
	return nil
}

// WebhookHandler accepts updates pushed by Telegram. Requests without the
// configured secret token are dropped.
func (b *Bot) WebhookHandler() http.HandlerFunc {
	return b.api.WebhookHandler()
}

// redactedError hides the bot token, which the client embeds in request URLs,
// from error text while keeping the error chain.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), err: err}
}

// IsNotModified reports whether err is Telegram refusing an edit that would
// leave the message unchanged.
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

var errNotTelegram = errors.New("not a telegram chat ref")
