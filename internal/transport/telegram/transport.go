package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ashureev/chatshop/internal/render"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Channel is the chat ref prefix of Telegram chats.
const Channel = "tg"

// ChatRef returns the chat ref of a Telegram chat id.
func ChatRef(chatID int64) string {
	return render.ChatRef(Channel, strconv.FormatInt(chatID, 10))
}

func parseChatRef(ref string) (int64, error) {
	channel, id, ok := render.SplitChatRef(ref)
	if !ok || channel != Channel {
		return 0, fmt.Errorf("%w: %q", errNotTelegram, ref)
	}
	return strconv.ParseInt(id, 10, 64)
}

func parseMessage(msg render.Message) (chatID int64, messageID int, err error) {
	if chatID, err = parseChatRef(msg.Chat); err != nil {
		return 0, 0, err
	}
	if messageID, err = strconv.Atoi(msg.ID); err != nil {
		return 0, 0, fmt.Errorf("bad message id %q: %w", msg.ID, err)
	}
	return chatID, messageID, nil
}

// API is the part of the Bot API client the transport uses.
type API interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *tgbot.SendPhotoParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error)
	EditMessageMedia(ctx context.Context, params *tgbot.EditMessageMediaParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *tgbot.DeleteMessageParams) (bool, error)
}

// Transport renders views as Telegram messages.
type Transport struct {
	api   API
	token string
}

// NewTransport creates a render transport over api. token is only used to
// scrub it from returned errors.
func NewTransport(api API, token string) *Transport {
	return &Transport{api: api, token: token}
}

func inlineKeyboard(v render.View) models.ReplyMarkup {
	if len(v.Actions) == 0 {
		return nil
	}
	kb := &models.InlineKeyboardMarkup{InlineKeyboard: make([][]models.InlineKeyboardButton, 0, len(v.Actions))}
	for _, row := range v.Actions {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Label, CallbackData: b.Action.Token()})
		}
		kb.InlineKeyboard = append(kb.InlineKeyboard, buttons)
	}
	return kb
}

// replyMarkup picks the markup for a new message. Web App data can only be
// sent back from a keyboard button, so an app button takes precedence over
// inline actions.
func replyMarkup(v render.View) models.ReplyMarkup {
	if v.AppButton != nil {
		return &models.ReplyKeyboardMarkup{
			Keyboard: [][]models.KeyboardButton{{
				{Text: v.AppButton.Label, WebApp: &models.WebAppInfo{URL: v.AppButton.URL}},
			}},
			ResizeKeyboard: true,
		}
	}
	return inlineKeyboard(v)
}

func sentRef(chat string, m *models.Message, kind render.Kind) render.Message {
	return render.Message{Chat: chat, ID: strconv.Itoa(m.ID), Kind: kind}
}

// SendText implements render.Transport.
func (t *Transport) SendText(ctx context.Context, chat string, v render.View) (render.Message, error) {
	chatID, err := parseChatRef(chat)
	if err != nil {
		return render.Message{}, err
	}
	m, err := t.api.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        v.Body,
		ReplyMarkup: replyMarkup(v),
	})
	if err != nil {
		return render.Message{}, fmt.Errorf("sendMessage: %w", redact(err, t.token))
	}
	return sentRef(chat, m, render.KindText), nil
}

// SendPhoto implements render.Transport.
func (t *Transport) SendPhoto(ctx context.Context, chat string, v render.View) (render.Message, error) {
	chatID, err := parseChatRef(chat)
	if err != nil {
		return render.Message{}, err
	}
	m, err := t.api.SendPhoto(ctx, &tgbot.SendPhotoParams{
		ChatID:      chatID,
		Photo:       &models.InputFileString{Data: v.Media},
		Caption:     v.Body,
		ReplyMarkup: replyMarkup(v),
	})
	if err != nil {
		return render.Message{}, fmt.Errorf("sendPhoto: %w", redact(err, t.token))
	}
	return sentRef(chat, m, render.KindPhoto), nil
}

// Edit implements render.Transport. Photo messages get their media and
// caption replaced; text messages their text. An edit that changes nothing
// counts as success.
func (t *Transport) Edit(ctx context.Context, msg render.Message, v render.View) error {
	chatID, messageID, err := parseMessage(msg)
	if err != nil {
		return err
	}
	method := "editMessageText"
	if msg.Kind == render.KindPhoto {
		method = "editMessageMedia"
		_, err = t.api.EditMessageMedia(ctx, &tgbot.EditMessageMediaParams{
			ChatID:      chatID,
			MessageID:   messageID,
			Media:       &models.InputMediaPhoto{Media: v.Media, Caption: v.Body},
			ReplyMarkup: inlineKeyboard(v),
		})
	} else {
		_, err = t.api.EditMessageText(ctx, &tgbot.EditMessageTextParams{
			ChatID:      chatID,
			MessageID:   messageID,
			Text:        v.Body,
			ReplyMarkup: inlineKeyboard(v),
		})
	}
	if err != nil && !IsNotModified(err) {
		return fmt.Errorf("%s: %w", method, redact(err, t.token))
	}
	return nil
}

// Delete implements render.Transport.
func (t *Transport) Delete(ctx context.Context, msg render.Message) error {
	chatID, messageID, err := parseMessage(msg)
	if err != nil {
		return err
	}
	if _, err := t.api.DeleteMessage(ctx, &tgbot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		return fmt.Errorf("deleteMessage: %w", redact(err, t.token))
	}
	return nil
}
