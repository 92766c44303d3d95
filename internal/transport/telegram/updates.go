package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ashureev/chatshop/internal/action"
	"github.com/ashureev/chatshop/internal/bot"
	"github.com/ashureev/chatshop/internal/render"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// CallbackAnswerer answers callback queries.
type CallbackAnswerer interface {
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
}

func toUser(u models.User) bot.User {
	return bot.User{ID: strconv.FormatInt(u.ID, 10), Username: u.Username, FirstName: u.FirstName}
}

func messageRef(m *models.Message) render.Message {
	if m == nil {
		return render.Message{}
	}
	kind := render.KindText
	if len(m.Photo) > 0 {
		kind = render.KindPhoto
	}
	return render.Message{Chat: ChatRef(m.Chat.ID), ID: strconv.Itoa(m.ID), Kind: kind}
}

// splitCommand parses "/cmd@bot args" into "cmd" and "args".
func splitCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, args, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	cmd, _, _ = strings.Cut(head, "@")
	if cmd == "" {
		return "", "", false
	}
	return strings.ToLower(cmd), strings.TrimSpace(args), true
}

// ToEvent converts an update. Updates the shop does not handle (edited
// messages, stickers, messages without a sender) yield ok == false.
func ToEvent(u *models.Update, answerer CallbackAnswerer) (bot.Event, bool) {
	if u == nil {
		return bot.Event{}, false
	}
	if cq := u.CallbackQuery; cq != nil {
		a, err := action.Parse(cq.Data)
		if err != nil {
			slog.Debug("Unparseable callback data", "data", cq.Data, "error", err)
			a = action.Action{}
		}
		ev := bot.Event{
			Kind:   bot.EventCallback,
			User:   toUser(cq.From),
			Action: a,
			Chat:   ChatRef(cq.From.ID),
		}
		switch {
		case cq.Message.Message != nil:
			ev.Message = messageRef(cq.Message.Message)
			ev.Chat = ev.Message.Chat
		case cq.Message.InaccessibleMessage != nil:
			// Too old to edit; the router will send a fresh message.
			ev.Chat = ChatRef(cq.Message.InaccessibleMessage.Chat.ID)
		}
		id := cq.ID
		ev.Ack = func(ctx context.Context, text string, alert bool) error {
			_, err := answerer.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
				CallbackQueryID: id,
				Text:            text,
				ShowAlert:       alert,
			})
			return err
		}
		return ev, true
	}

	m := u.Message
	if m == nil || m.From == nil {
		return bot.Event{}, false
	}
	ev := bot.Event{User: toUser(*m.From), Chat: ChatRef(m.Chat.ID)}
	switch {
	case m.WebAppData != nil:
		ev.Kind = bot.EventSubmission
		ev.Payload = []byte(m.WebAppData.Data)
	case m.Text != "":
		if cmd, args, ok := splitCommand(m.Text); ok {
			ev.Kind = bot.EventCommand
			ev.Command = cmd
			ev.Text = args
		} else {
			ev.Kind = bot.EventText
			ev.Text = m.Text
		}
	default:
		return bot.Event{}, false
	}
	return ev, true
}
