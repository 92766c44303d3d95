package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/chatshop/internal/action"
	"github.com/ashureev/chatshop/internal/bot"
	"github.com/ashureev/chatshop/internal/render"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123:secret-token"

// fakeAPI records calls made through the API and CallbackAnswerer interfaces.
type fakeAPI struct {
	mu      sync.Mutex
	nextID  int
	sent    []*tgbot.SendMessageParams
	photos  []*tgbot.SendPhotoParams
	texts   []*tgbot.EditMessageTextParams
	medias  []*tgbot.EditMessageMediaParams
	deletes []*tgbot.DeleteMessageParams
	answers []*tgbot.AnswerCallbackQueryParams
	editErr error
	sendErr error
}

func (f *fakeAPI) message() *models.Message {
	f.nextID++
	return &models.Message{ID: f.nextID}
}

func (f *fakeAPI) SendMessage(_ context.Context, p *tgbot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, p)
	return f.message(), nil
}

func (f *fakeAPI) SendPhoto(_ context.Context, p *tgbot.SendPhotoParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, p)
	return f.message(), nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, p *tgbot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, p)
	return &models.Message{ID: p.MessageID}, f.editErr
}

func (f *fakeAPI) EditMessageMedia(_ context.Context, p *tgbot.EditMessageMediaParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.medias = append(f.medias, p)
	return &models.Message{ID: p.MessageID}, f.editErr
}

func (f *fakeAPI) DeleteMessage(_ context.Context, p *tgbot.DeleteMessageParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, p)
	return true, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, p *tgbot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, p)
	return true, nil
}

func TestTransportSendTextWithActions(t *testing.T) {
	api := &fakeAPI{}
	tr := NewTransport(api, testToken)

	v := render.View{Body: "Catalogue", Actions: [][]render.Button{{{Label: "Tee", Action: action.ViewProduct("7")}}}}
	msg, err := tr.SendText(context.Background(), "tg:42", v)
	require.NoError(t, err)
	assert.Equal(t, render.Message{Chat: "tg:42", ID: "1", Kind: render.KindText}, msg)

	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(42), api.sent[0].ChatID)
	assert.Equal(t, "Catalogue", api.sent[0].Text)
	kb, ok := api.sent[0].ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "prod:7", kb.InlineKeyboard[0][0].CallbackData)
}

func TestTransportTextWithoutActionsHasNoMarkup(t *testing.T) {
	api := &fakeAPI{}
	_, err := NewTransport(api, testToken).SendText(context.Background(), "tg:42", render.View{Body: "Merci"})
	require.NoError(t, err)
	assert.Nil(t, api.sent[0].ReplyMarkup)
}

func TestTransportAppButtonUsesReplyKeyboard(t *testing.T) {
	api := &fakeAPI{}
	tr := NewTransport(api, testToken)

	v := render.View{Body: "Bienvenue", AppButton: &render.AppButton{Label: "Ouvrir", URL: "https://shop.example"}}
	_, err := tr.SendText(context.Background(), "tg:42", v)
	require.NoError(t, err)

	kb, ok := api.sent[0].ReplyMarkup.(*models.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, kb.Keyboard[0][0].WebApp)
	assert.Equal(t, "https://shop.example", kb.Keyboard[0][0].WebApp.URL)
}

func TestTransportSendPhoto(t *testing.T) {
	api := &fakeAPI{}
	msg, err := NewTransport(api, testToken).SendPhoto(context.Background(), "tg:42",
		render.View{Body: "Tee", Media: "https://img.example/tee.jpg"})
	require.NoError(t, err)
	assert.Equal(t, render.KindPhoto, msg.Kind)

	photo, ok := api.photos[0].Photo.(*models.InputFileString)
	require.True(t, ok)
	assert.Equal(t, "https://img.example/tee.jpg", photo.Data)
	assert.Equal(t, "Tee", api.photos[0].Caption)
}

func TestTransportEditPhotoReplacesMedia(t *testing.T) {
	api := &fakeAPI{}
	tr := NewTransport(api, testToken)

	err := tr.Edit(context.Background(), render.Message{Chat: "tg:42", ID: "9", Kind: render.KindPhoto},
		render.View{Body: "Tee", Media: "https://img.example/tee.jpg"})
	require.NoError(t, err)

	require.Len(t, api.medias, 1)
	assert.Empty(t, api.texts)
	assert.Equal(t, 9, api.medias[0].MessageID)
	media, ok := api.medias[0].Media.(*models.InputMediaPhoto)
	require.True(t, ok)
	assert.Equal(t, "Tee", media.Caption)
	assert.Equal(t, "https://img.example/tee.jpg", media.Media)
}

func TestTransportEditNotModifiedIsSuccess(t *testing.T) {
	api := &fakeAPI{editErr: errors.New("bad request, Bad Request: message is not modified")}
	tr := NewTransport(api, testToken)

	err := tr.Edit(context.Background(), render.Message{Chat: "tg:42", ID: "3", Kind: render.KindText}, render.View{Body: "same"})
	assert.NoError(t, err)

	api.editErr = errors.New("bad request, Bad Request: message to edit not found")
	err = tr.Edit(context.Background(), render.Message{Chat: "tg:42", ID: "3", Kind: render.KindText}, render.View{Body: "x"})
	assert.Error(t, err)
}

func TestTransportErrorsDoNotLeakToken(t *testing.T) {
	cause := errors.New(`Post "https://api.telegram.org/bot` + testToken + `/sendMessage": dial tcp: refused`)
	api := &fakeAPI{sendErr: cause}

	_, err := NewTransport(api, testToken).SendText(context.Background(), "tg:1", render.View{Body: "x"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
	assert.ErrorIs(t, err, cause)
}

func TestTransportRejectsForeignChatRef(t *testing.T) {
	tr := NewTransport(&fakeAPI{}, testToken)
	_, err := tr.SendText(context.Background(), "ws:anon_1.tab", render.View{Body: "x"})
	assert.ErrorIs(t, err, errNotTelegram)

	err = tr.Delete(context.Background(), render.Message{Chat: "tg:1", ID: "abc"})
	assert.Error(t, err)
}

func TestToEventCallback(t *testing.T) {
	api := &fakeAPI{}
	u := &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb1",
		From: models.User{ID: 42, Username: "ada"},
		Data: "choose:7:M",
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{ID: 10, Chat: models.Chat{ID: 42}, Photo: []models.PhotoSize{{FileID: "f"}}},
		},
	}}

	ev, ok := ToEvent(u, api)
	require.True(t, ok)
	assert.Equal(t, bot.EventCallback, ev.Kind)
	assert.Equal(t, action.ChooseVariant("7", "M"), ev.Action)
	assert.Equal(t, "tg:42", ev.Chat)
	assert.Equal(t, render.Message{Chat: "tg:42", ID: "10", Kind: render.KindPhoto}, ev.Message)
	assert.Equal(t, "42", ev.User.ID)

	require.NoError(t, ev.Ack(context.Background(), "Taille invalide", true))
	require.Len(t, api.answers, 1)
	assert.Equal(t, "cb1", api.answers[0].CallbackQueryID)
	assert.True(t, api.answers[0].ShowAlert)
}

func TestToEventCallbackOnInaccessibleMessage(t *testing.T) {
	u := &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb2",
		From: models.User{ID: 5},
		Data: "cart",
		Message: models.MaybeInaccessibleMessage{
			InaccessibleMessage: &models.InaccessibleMessage{Chat: models.Chat{ID: -100}, MessageID: 3},
		},
	}}

	ev, ok := ToEvent(u, &fakeAPI{})
	require.True(t, ok)
	assert.Equal(t, "tg:-100", ev.Chat)
	assert.True(t, ev.Message.IsZero())
}

func TestToEventUnknownCallbackData(t *testing.T) {
	u := &models.Update{CallbackQuery: &models.CallbackQuery{ID: "x", From: models.User{ID: 1}, Data: "rm_legacy"}}
	ev, ok := ToEvent(u, &fakeAPI{})
	require.True(t, ok)
	assert.Equal(t, action.KindNone, ev.Action.Kind)
	assert.Equal(t, "tg:1", ev.Chat)
}

func TestToEventMessages(t *testing.T) {
	api := &fakeAPI{}
	from := &models.User{ID: 7, Username: "bob"}
	msg := func(m models.Message) *models.Update {
		m.From = from
		m.Chat = models.Chat{ID: 7}
		return &models.Update{Message: &m}
	}

	ev, ok := ToEvent(msg(models.Message{Text: "/Start@ShopBot now"}), api)
	require.True(t, ok)
	assert.Equal(t, bot.EventCommand, ev.Kind)
	assert.Equal(t, "start", ev.Command)
	assert.Equal(t, "now", ev.Text)

	ev, ok = ToEvent(msg(models.Message{Text: "Ada Lovelace"}), api)
	require.True(t, ok)
	assert.Equal(t, bot.EventText, ev.Kind)

	ev, ok = ToEvent(msg(models.Message{WebAppData: &models.WebAppData{Data: `{"kind":"order"}`}}), api)
	require.True(t, ok)
	assert.Equal(t, bot.EventSubmission, ev.Kind)
	assert.JSONEq(t, `{"kind":"order"}`, string(ev.Payload))

	_, ok = ToEvent(msg(models.Message{Photo: []models.PhotoSize{{FileID: "f"}}}), api)
	assert.False(t, ok)

	_, ok = ToEvent(&models.Update{Message: &models.Message{Chat: models.Chat{ID: 7}, Text: "hi"}}, api)
	assert.False(t, ok, "messages without a sender are dropped")
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []bot.Event
	got    chan bot.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{got: make(chan bot.Event, 8)}
}

func (r *recordingDispatcher) Dispatch(_ context.Context, ev bot.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.got <- ev
	return nil
}

func (r *recordingDispatcher) next(t *testing.T) bot.Event {
	t.Helper()
	select {
	case ev := <-r.got:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no update dispatched")
		return bot.Event{}
	}
}

// fakeServer answers Bot API methods by name; getUpdates replays updates once.
type fakeServer struct {
	mu      sync.Mutex
	methods []string
	updates []models.Update
}

func (f *fakeServer) called(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.methods {
		if m == method {
			return true
		}
	}
	return false
}

func newFakeServer(t *testing.T, updates ...models.Update) (*fakeServer, string) {
	t.Helper()
	f := &fakeServer{updates: updates}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := path.Base(r.URL.Path)
		f.mu.Lock()
		f.methods = append(f.methods, method)
		var result any = true
		idle := false
		if method == "getUpdates" {
			result = f.updates
			if len(f.updates) == 0 {
				result = []models.Update{}
				idle = true
			}
			f.updates = nil
		}
		f.mu.Unlock()
		if idle {
			// Stand in for the long-poll wait.
			time.Sleep(20 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}))
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func TestPollDispatchesUpdates(t *testing.T) {
	update := models.Update{ID: 41, Message: &models.Message{ID: 1, From: &models.User{ID: 3}, Chat: models.Chat{ID: 3}, Text: "/cart"}}
	api, url := newFakeServer(t, update)

	b, err := New(Config{Token: testToken, APIURL: url, PollTimeout: time.Second, SkipGetMe: true}, nil)
	require.NoError(t, err)

	d := newRecordingDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Poll(ctx, d) }()

	ev := d.next(t)
	assert.Equal(t, bot.EventCommand, ev.Kind)
	assert.Equal(t, "cart", ev.Command)
	assert.Equal(t, "tg:3", ev.Chat)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	assert.True(t, api.called("deleteWebhook"), "webhook must be removed before polling")
}

func TestWebhookRequiresSecret(t *testing.T) {
	api, url := newFakeServer(t)
	b, err := New(Config{Token: testToken, APIURL: url, WebhookSecret: "s3cret", SkipGetMe: true}, nil)
	require.NoError(t, err)

	d := newRecordingDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.ServeWebhook(ctx, "https://bot.example/telegram/webhook/s3cret", d) }()
	require.Eventually(t, func() bool { return api.called("setWebhook") }, 5*time.Second, 10*time.Millisecond)

	post := func(secret, text string) {
		body := `{"update_id":5,"message":{"message_id":1,"date":0,"from":{"id":9,"is_bot":false,"first_name":"Ada"},"chat":{"id":9,"type":"private"},"text":"` + text + `"}}`
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook/s3cret", strings.NewReader(body))
		if secret != "" {
			req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
		}
		b.WebhookHandler().ServeHTTP(httptest.NewRecorder(), req)
	}

	post("wrong", "/cart")
	post("s3cret", "/shop")

	ev := d.next(t)
	assert.Equal(t, "shop", ev.Command)
	assert.Equal(t, "9", ev.User.ID)
}

func TestRedact(t *testing.T) {
	cause := errors.New("GET /bot" + testToken + "/getMe failed")
	err := redact(cause, testToken)
	assert.Equal(t, "GET /bot<token>/getMe failed", err.Error())
	assert.ErrorIs(t, err, cause)

	plain := errors.New("timeout")
	assert.Same(t, plain, redact(plain, testToken))
}
