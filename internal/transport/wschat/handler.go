package wschat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/ashureev/chatshop/internal/action"
	"github.com/ashureev/chatshop/internal/bot"
	"github.com/ashureev/chatshop/internal/identity"
	"github.com/ashureev/chatshop/internal/render"
	"github.com/coder/websocket"
)

const maxFrameSize = 64 << 10

// Dispatcher accepts converted events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev bot.Event) error
}

// Handler upgrades identified requests to chat sessions. It must be mounted
// behind identity.Middleware.
type Handler struct {
	hub            *Hub
	dispatch       Dispatcher
	allowedOrigins []string
	isDev          bool
}

// NewHandler creates a chat WebSocket handler. A "*" entry in allowedOrigins
// accepts any origin.
func NewHandler(hub *Hub, d Dispatcher, allowedOrigins []string, isDev bool) *Handler {
	return &Handler{hub: hub, dispatch: d, allowedOrigins: allowedOrigins, isDev: isDev}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error":"missing identity"}`, http.StatusUnauthorized)
		return
	}
	sessionID := identity.SessionIDFromContext(r.Context())
	chat := ChatRef(userID, sessionID)
	slog.Info("Chat connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(maxFrameSize)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.hub.Register(chat, ws)
	defer h.hub.Unregister(chat, ws)

	user := bot.User{ID: userID, FirstName: identity.UsernameFromContext(r.Context())}
	h.readLoop(r.Context(), ws, chat, user)
	slog.Info("Chat session ended", "user_id", userID, "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, chat string, user bot.User) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", user.ID)
			} else {
				slog.Debug("WebSocket read ended", "error", err, "user_id", user.ID)
			}
			return
		}

		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			h.reply(ctx, ws, serverFrame{Type: frameError, Error: "invalid_frame"})
			continue
		}
		if f.Type == framePing {
			h.reply(ctx, ws, serverFrame{Type: framePong})
			continue
		}

		ev, ok := h.toEvent(ws, chat, user, f)
		if !ok {
			h.reply(ctx, ws, serverFrame{Type: frameError, Error: "unsupported_frame"})
			continue
		}
		if err := h.dispatch.Dispatch(ctx, ev); err != nil {
			slog.Warn("Dropping chat frame", "user_id", user.ID, "type", f.Type, "error", err)
		}
	}
}

func (h *Handler) toEvent(ws *websocket.Conn, chat string, user bot.User, f clientFrame) (bot.Event, bool) {
	ev := bot.Event{User: user, Chat: chat}
	switch f.Type {
	case frameCommand:
		cmd := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f.Command), "/"))
		if cmd == "" {
			return bot.Event{}, false
		}
		ev.Kind = bot.EventCommand
		ev.Command = cmd
	case frameText:
		ev.Kind = bot.EventText
		ev.Text = f.Text
	case frameSubmit:
		if len(f.Payload) == 0 {
			return bot.Event{}, false
		}
		ev.Kind = bot.EventSubmission
		ev.Payload = []byte(f.Payload)
	case frameAction:
		a, err := action.Parse(f.Token)
		if err != nil {
			slog.Debug("Unparseable chat action", "token", f.Token, "error", err)
			a = action.Action{}
		}
		ev.Kind = bot.EventCallback
		ev.Action = a
		if kind, ok := h.hub.kindOf(chat, f.MessageID); ok {
			ev.Message = render.Message{Chat: chat, ID: f.MessageID, Kind: kind}
		}
		ev.Ack = func(ctx context.Context, text string, alert bool) error {
			return writeFrame(ctx, ws, serverFrame{Type: frameAck, Text: text, Alert: alert})
		}
	default:
		return bot.Event{}, false
	}
	return ev, true
}

func (h *Handler) reply(ctx context.Context, ws *websocket.Conn, f serverFrame) {
	if err := writeFrame(ctx, ws, f); err != nil {
		slog.Debug("Failed to write chat frame", "type", f.Type, "error", err)
	}
}
