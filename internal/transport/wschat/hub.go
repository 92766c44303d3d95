package wschat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/chatshop/internal/render"
	"github.com/coder/websocket"
)

// Channel is the chat ref prefix of web chats.
const Channel = "ws"

const writeTimeout = 5 * time.Second

var (
	// ErrNotConnected is returned when a chat has no open connection.
	ErrNotConnected = errors.New("chat not connected")
	// ErrUnknownMessage is returned when editing or deleting a message the
	// chat does not show.
	ErrUnknownMessage = errors.New("unknown message")
)

// ChatRef returns the chat ref for one tab of a device.
func ChatRef(userID, sessionID string) string {
	return render.ChatRef(Channel, userID+"."+sessionID)
}

type chatConn struct {
	conn     *websocket.Conn
	messages map[string]render.Kind
}

// Hub tracks open chat connections and implements render.Transport over them.
type Hub struct {
	mu     sync.Mutex
	chats  map[string]*chatConn
	nextID atomic.Int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{chats: make(map[string]*chatConn)}
}

// Register attaches conn to chat, closing any connection it replaces.
func (h *Hub) Register(chat string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.chats[chat]; ok && existing.conn != conn {
		_ = existing.conn.Close(websocket.StatusNormalClosure, "session replaced")
	}
	h.chats[chat] = &chatConn{conn: conn, messages: make(map[string]render.Kind)}
	slog.Info("Chat session registered", "chat", chat)
}

// Unregister detaches conn from chat if it is still the registered one.
func (h *Hub) Unregister(chat string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.chats[chat]; ok && current.conn == conn {
		delete(h.chats, chat)
		slog.Info("Chat session unregistered", "chat", chat)
	}
}

// Len returns the number of connected chats.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.chats)
}

func (h *Hub) lookup(chat string) (*websocket.Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.chats[chat]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, chat)
	}
	return c.conn, nil
}

func (h *Hub) hasMessage(msg render.Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.chats[msg.Chat]
	if !ok {
		return false
	}
	kind, ok := c.messages[msg.ID]
	return ok && kind == msg.Kind
}

func (h *Hub) track(chat, id string, kind render.Kind, live bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.chats[chat]
	if !ok {
		return
	}
	if live {
		c.messages[id] = kind
	} else {
		delete(c.messages, id)
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f serverFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

func (h *Hub) send(ctx context.Context, chat string, kind render.Kind, v render.View) (render.Message, error) {
	conn, err := h.lookup(chat)
	if err != nil {
		return render.Message{}, err
	}
	id := strconv.FormatInt(h.nextID.Add(1), 10)
	if err := writeFrame(ctx, conn, serverFrame{Type: frameMessage, Message: toMessageFrame(id, kind, v)}); err != nil {
		return render.Message{}, err
	}
	h.track(chat, id, kind, true)
	return render.Message{Chat: chat, ID: id, Kind: kind}, nil
}

// SendText implements render.Transport.
func (h *Hub) SendText(ctx context.Context, chat string, v render.View) (render.Message, error) {
	return h.send(ctx, chat, render.KindText, v.WithoutMedia())
}

// SendPhoto implements render.Transport.
func (h *Hub) SendPhoto(ctx context.Context, chat string, v render.View) (render.Message, error) {
	return h.send(ctx, chat, render.KindPhoto, v)
}

// Edit implements render.Transport.
func (h *Hub) Edit(ctx context.Context, msg render.Message, v render.View) error {
	if !h.hasMessage(msg) {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, msg.ID)
	}
	conn, err := h.lookup(msg.Chat)
	if err != nil {
		return err
	}
	if msg.Kind == render.KindText {
		v = v.WithoutMedia()
	}
	return writeFrame(ctx, conn, serverFrame{Type: frameEdit, Message: toMessageFrame(msg.ID, msg.Kind, v)})
}

// Delete implements render.Transport.
func (h *Hub) Delete(ctx context.Context, msg render.Message) error {
	if !h.hasMessage(msg) {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, msg.ID)
	}
	conn, err := h.lookup(msg.Chat)
	if err != nil {
		return err
	}
	if err := writeFrame(ctx, conn, serverFrame{Type: frameDelete, ID: msg.ID}); err != nil {
		return err
	}
	h.track(msg.Chat, msg.ID, msg.Kind, false)
	return nil
}

// kindOf returns the kind of a message the chat currently shows.
func (h *Hub) kindOf(chat, id string) (render.Kind, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.chats[chat]
	if !ok {
		return render.KindText, false
	}
	kind, ok := c.messages[id]
	return kind, ok
}
