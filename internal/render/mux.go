package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownChannel is returned for chat refs with no registered transport.
var ErrUnknownChannel = errors.New("no transport for chat channel")

// ChatRef builds a chat reference of the form "<channel>:<id>".
func ChatRef(channel, id string) string {
	return channel + ":" + id
}

// SplitChatRef returns the channel and channel-local id of a chat ref.
func SplitChatRef(ref string) (channel, id string, ok bool) {
	return strings.Cut(ref, ":")
}

// Mux routes transport calls by the channel prefix of the chat ref.
type Mux struct {
	routes map[string]Transport
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{routes: make(map[string]Transport)}
}

// Handle registers t for chat refs starting with channel + ":".
func (m *Mux) Handle(channel string, t Transport) {
	m.routes[channel] = t
}

func (m *Mux) route(chat string) (Transport, error) {
	channel, _, ok := SplitChatRef(chat)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, chat)
	}
	t, ok := m.routes[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	return t, nil
}

// SendText implements Transport.
func (m *Mux) SendText(ctx context.Context, chat string, v View) (Message, error) {
	t, err := m.route(chat)
	if err != nil {
		return Message{}, err
	}
	return t.SendText(ctx, chat, v)
}

// SendPhoto implements Transport.
func (m *Mux) SendPhoto(ctx context.Context, chat string, v View) (Message, error) {
	t, err := m.route(chat)
	if err != nil {
		return Message{}, err
	}
	return t.SendPhoto(ctx, chat, v)
}

// Edit implements Transport.
func (m *Mux) Edit(ctx context.Context, msg Message, v View) error {
	t, err := m.route(msg.Chat)
	if err != nil {
		return err
	}
	return t.Edit(ctx, msg, v)
}

// Delete implements Transport.
func (m *Mux) Delete(ctx context.Context, msg Message) error {
	t, err := m.route(msg.Chat)
	if err != nil {
		return err
	}
	return t.Delete(ctx, msg)
}
