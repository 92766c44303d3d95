package render

import (
	"context"
	"fmt"
	"log/slog"
)

// Transport performs the raw message operations for one chat channel.
type Transport interface {
	SendText(ctx context.Context, chat string, v View) (Message, error)
	SendPhoto(ctx context.Context, chat string, v View) (Message, error)
	// Edit rewrites msg in place. Only same-kind edits are attempted.
	Edit(ctx context.Context, msg Message, v View) error
	Delete(ctx context.Context, msg Message) error
}

// Presenter reconciles views against the previously displayed message.
type Presenter struct {
	transport Transport
	logger    *slog.Logger
}

// NewPresenter creates a presenter over transport.
func NewPresenter(t Transport, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{transport: t, logger: logger}
}

// Show displays v in chat and returns the message now showing it.
//
// With no previous message a new one is sent. A previous message of the same
// kind is edited in place; if the edit is rejected a new message replaces it.
// A previous message of another kind is deleted before the new one is sent.
// Deletes are best-effort.
func (p *Presenter) Show(ctx context.Context, chat string, prev *Message, v View) (Message, error) {
	if prev == nil || prev.IsZero() {
		return p.Send(ctx, chat, v)
	}

	if prev.Kind == v.Kind() {
		err := p.transport.Edit(ctx, *prev, v)
		if err == nil {
			return *prev, nil
		}
		p.logger.Debug("Edit rejected, sending replacement", "chat", chat, "message", prev.ID, "error", err)
		msg, err := p.Send(ctx, chat, v)
		if err != nil {
			return Message{}, err
		}
		p.discard(ctx, *prev)
		return msg, nil
	}

	p.discard(ctx, *prev)
	return p.Send(ctx, chat, v)
}

// Send always posts a new message. A failed photo send degrades to text.
func (p *Presenter) Send(ctx context.Context, chat string, v View) (Message, error) {
	if v.Kind() == KindPhoto {
		msg, err := p.transport.SendPhoto(ctx, chat, v)
		if err == nil {
			return msg, nil
		}
		p.logger.Warn("Photo send failed, falling back to text", "chat", chat, "media", v.Media, "error", err)
		v = v.WithoutMedia()
	}
	msg, err := p.transport.SendText(ctx, chat, v)
	if err != nil {
		return Message{}, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

func (p *Presenter) discard(ctx context.Context, msg Message) {
	if err := p.transport.Delete(ctx, msg); err != nil {
		p.logger.Debug("Stale message delete failed", "chat", msg.Chat, "message", msg.ID, "error", err)
	}
}
