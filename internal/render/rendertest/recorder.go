// Package rendertest provides an in-memory render.Transport for tests.
package rendertest

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/ashureev/chatshop/internal/render"
)

// ErrRejected is returned by operations the Recorder was told to fail.
var ErrRejected = errors.New("rejected by recorder")

// Shown is a message currently visible in a chat.
type Shown struct {
	Message render.Message
	View    render.View
}

// Recorder keeps the visible messages of every chat and counts operations.
type Recorder struct {
	mu      sync.Mutex
	next    int
	visible map[string][]Shown

	FailEdit   bool
	FailPhoto  bool
	FailDelete bool
	FailSend   bool

	Sends, Edits, Deletes int
}

// New creates an empty Recorder.
func New() *Recorder {
	return &Recorder{visible: make(map[string][]Shown)}
}

func (r *Recorder) send(chat string, v render.View, kind render.Kind) render.Message {
	r.next++
	msg := render.Message{Chat: chat, ID: strconv.Itoa(r.next), Kind: kind}
	r.visible[chat] = append(r.visible[chat], Shown{Message: msg, View: v})
	r.Sends++
	return msg
}

// SendText implements render.Transport.
func (r *Recorder) SendText(_ context.Context, chat string, v render.View) (render.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSend {
		return render.Message{}, ErrRejected
	}
	return r.send(chat, v, render.KindText), nil
}

// SendPhoto implements render.Transport.
func (r *Recorder) SendPhoto(_ context.Context, chat string, v render.View) (render.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSend || r.FailPhoto {
		return render.Message{}, ErrRejected
	}
	return r.send(chat, v, render.KindPhoto), nil
}

// Edit implements render.Transport.
func (r *Recorder) Edit(_ context.Context, msg render.Message, v render.View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailEdit {
		return ErrRejected
	}
	shown := r.visible[msg.Chat]
	for i := range shown {
		if shown[i].Message.ID == msg.ID {
			if shown[i].Message.Kind != v.Kind() {
				return ErrRejected
			}
			shown[i].View = v
			r.Edits++
			return nil
		}
	}
	return ErrRejected
}

// Delete implements render.Transport.
func (r *Recorder) Delete(_ context.Context, msg render.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDelete {
		return ErrRejected
	}
	shown := r.visible[msg.Chat]
	for i := range shown {
		if shown[i].Message.ID == msg.ID {
			r.visible[msg.Chat] = append(shown[:i:i], shown[i+1:]...)
			r.Deletes++
			return nil
		}
	}
	return ErrRejected
}

// Visible returns the messages currently shown in chat, oldest first.
func (r *Recorder) Visible(chat string) []Shown {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Shown, len(r.visible[chat]))
	copy(out, r.visible[chat])
	return out
}

// Last returns the newest visible message in chat.
func (r *Recorder) Last(chat string) (Shown, bool) {
	shown := r.Visible(chat)
	if len(shown) == 0 {
		return Shown{}, false
	}
	return shown[len(shown)-1], true
}
