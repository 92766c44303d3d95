// Package render turns views into chat messages and keeps the last displayed
// message of each chat in step with them.
package render

import (
	"strings"

	"github.com/ashureev/chatshop/internal/action"
)

// Kind is the type of a displayed message. Text messages cannot be edited into
// photos and vice versa.
type Kind int

const (
	KindText Kind = iota
	KindPhoto
)

func (k Kind) String() string {
	if k == KindPhoto {
		return "photo"
	}
	return "text"
}

// Button is an inline action button.
type Button struct {
	Label  string
	Action action.Action
}

// AppButton launches the embedded shop.
type AppButton struct {
	Label string
	URL   string
}

// View is a transport-neutral screen: body text, optional image and rows of
// action buttons.
type View struct {
	Body      string
	Media     string
	Actions   [][]Button
	AppButton *AppButton
}

// Kind returns the message kind the view renders as.
func (v View) Kind() Kind {
	if strings.TrimSpace(v.Media) != "" {
		return KindPhoto
	}
	return KindText
}

// WithoutMedia returns a copy of the view rendered as plain text.
func (v View) WithoutMedia() View {
	v.Media = ""
	return v
}

// Row is shorthand for a single row of buttons.
func Row(buttons ...Button) []Button {
	return buttons
}

// Message references a message shown in a chat.
type Message struct {
	Chat string
	ID   string
	Kind Kind
}

// IsZero reports whether m references nothing.
func (m Message) IsZero() bool {
	return m.Chat == "" || m.ID == ""
}
