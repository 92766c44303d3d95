// Package bot routes inbound chat events to the cart, the checkout dialogue
// and the presenter.
package bot

import (
	"context"

	"github.com/ashureev/chatshop/internal/action"
	"github.com/ashureev/chatshop/internal/domain"
	"github.com/ashureev/chatshop/internal/render"
)

// EventKind discriminates inbound events.
type EventKind int

const (
	// EventCommand is a slash command such as /start.
	EventCommand EventKind = iota + 1
	// EventCallback is a button press.
	EventCallback
	// EventText is a free-text message.
	EventText
	// EventSubmission is a structured payload from the embedded shop.
	EventSubmission
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventCallback:
		return "callback"
	case EventText:
		return "text"
	case EventSubmission:
		return "submission"
	default:
		return "unknown"
	}
}

// User is the chat user behind an event.
type User struct {
	ID        string
	Username  string
	FirstName string
}

// Customer returns the order identity of u.
func (u User) Customer() domain.Customer {
	return domain.Customer{UserID: u.ID, Username: u.Username}
}

// AckFunc answers a button press. text may be empty; alert asks the client to
// show it as a dialog rather than a toast.
type AckFunc func(ctx context.Context, text string, alert bool) error

// Event is a transport-neutral inbound event. Which fields are set depends on
// Kind:
//   - EventCommand: Command (without the slash), Text holds any arguments.
//   - EventCallback: Action, Message (the message carrying the button) and Ack.
//     Tokens that fail to parse arrive with Action.Kind == action.KindNone.
//   - EventText: Text.
//   - EventSubmission: Payload.
type Event struct {
	Kind    EventKind
	User    User
	Chat    string
	Command string
	Text    string
	Action  action.Action
	Message render.Message
	Payload []byte
	Ack     AckFunc
}
