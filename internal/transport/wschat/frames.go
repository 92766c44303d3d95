// Package wschat is a browser chat channel for the shop over WebSocket. Each
// browser tab is one chat; carts are shared by all tabs of a device.
package wschat

import (
	"encoding/json"

	"github.com/ashureev/chatshop/internal/render"
)

// Inbound frame types.
const (
	frameCommand = "command"
	frameAction  = "action"
	frameText    = "text"
	frameSubmit  = "submit"
	framePing    = "ping"
)

// Outbound frame types.
const (
	frameMessage = "message"
	frameEdit    = "edit"
	frameDelete  = "delete"
	frameAck     = "ack"
	framePong    = "pong"
	frameError   = "error"
)

// clientFrame is a frame sent by the browser.
type clientFrame struct {
	Type      string          `json:"type"`
	Command   string          `json:"command,omitempty"`
	Token     string          `json:"token,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Text      string          `json:"text,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type buttonFrame struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

type messageFrame struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Body    string          `json:"body"`
	Media   string          `json:"media,omitempty"`
	Actions [][]buttonFrame `json:"actions,omitempty"`
	AppURL  string          `json:"app_url,omitempty"`
}

// serverFrame is a frame sent to the browser.
type serverFrame struct {
	Type    string        `json:"type"`
	Message *messageFrame `json:"message,omitempty"`
	ID      string        `json:"id,omitempty"`
	Text    string        `json:"text,omitempty"`
	Alert   bool          `json:"alert,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func toMessageFrame(id string, kind render.Kind, v render.View) *messageFrame {
	m := &messageFrame{ID: id, Kind: kind.String(), Body: v.Body, Media: v.Media}
	for _, row := range v.Actions {
		buttons := make([]buttonFrame, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, buttonFrame{Label: b.Label, Token: b.Action.Token()})
		}
		m.Actions = append(m.Actions, buttons)
	}
	if v.AppButton != nil {
		m.AppURL = v.AppButton.URL
	}
	return m
}
