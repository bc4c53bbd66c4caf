package guard

import "github.com/stemsi/exstem-player/internal/session"

// ─── Actions (Page → Player) ────────────────────────────────────────

type Action string

const (
	// Presentation intents.
	ActionSelectOption Action = "select_option"
	ActionSetAnswer    Action = "set_answer"
	ActionClearAnswer  Action = "clear_answer"
	ActionGoto         Action = "goto"
	ActionNext         Action = "next"
	ActionPrev         Action = "prev"
	ActionToggleMark   Action = "toggle_mark"
	ActionSubmit       Action = "submit"

	// Proctoring signals raised by the page shell.
	ActionSignal Action = "signal"

	ActionPing Action = "ping"
)

// RequestEnvelope carries one message from the page. A single flat
// shape rather than per-action structs: every field is optional and
// the action decides which ones are read.
type RequestEnvelope struct {
	Action Action `json:"action"`

	QID    string `json:"q_id,omitempty"`
	Option string `json:"opt,omitempty"`
	Value  string `json:"value,omitempty"`
	Index  int    `json:"index,omitempty"`

	// Signal name for ActionSignal (visibility_hidden, window_blur,
	// fullscreen_exit, devtools_open, offline).
	Signal string `json:"signal,omitempty"`
}

// ─── Events (Player → Page) ─────────────────────────────────────────

type Event string

const (
	EventState Event = "state"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// StateResponse pushes the full session read model. Sent after every
// applied intent and on a steady interval so the page clock stays in
// step with the player's.
type StateResponse struct {
	Event Event         `json:"event"`
	State session.State `json:"state"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
