package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// Error is a non-2xx backend response reduced to a display message.
// The player does not branch on structured error detail (taxonomy is
// decided by which call failed, not by the body), so one message field
// is all that survives.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// errorBody matches the backend's {"error": "..."} failure shape.
type errorBody struct {
	Error string `json:"error"`
}

// errorFrom extracts a human-readable message from a failed response,
// falling back to the HTTP status text for non-JSON bodies.
func errorFrom(resp *resty.Response) error {
	msg := http.StatusText(resp.StatusCode())

	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		msg = body.Error
	}

	return &Error{
		StatusCode: resp.StatusCode(),
		Message:    msg,
	}
}
