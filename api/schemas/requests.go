// api/schemas/requests.go
package schemas

import "encoding/json"

// -- Demo server request/response bodies --

// StartSessionRequest opens a new browser session.
type StartSessionRequest struct {
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// StartSessionResponse returns the identifier of a started session.
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// NavigateRequest drives an intercepted navigation on a session's page.
type NavigateRequest struct {
	URL     string `json:"url"`
	Referer string `json:"referer,omitempty"`
}

// ClickRequest drives an intercepted click on a session's page.
type ClickRequest struct {
	Selector string `json:"selector"`
}

// ActRequest executes a natural-language action.
type ActRequest struct {
	Instruction string `json:"instruction"`
}

// ExtractRequest extracts structured data from the current page.
type ExtractRequest struct {
	Instruction string          `json:"instruction"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// ObserveRequest lists candidate actions on the current page.
type ObserveRequest struct {
	Instruction string `json:"instruction,omitempty"`
}

// ErrorResponse is the uniform error body returned by the demo server.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StreamEventType tags a server-sent event on the act stream.
type StreamEventType string

const (
	EventLog    StreamEventType = "log"
	EventResult StreamEventType = "result"
	EventError  StreamEventType = "error"
)

// StreamEvent is a single frame on the act progress stream.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
