// api/schemas/actions.go
package schemas

import (
	"encoding/json"
	"time"
)

// ActionKind classifies an operation performed through a page handle.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionClick    ActionKind = "click"
	ActionAct      ActionKind = "act"
	ActionExtract  ActionKind = "extract"
	ActionObserve  ActionKind = "observe"
)

// ActionStatus is the terminal status of a recorded action.
type ActionStatus string

const (
	StatusCompleted ActionStatus = "completed"
	StatusFailed    ActionStatus = "failed"
)

// InferredAction is a single page operation the inference layer decided on
// in response to a natural-language instruction.
type InferredAction struct {
	Method      string `json:"method"`
	Selector    string `json:"selector"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
}

// ActResult reports the outcome of an act invocation.
type ActResult struct {
	Success     bool   `json:"success"`
	Method      string `json:"method"`
	Selector    string `json:"selector"`
	Description string `json:"description,omitempty"`
}

// ObservedAction is one candidate action proposed by an observe invocation.
type ObservedAction struct {
	Selector    string `json:"selector"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// ActionRecord is the persisted form of a single action against a session.
type ActionRecord struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Kind       ActionKind      `json:"kind"`
	Input      json.RawMessage `json:"input"`
	Output     json.RawMessage `json:"output,omitempty"`
	Status     ActionStatus    `json:"status"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// SessionRecord is the persisted form of a browser session's lifecycle.
type SessionRecord struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}
