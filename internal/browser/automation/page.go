// internal/browser/automation/page.go

// Package automation exposes the high-level page handle the rest of the
// application drives. A Page is backed by a live browser tab; the AI
// operations (act, extract, observe) delegate DOM-grounded inference to an
// Inferencer and execute the resulting primitive through the same handle.
package automation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nkratz/pagepilot/api/schemas"
)

// ErrNoInferencer is returned by act/extract/observe when the page was built
// without an inference backend.
var ErrNoInferencer = errors.New("automation: no inference backend configured")

// Page is the full surface of a live browser tab.
//
// Implementations must treat every method as a single awaited round-trip to
// the browser; ordering across calls is the caller's responsibility.
type Page interface {
	// Navigation and direct DOM interaction.
	Goto(ctx context.Context, url string, opts *schemas.NavigateOptions) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Locator(selector string) Locator

	// Page state.
	Evaluate(ctx context.Context, expression string, out *json.RawMessage) error
	Content(ctx context.Context) (string, error)
	TextContent(ctx context.Context, selector string) (string, error)
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)

	// AI-driven operations.
	Act(ctx context.Context, instruction string) (*schemas.ActResult, error)
	Extract(ctx context.Context, instruction string, schema json.RawMessage) (json.RawMessage, error)
	Observe(ctx context.Context, instruction string) ([]schemas.ObservedAction, error)

	// NewProtocolSession opens a debugging-protocol session bound to this
	// page's tab. Callers own memoization; every call creates a new session.
	NewProtocolSession(ctx context.Context) (ProtocolSession, error)
}

// Locator is a lazily-resolved handle to the first element matching a
// selector, mirroring the page handle's locator-construction call.
type Locator interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	TextContent(ctx context.Context) (string, error)
	Count(ctx context.Context) (int, error)
	WaitFor(ctx context.Context, timeout time.Duration) error
}

// ProtocolSession is a low-level debugging-protocol connection scoped to one
// tab. It bypasses the high-level driver entirely.
type ProtocolSession interface {
	// Navigate instructs the tab to load url, forwarding referrer when
	// non-empty. No wait or settle heuristics are applied.
	Navigate(ctx context.Context, url, referrer string) error
	// DispatchMouseEvent synthesizes a single trusted pointer event.
	DispatchMouseEvent(ctx context.Context, ev schemas.MouseEventData) error
	// Evaluate runs an expression in the page's execution context and
	// unmarshals the result into out. A JS null comes back as "null".
	Evaluate(ctx context.Context, expression string, out *json.RawMessage) error
}

// SnapshotElement is one interactive element captured from the live DOM.
type SnapshotElement struct {
	Selector string `json:"selector"`
	Tag      string `json:"tag"`
	Role     string `json:"role,omitempty"`
	Text     string `json:"text,omitempty"`
}

// DOMSnapshot is the page context handed to the inference layer.
type DOMSnapshot struct {
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	Elements []SnapshotElement `json:"elements"`
}

// Inferencer turns natural-language instructions plus page context into
// concrete page operations. Implemented by the LLM client.
type Inferencer interface {
	InferAct(ctx context.Context, instruction string, snapshot *DOMSnapshot) (*schemas.InferredAction, error)
	InferExtract(ctx context.Context, instruction string, schema json.RawMessage, pageText string) (json.RawMessage, error)
	InferObserve(ctx context.Context, instruction string, snapshot *DOMSnapshot) ([]schemas.ObservedAction, error)
}
