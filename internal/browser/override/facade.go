// internal/browser/override/facade.go
package override

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/api/schemas"
	"github.com/nkratz/pagepilot/internal/browser/automation"
)

// PageFacade presents an interface indistinguishable from the native page
// handle while redirecting goto, click, and locator construction. Every other
// member forwards to the native handle unmodified, so capability parity with
// the wrapped driver is total.
//
// The facade holds a non-owning reference to the native page; its protocol
// session lives exactly as long as the facade and is implicitly invalidated
// when the underlying tab ends.
type PageFacade struct {
	native   automation.Page
	override *Overrider
	sessions *SessionManager
}

var _ automation.Page = (*PageFacade)(nil)

// NewPageFacade wraps a native page handle. Each facade gets its own session
// manager; at most one protocol session exists per facade instance.
func NewPageFacade(native automation.Page, logger *zap.Logger) *PageFacade {
	sessions := NewSessionManager(native)
	return &PageFacade{
		native:   native,
		override: NewOverrider(sessions, logger),
		sessions: sessions,
	}
}

// -- Intercepted members --

func (f *PageFacade) Goto(ctx context.Context, url string, opts *schemas.NavigateOptions) error {
	return f.override.Goto(ctx, url, opts)
}

func (f *PageFacade) Click(ctx context.Context, selector string) error {
	return f.override.Click(ctx, selector)
}

func (f *PageFacade) Locator(selector string) automation.Locator {
	return &LocatorFacade{native: f.native.Locator(selector)}
}

// -- Pass-through members --

func (f *PageFacade) Fill(ctx context.Context, selector, value string) error {
	return f.native.Fill(ctx, selector, value)
}

func (f *PageFacade) Evaluate(ctx context.Context, expression string, out *json.RawMessage) error {
	return f.native.Evaluate(ctx, expression, out)
}

func (f *PageFacade) Content(ctx context.Context) (string, error) {
	return f.native.Content(ctx)
}

func (f *PageFacade) TextContent(ctx context.Context, selector string) (string, error) {
	return f.native.TextContent(ctx, selector)
}

func (f *PageFacade) Title(ctx context.Context) (string, error) {
	return f.native.Title(ctx)
}

func (f *PageFacade) URL(ctx context.Context) (string, error) {
	return f.native.URL(ctx)
}

func (f *PageFacade) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return f.native.WaitForSelector(ctx, selector, timeout)
}

func (f *PageFacade) Screenshot(ctx context.Context) ([]byte, error) {
	return f.native.Screenshot(ctx)
}

func (f *PageFacade) Act(ctx context.Context, instruction string) (*schemas.ActResult, error) {
	return f.native.Act(ctx, instruction)
}

func (f *PageFacade) Extract(ctx context.Context, instruction string, schema json.RawMessage) (json.RawMessage, error) {
	return f.native.Extract(ctx, instruction, schema)
}

func (f *PageFacade) Observe(ctx context.Context, instruction string) ([]schemas.ObservedAction, error) {
	return f.native.Observe(ctx, instruction)
}

func (f *PageFacade) NewProtocolSession(ctx context.Context) (automation.ProtocolSession, error) {
	return f.native.NewProtocolSession(ctx)
}

// LocatorFacade wraps the object produced by a locator lookup. Its click
// forwards to the native locator's own click rather than the protocol
// technique; the wrapper exists to give locator clicks a uniform interception
// point. Everything else passes through untouched.
type LocatorFacade struct {
	native automation.Locator
}

var _ automation.Locator = (*LocatorFacade)(nil)

func (l *LocatorFacade) Click(ctx context.Context) error {
	return l.native.Click(ctx)
}

func (l *LocatorFacade) Fill(ctx context.Context, value string) error {
	return l.native.Fill(ctx, value)
}

func (l *LocatorFacade) TextContent(ctx context.Context) (string, error) {
	return l.native.TextContent(ctx)
}

func (l *LocatorFacade) Count(ctx context.Context) (int, error) {
	return l.native.Count(ctx)
}

func (l *LocatorFacade) WaitFor(ctx context.Context, timeout time.Duration) error {
	return l.native.WaitFor(ctx, timeout)
}
