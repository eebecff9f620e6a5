// internal/browser/override/override.go
package override

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/api/schemas"
	"github.com/nkratz/pagepilot/internal/browser/automation"
)

// centerScript resolves the first element matching a selector and returns the
// geometric center of its bounding rectangle, or null when nothing matches.
const centerScript = `
(function(sel) {
    const node = document.querySelector(sel);
    if (!node) return null;
    const rect = node.getBoundingClientRect();
    return { x: rect.left + rect.width / 2, y: rect.top + rect.height / 2 };
})(%s);
`

// Overrider services the intercepted operations through the shared protocol
// session. It performs no waiting, no retries, and no local recovery; every
// failure surfaces to the caller as-is.
type Overrider struct {
	sessions *SessionManager
	logger   *zap.Logger
}

// NewOverrider wires an overrider to its facade's session manager.
func NewOverrider(sessions *SessionManager, logger *zap.Logger) *Overrider {
	return &Overrider{
		sessions: sessions,
		logger:   logger.Named("override"),
	}
}

// Goto issues a single protocol navigation, forwarding the referrer when the
// options carry one. The native driver's wait/settle heuristics are bypassed;
// subsequent wait logic belongs to the caller.
func (o *Overrider) Goto(ctx context.Context, url string, opts *schemas.NavigateOptions) error {
	sess, err := o.sessions.Get(ctx)
	if err != nil {
		return err
	}

	var referrer string
	if opts != nil {
		referrer = opts.Referer
	}

	o.logger.Debug("intercepted navigation",
		zap.String("url", url),
		zap.String("referrer", referrer))

	return sess.Navigate(ctx, url, referrer)
}

// Click resolves the element's on-screen center and synthesizes a trusted
// press/release pair at that point. The geometry is recomputed on every call;
// layout may have shifted since the last one.
func (o *Overrider) Click(ctx context.Context, selector string) error {
	sess, err := o.sessions.Get(ctx)
	if err != nil {
		return err
	}

	center, err := o.resolveCenter(ctx, sess, selector)
	if err != nil {
		return err
	}

	o.logger.Debug("intercepted click",
		zap.String("selector", selector),
		zap.Float64("x", center.X),
		zap.Float64("y", center.Y))

	press := schemas.MouseEventData{
		Type:       schemas.MousePress,
		X:          center.X,
		Y:          center.Y,
		Button:     schemas.ButtonLeft,
		ClickCount: 1,
	}
	if err := sess.DispatchMouseEvent(ctx, press); err != nil {
		return err
	}

	release := press
	release.Type = schemas.MouseRelease
	return sess.DispatchMouseEvent(ctx, release)
}

// resolveCenter evaluates the selector lookup in the page. A null result is a
// hard ElementNotFoundError; no dispatch happens after it.
func (o *Overrider) resolveCenter(ctx context.Context, sess automation.ProtocolSession, selector string) (*schemas.ElementCenter, error) {
	expr := fmt.Sprintf(centerScript, jsonEncode(selector))

	var raw json.RawMessage
	if err := sess.Evaluate(ctx, expr, &raw); err != nil {
		return nil, fmt.Errorf("geometry lookup for %q: %w", selector, err)
	}

	if len(raw) == 0 || string(raw) == "null" {
		return nil, &ElementNotFoundError{Selector: selector}
	}

	var center schemas.ElementCenter
	if err := json.Unmarshal(raw, &center); err != nil {
		return nil, fmt.Errorf("geometry decode for %q: %w (payload: %s)", selector, err, raw)
	}
	return &center, nil
}

// jsonEncode safely encodes a value for injection into a JS expression.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
