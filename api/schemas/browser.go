// api/schemas/browser.go
package schemas

// -- Low-Level Protocol Interaction Schemas --

// MouseEventType defines the type of a synthesized mouse event.
type MouseEventType string

const (
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
)

// MouseButton defines the mouse button attached to a synthesized event.
type MouseButton string

const (
	ButtonNone MouseButton = "none"
	ButtonLeft MouseButton = "left"
)

// MouseEventData encapsulates a single synthesized pointer event. It has no
// identity beyond the dispatch call that carries it.
type MouseEventData struct {
	Type       MouseEventType `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Button     MouseButton    `json:"button"`
	ClickCount int64          `json:"clickCount"`
}

// ElementCenter is the geometric center of an element's bounding rectangle
// at the moment of query. It is never cached; layout may shift between calls.
type ElementCenter struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NavigateOptions carries optional parameters for an intercepted navigation.
type NavigateOptions struct {
	// Referer, when set, is forwarded as the navigation's referrer value.
	Referer string `json:"referer,omitempty"`
}
