package override

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nkratz/pagepilot/api/schemas"
	"github.com/nkratz/pagepilot/internal/browser/automation"
)

// rect mirrors a DOM bounding rectangle for the fake page document.
type rect struct {
	Left, Top, Width, Height float64
}

// fakeSession records every protocol command it receives and answers the
// center-geometry evaluation from a configured fake DOM.
type fakeSession struct {
	mu          sync.Mutex
	dom         map[string]rect // selector -> bounding rect
	navs        []navCall
	events      []schemas.MouseEventData
	evalErr     error
	navErr      error
	dispErr     error
	evaluations int
}

type navCall struct {
	url      string
	referrer string
}

func newFakeSession() *fakeSession {
	return &fakeSession{dom: make(map[string]rect)}
}

func (s *fakeSession) Navigate(_ context.Context, url, referrer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navErr != nil {
		return s.navErr
	}
	s.navs = append(s.navs, navCall{url: url, referrer: referrer})
	return nil
}

func (s *fakeSession) DispatchMouseEvent(_ context.Context, ev schemas.MouseEventData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dispErr != nil {
		return s.dispErr
	}
	s.events = append(s.events, ev)
	return nil
}

// Evaluate emulates the in-page selector lookup: if the expression embeds a
// selector present in the fake DOM, it returns that element's center,
// otherwise JS null.
func (s *fakeSession) Evaluate(_ context.Context, expression string, out *json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations++
	if s.evalErr != nil {
		return s.evalErr
	}
	for selector, r := range s.dom {
		encoded, _ := json.Marshal(selector)
		if strings.Contains(expression, string(encoded)) {
			center := schemas.ElementCenter{
				X: r.Left + r.Width/2,
				Y: r.Top + r.Height/2,
			}
			payload, _ := json.Marshal(center)
			*out = payload
			return nil
		}
	}
	*out = json.RawMessage("null")
	return nil
}

func (s *fakeSession) dispatched() []schemas.MouseEventData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schemas.MouseEventData(nil), s.events...)
}

func (s *fakeSession) navigations() []navCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]navCall(nil), s.navs...)
}

func (s *fakeSession) evaluationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluations
}

// fakePage is a canned native page handle. Every method records its
// invocation so pass-through parity can be asserted, and NewProtocolSession
// counts creations to verify memoization.
type fakePage struct {
	sess        *fakeSession
	sessErr     error
	created     atomic.Int64
	createDelay time.Duration
	calls       []string
	callsMu     sync.Mutex
}

var _ automation.Page = (*fakePage)(nil)

func newFakePage() *fakePage {
	return &fakePage{sess: newFakeSession()}
}

func (p *fakePage) record(name string) {
	p.callsMu.Lock()
	p.calls = append(p.calls, name)
	p.callsMu.Unlock()
}

func (p *fakePage) recorded() []string {
	p.callsMu.Lock()
	defer p.callsMu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePage) Goto(context.Context, string, *schemas.NavigateOptions) error {
	p.record("Goto")
	return nil
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.record("Click:" + selector)
	return nil
}

func (p *fakePage) Fill(_ context.Context, selector, value string) error {
	p.record("Fill:" + selector + "=" + value)
	return nil
}

func (p *fakePage) Locator(selector string) automation.Locator {
	p.record("Locator:" + selector)
	return &fakeLocator{page: p, selector: selector}
}

func (p *fakePage) Evaluate(_ context.Context, _ string, out *json.RawMessage) error {
	p.record("Evaluate")
	*out = json.RawMessage(`"native-eval"`)
	return nil
}

func (p *fakePage) Content(context.Context) (string, error) {
	p.record("Content")
	return "<html>native</html>", nil
}

func (p *fakePage) TextContent(_ context.Context, selector string) (string, error) {
	p.record("TextContent:" + selector)
	return "native-text", nil
}

func (p *fakePage) Title(context.Context) (string, error) {
	p.record("Title")
	return "native-title", nil
}

func (p *fakePage) URL(context.Context) (string, error) {
	p.record("URL")
	return "https://native.example/", nil
}

func (p *fakePage) WaitForSelector(_ context.Context, selector string, _ time.Duration) error {
	p.record("WaitForSelector:" + selector)
	return nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	p.record("Screenshot")
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (p *fakePage) Act(_ context.Context, instruction string) (*schemas.ActResult, error) {
	p.record("Act:" + instruction)
	return &schemas.ActResult{Success: true, Method: "click", Selector: "#native"}, nil
}

func (p *fakePage) Extract(_ context.Context, instruction string, _ json.RawMessage) (json.RawMessage, error) {
	p.record("Extract:" + instruction)
	return json.RawMessage(`{"from":"native"}`), nil
}

func (p *fakePage) Observe(_ context.Context, instruction string) ([]schemas.ObservedAction, error) {
	p.record("Observe:" + instruction)
	return []schemas.ObservedAction{{Selector: "#native", Method: "click"}}, nil
}

func (p *fakePage) NewProtocolSession(context.Context) (automation.ProtocolSession, error) {
	if p.createDelay > 0 {
		time.Sleep(p.createDelay)
	}
	if p.sessErr != nil {
		return nil, p.sessErr
	}
	p.created.Add(1)
	return p.sess, nil
}

// fakeLocator records operations against the native locator object.
type fakeLocator struct {
	page     *fakePage
	selector string
	clicks   atomic.Int64
}

var _ automation.Locator = (*fakeLocator)(nil)

func (l *fakeLocator) Click(context.Context) error {
	l.clicks.Add(1)
	l.page.record("LocatorClick:" + l.selector)
	return nil
}

func (l *fakeLocator) Fill(_ context.Context, value string) error {
	l.page.record(fmt.Sprintf("LocatorFill:%s=%s", l.selector, value))
	return nil
}

func (l *fakeLocator) TextContent(context.Context) (string, error) {
	l.page.record("LocatorText:" + l.selector)
	return "locator-text", nil
}

func (l *fakeLocator) Count(context.Context) (int, error) {
	return 3, nil
}

func (l *fakeLocator) WaitFor(context.Context, time.Duration) error {
	l.page.record("LocatorWait:" + l.selector)
	return nil
}

var errSessionUnavailable = errors.New("tab closed")
