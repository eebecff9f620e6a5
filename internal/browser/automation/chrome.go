// internal/browser/automation/chrome.go
package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/api/schemas"
)

// chromePage drives a single browser tab through chromedp. It implements Page.
type chromePage struct {
	// ctx is the long-lived tab context created by chromedp.NewContext.
	// Operational contexts are combined with it per call.
	ctx        context.Context
	logger     *zap.Logger
	inf        Inferencer
	navTimeout time.Duration
}

var _ Page = (*chromePage)(nil)

// NewChromePage wraps an active chromedp tab context in a Page. The inferencer
// may be nil, in which case act/extract/observe fail with ErrNoInferencer.
func NewChromePage(tabCtx context.Context, inf Inferencer, navTimeout time.Duration, logger *zap.Logger) Page {
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	return &chromePage{
		ctx:        tabCtx,
		logger:     logger.Named("page"),
		inf:        inf,
		navTimeout: navTimeout,
	}
}

// run executes actions against the tab, honoring the operational context.
// The tab itself outlives the call; cancelling ctx aborts only the actions.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *chromePage) Goto(ctx context.Context, url string, opts *schemas.NavigateOptions) error {
	opCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	// The native driver waits for the load event; the referrer, when present,
	// rides on the navigation itself.
	if opts != nil && opts.Referer != "" {
		sess := newChromeProtocolSession(p.ctx)
		if err := sess.Navigate(opCtx, url, opts.Referer); err != nil {
			return err
		}
		return p.run(opCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	if err := p.run(opCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %q: %w", url, err)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	if err := p.run(ctx,
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("fill %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Locator(selector string) Locator {
	return &chromeLocator{page: p, selector: selector}
}

func (p *chromePage) Evaluate(ctx context.Context, expression string, out *json.RawMessage) error {
	return p.run(ctx, chromedp.Evaluate(expression, out, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

func (p *chromePage) TextContent(ctx context.Context, selector string) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read text of %q: %w", selector, err)
	}
	return text, nil
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.run(opCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromePage) NewProtocolSession(ctx context.Context) (ProtocolSession, error) {
	if err := p.ctx.Err(); err != nil {
		return nil, fmt.Errorf("tab is gone: %w", err)
	}
	return newChromeProtocolSession(p.ctx), nil
}

// chromeLocator resolves its selector on first use; every operation goes
// through the owning page's tab context.
type chromeLocator struct {
	page     *chromePage
	selector string
}

var _ Locator = (*chromeLocator)(nil)

func (l *chromeLocator) Click(ctx context.Context) error {
	return l.page.Click(ctx, l.selector)
}

func (l *chromeLocator) Fill(ctx context.Context, value string) error {
	return l.page.Fill(ctx, l.selector, value)
}

func (l *chromeLocator) TextContent(ctx context.Context) (string, error) {
	return l.page.TextContent(ctx, l.selector)
}

func (l *chromeLocator) Count(ctx context.Context) (int, error) {
	expr := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsonEncode(l.selector))
	var raw json.RawMessage
	if err := l.page.Evaluate(ctx, expr, &raw); err != nil {
		return 0, fmt.Errorf("count %q: %w", l.selector, err)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("count %q: unexpected result %s: %w", l.selector, raw, err)
	}
	return n, nil
}

func (l *chromeLocator) WaitFor(ctx context.Context, timeout time.Duration) error {
	return l.page.WaitForSelector(ctx, l.selector, timeout)
}

// jsonEncode safely encodes a value for injection into a JS expression.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
