// internal/browser/automation/protocol.go
package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/nkratz/pagepilot/api/schemas"
)

// chromeProtocolSession issues raw protocol commands against one tab,
// bypassing the high-level driver's waiting and settling logic.
type chromeProtocolSession struct {
	// tabCtx is the tab's chromedp context; it carries the target binding.
	tabCtx context.Context
}

var _ ProtocolSession = (*chromeProtocolSession)(nil)

func newChromeProtocolSession(tabCtx context.Context) *chromeProtocolSession {
	return &chromeProtocolSession{tabCtx: tabCtx}
}

// run executes protocol actions with the tab binding while honoring the
// operational context.
func (s *chromeProtocolSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
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

func (s *chromeProtocolSession) Navigate(ctx context.Context, url, referrer string) error {
	params := page.Navigate(url)
	if referrer != "" {
		params = params.WithReferrer(referrer)
	}

	err := s.run(ctx, chromedp.ActionFunc(func(actionCtx context.Context) error {
		_, _, errorText, _, err := params.Do(actionCtx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigation to %q rejected: %s", url, errorText)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("protocol navigate: %w", err)
	}
	return nil
}

func (s *chromeProtocolSession) DispatchMouseEvent(ctx context.Context, ev schemas.MouseEventData) error {
	params := input.DispatchMouseEvent(input.MouseType(ev.Type), ev.X, ev.Y).
		WithButton(input.MouseButton(ev.Button)).
		WithClickCount(ev.ClickCount)

	if err := s.run(ctx, params); err != nil {
		return fmt.Errorf("protocol dispatch %s: %w", ev.Type, err)
	}
	return nil
}

func (s *chromeProtocolSession) Evaluate(ctx context.Context, expression string, out *json.RawMessage) error {
	err := s.run(ctx, chromedp.Evaluate(expression, out, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
	if err != nil {
		return fmt.Errorf("protocol evaluate: %w", err)
	}
	return nil
}
