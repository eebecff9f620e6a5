package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/internal/browser/automation"
	"github.com/nkratz/pagepilot/internal/config"
)

// PageFactory produces a fresh page handle for a new session. The returned
// cleanup releases everything the factory allocated (tab, browser process).
// ctx bounds only the launch; the browser itself outlives the call.
type PageFactory func(ctx context.Context) (automation.Page, func(), error)

// NewChromeFactory returns a factory that launches one headless Chrome per
// session. Per-session isolation over shared-browser tabs: a crashed or
// wedged renderer takes down only its own session.
func NewChromeFactory(cfg config.BrowserConfig, inf automation.Inferencer, logger *zap.Logger) PageFactory {
	return func(ctx context.Context) (automation.Page, func(), error) {
		tabCtx, cleanup := newBrowserContexts(ctx, cfg)

		// Start the browser now so factory errors surface at session
		// creation rather than on the first action. The caller's context
		// can abort the launch, but never a browser that came up.
		stop := context.AfterFunc(ctx, func() { _ = chromedp.Cancel(tabCtx) })
		err := chromedp.Run(tabCtx)
		stop()
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
		}

		page := automation.NewChromePage(tabCtx, inf, cfg.NavigationTimeout, logger)
		return page, cleanup, nil
	}
}

// newBrowserContexts builds the allocator and tab contexts for one session.
// Both are rooted in a detached copy of ctx: sessions are ended by /end or
// the idle sweeper, not by the request that started them, so cancellation of
// ctx must not reach the browser process.
func newBrowserContexts(ctx context.Context, cfg config.BrowserConfig) (context.Context, func()) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), execOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	cleanup := func() {
		// chromedp.Cancel waits for the browser process to exit gracefully
		// before the hard cancels below.
		_ = chromedp.Cancel(tabCtx)
		tabCancel()
		allocCancel()
	}
	return tabCtx, cleanup
}

// execOptions maps BrowserConfig onto chromedp allocator options.
func execOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	}

	if cfg.DisableCache {
		opts = append(opts, chromedp.Flag("disable-application-cache", true))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}
