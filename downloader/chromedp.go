package downloader

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// BrowserOptions configures the headless Chrome process.
type BrowserOptions struct {
	Headless  bool
	NoSandbox bool
	ExecPath  string
	UserAgent string
}

// ChromeLauncher starts one headless Chrome per Launch call.
type ChromeLauncher struct {
	opts BrowserOptions
}

// NewChromeLauncher creates a launcher for the given options
func NewChromeLauncher(opts BrowserOptions) *ChromeLauncher {
	return &ChromeLauncher{opts: opts}
}

// Launch starts the browser and opens a tab. The returned Page owns the
// browser process; closing it shuts the browser down.
func (l *ChromeLauncher) Launch(ctx context.Context) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
	)
	if l.opts.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run starts the browser, so launch errors surface here
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Printf("[Browser] ✓ Opened the browser")

	return &BrowserSession{
		ctx:         browserCtx,
		cancelAlloc: cancelAlloc,
	}, nil
}

// BrowserSession manages a chromedp browser context for one pipeline run
type BrowserSession struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

// scope derives a chromedp run context from the session that also honours
// the caller's deadline and cancellation.
func (bs *BrowserSession) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(bs.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(bs.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (bs *BrowserSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := bs.scope(ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits until the document body is parsed
func (bs *BrowserSession) Navigate(ctx context.Context, url string) error {
	log.Printf("[Browser] Navigating to %s", url)
	if err := bs.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Click clicks the first element matching selector
func (bs *BrowserSession) Click(ctx context.Context, selector string) error {
	return bs.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// Type sends text as key events to the element matching selector
func (bs *BrowserSession) Type(ctx context.Context, selector, text string) error {
	return bs.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// PressEnter submits the element matching selector
func (bs *BrowserSession) PressEnter(ctx context.Context, selector string) error {
	return bs.run(ctx, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery))
}

// WaitVisible blocks until selector is visible or ctx expires
func (bs *BrowserSession) WaitVisible(ctx context.Context, selector string) error {
	return bs.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Evaluate runs JavaScript and stores the result in res
func (bs *BrowserSession) Evaluate(ctx context.Context, js string, res any) error {
	return bs.run(ctx, chromedp.Evaluate(js, res))
}

// HTML returns the rendered page HTML
func (bs *BrowserSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := bs.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// SetHeaders sets extra headers sent with every request the tab makes
func (bs *BrowserSession) SetHeaders(ctx context.Context, headers map[string]string) error {
	if len(headers) == 0 {
		return nil
	}
	h := make(network.Headers, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return bs.run(ctx, network.Enable(), network.SetExtraHTTPHeaders(h))
}

// Close shuts the browser down. Safe to call more than once.
func (bs *BrowserSession) Close() error {
	bs.closeOnce.Do(func() {
		bs.closeErr = chromedp.Cancel(bs.ctx)
		if bs.cancelAlloc != nil {
			bs.cancelAlloc()
		}
		log.Printf("[Browser] ✓ Closed the browser")
	})
	return bs.closeErr
}
