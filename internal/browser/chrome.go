package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/crmqa/crm-e2e/internal/state"
	"github.com/sirupsen/logrus"
)

const (
	defaultWidth  = 1920
	defaultHeight = 1080
)

// ChromeOptions configures the chromedp backend.
type ChromeOptions struct {
	Headless bool
	ExecPath string
	Log      logrus.FieldLogger
}

// Chrome launches one Chrome process per context through chromedp.
type Chrome struct {
	opts ChromeOptions
	log  logrus.FieldLogger

	mu       sync.Mutex
	contexts []*chromeContext
}

// NewChrome creates the chromedp backend.
func NewChrome(opts ChromeOptions) *Chrome {
	log := opts.Log
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	return &Chrome{
		opts: opts,
		log:  log.WithField("component", "chrome"),
	}
}

// NewContext starts a fresh Chrome with its own profile.
func (c *Chrome) NewContext(_ context.Context, opts ContextOptions) (Context, error) {
	width, height := opts.Viewport.Width, opts.Viewport.Height
	if width <= 0 || height <= 0 {
		width, height = defaultWidth, defaultHeight
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(width, height),
	)
	if c.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ExecPath))
	}

	// The browser outlives the caller's context; it is released by Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			c.log.Debugf(format, args...)
		}),
	)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	bctx := &chromeContext{
		log:           c.log,
		opts:          opts,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}

	c.mu.Lock()
	c.contexts = append(c.contexts, bctx)
	c.mu.Unlock()

	return bctx, nil
}

// Close closes every context still open.
func (c *Chrome) Close() error {
	c.mu.Lock()
	contexts := c.contexts
	c.contexts = nil
	c.mu.Unlock()

	var firstErr error
	for _, bctx := range contexts {
		if err := bctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

type chromeContext struct {
	log  logrus.FieldLogger
	opts ContextOptions

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	mu      sync.Mutex
	pages   []*chromePage
	primary bool
	closed  bool
	once    sync.Once
}

func (c *chromeContext) NewPage(_ context.Context) (Page, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("browser context closed") //nolint:err113 // Simple state error
	}

	// The first page reuses the tab chromedp opened with the browser.
	pageCtx, cancel := c.browserCtx, context.CancelFunc(nil)
	primary := !c.primary
	if primary {
		c.primary = true
	} else {
		pageCtx, cancel = chromedp.NewContext(c.browserCtx)
	}
	c.mu.Unlock()

	page := newChromePage(pageCtx, c.log, cancel, primary)

	if err := page.init(c.opts); err != nil {
		_ = page.Close()
		return nil, err
	}

	c.mu.Lock()
	c.pages = append(c.pages, page)
	c.mu.Unlock()

	return page, nil
}

func (c *chromeContext) Pages() []Page {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Page, len(c.pages))
	for i, p := range c.pages {
		out[i] = p
	}
	return out
}

func (c *chromeContext) StorageState(ctx context.Context) (*state.StorageState, error) {
	c.mu.Lock()
	pages := append([]*chromePage(nil), c.pages...)
	c.mu.Unlock()

	if len(pages) == 0 {
		return &state.StorageState{Cookies: []state.Cookie{}, Origins: []state.Origin{}}, nil
	}

	return captureStorageState(ctx, pages)
}

func (c *chromeContext) Close() error {
	var err error

	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		pages := append([]*chromePage(nil), c.pages...)
		c.mu.Unlock()

		for _, p := range pages {
			if cerr := p.Close(); cerr != nil {
				c.log.WithError(cerr).Debug("closing page failed")
			}
		}

		err = chromedp.Cancel(c.browserCtx)
		c.browserCancel()
		c.allocCancel()
	})

	return err
}

var (
	_ Browser = (*Chrome)(nil)
	_ Context = (*chromeContext)(nil)
)
