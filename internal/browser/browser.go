// Package browser manages browser contexts and pages for UI tests and ties
// their diagnostic artifacts (traces, videos, screenshots) to the test that
// opened them.
package browser

import (
	"context"
	"errors"

	"github.com/chromedp/chromedp"
	"github.com/crmqa/crm-e2e/internal/state"
)

// ErrNoVideo is returned by a Video whose recording produced no file.
var ErrNoVideo = errors.New("no video recorded")

// TraceOptions selects what a trace captures.
type TraceOptions struct {
	Screenshots bool
	Snapshots   bool
	Sources     bool
}

// Viewport is the page size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// ContextOptions configures a new browser context.
type ContextOptions struct {
	// RecordVideoDir enables recording of every page into this directory.
	RecordVideoDir string
	// StorageState is restored into the context before the first page loads.
	StorageState *state.StorageState
	Viewport     Viewport
}

// Video is the recording of one page. Path blocks until the recording is
// finalized, which happens when the owning context closes.
type Video interface {
	Path(ctx context.Context) (string, error)
}

// Page is one browser tab.
type Page interface {
	Run(ctx context.Context, actions ...chromedp.Action) error
	Listen(fn func(ev any))
	StartTracing(ctx context.Context, opts TraceOptions) error
	StopTracing(ctx context.Context, path string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Video() Video
	Close() error
}

// Context is an isolated browser session holding pages.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	// Pages returns every page opened in the context, closed ones included,
	// so their recordings can still be collected.
	Pages() []Page
	StorageState(ctx context.Context) (*state.StorageState, error)
	Close() error
}

// Browser creates contexts.
type Browser interface {
	NewContext(ctx context.Context, opts ContextOptions) (Context, error)
	Close() error
}
