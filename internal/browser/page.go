package browser

import (
	"archive/zip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/tracing"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	errTracingActive   = errors.New("tracing already started")
	errTracingInactive = errors.New("tracing not started")
)

// Trace categories per capture option.
var (
	baseTraceCategories = []string{
		"devtools.timeline",
		"blink.user_timing",
		"loading",
		"v8.execute",
	}
	screenshotTraceCategories = []string{"disabled-by-default-devtools.screenshot"}
	snapshotTraceCategories   = []string{"disabled-by-default-devtools.timeline", "disabled-by-default-devtools.timeline.frame"}
	sourceTraceCategories     = []string{"disabled-by-default-devtools.v8.compile"}
)

type chromePage struct {
	log     logrus.FieldLogger
	ctx     context.Context
	cancel  context.CancelFunc
	primary bool

	listenMu  sync.Mutex
	listeners []func(ev any)

	traceMu   sync.Mutex
	trace     *traceSession
	video     atomic.Pointer[screencastVideo]
	closeOnce sync.Once
}

type traceSession struct {
	opts     TraceOptions
	events   []json.RawMessage
	complete chan struct{}
	done     bool
}

func newChromePage(ctx context.Context, log logrus.FieldLogger, cancel context.CancelFunc, primary bool) *chromePage {
	p := &chromePage{
		log:     log.WithField("component", "chrome_page"),
		ctx:     ctx,
		cancel:  cancel,
		primary: primary,
	}

	chromedp.ListenTarget(ctx, p.dispatch)

	return p
}

// init prepares the tab: network events, restored storage state and the
// screencast recording.
func (p *chromePage) init(opts ContextOptions) error {
	actions := []chromedp.Action{network.Enable()}

	if st := opts.StorageState; !st.Empty() {
		actions = append(actions, restoreStorageState(st))
	}

	if err := chromedp.Run(p.ctx, actions...); err != nil {
		return fmt.Errorf("initialising page: %w", err)
	}

	if opts.RecordVideoDir != "" {
		if err := startScreencast(p, opts.RecordVideoDir); err != nil {
			p.log.WithError(err).Debug("starting screencast failed")
		}
	}

	return nil
}

func (p *chromePage) dispatch(ev any) {
	switch e := ev.(type) {
	case *tracing.EventDataCollected:
		p.traceMu.Lock()
		if p.trace != nil {
			for _, v := range e.Value {
				p.trace.events = append(p.trace.events, json.RawMessage([]byte(v)))
			}
		}
		p.traceMu.Unlock()
	case *tracing.EventTracingComplete:
		p.traceMu.Lock()
		if p.trace != nil && !p.trace.done {
			p.trace.done = true
			close(p.trace.complete)
		}
		p.traceMu.Unlock()
	case *page.EventScreencastFrame:
		if video := p.video.Load(); video != nil {
			video.frame(e)
		}
	}

	p.listenMu.Lock()
	listeners := slices.Clone(p.listeners)
	p.listenMu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

func (p *chromePage) Listen(fn func(ev any)) {
	p.listenMu.Lock()
	defer p.listenMu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Run executes actions on the tab, bounded by ctx.
func (p *chromePage) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) StartTracing(ctx context.Context, opts TraceOptions) error {
	p.traceMu.Lock()
	if p.trace != nil {
		p.traceMu.Unlock()
		return errTracingActive
	}
	p.trace = &traceSession{opts: opts, complete: make(chan struct{})}
	p.traceMu.Unlock()

	categories := append([]string(nil), baseTraceCategories...)
	if opts.Screenshots {
		categories = append(categories, screenshotTraceCategories...)
	}
	if opts.Snapshots {
		categories = append(categories, snapshotTraceCategories...)
	}
	if opts.Sources {
		categories = append(categories, sourceTraceCategories...)
	}

	err := p.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return tracing.Start().
			WithTraceConfig(&tracing.TraceConfig{IncludedCategories: categories}).
			WithTransferMode(tracing.TransferModeReportEvents).
			Do(ctx)
	}))
	if err != nil {
		p.traceMu.Lock()
		p.trace = nil
		p.traceMu.Unlock()
		return fmt.Errorf("starting trace: %w", err)
	}

	return nil
}

// StopTracing ends the trace and writes a zip holding trace.json and, when
// snapshots were requested, snapshot.html.
func (p *chromePage) StopTracing(ctx context.Context, path string) error {
	p.traceMu.Lock()
	session := p.trace
	p.traceMu.Unlock()

	if session == nil {
		return errTracingInactive
	}

	defer func() {
		p.traceMu.Lock()
		p.trace = nil
		p.traceMu.Unlock()
	}()

	if err := p.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return tracing.End().Do(ctx)
	})); err != nil {
		return fmt.Errorf("ending trace: %w", err)
	}

	select {
	case <-session.complete:
	case <-ctx.Done():
		return fmt.Errorf("waiting for trace data: %w", ctx.Err())
	}

	var snapshot string
	if session.opts.Snapshots {
		if err := p.Run(ctx, chromedp.OuterHTML("html", &snapshot, chromedp.ByQuery)); err != nil {
			p.log.WithError(err).Debug("capturing DOM snapshot failed")
		}
	}

	p.traceMu.Lock()
	events := append([]json.RawMessage(nil), session.events...)
	p.traceMu.Unlock()

	return writeTraceZip(path, events, snapshot)
}

func writeTraceZip(path string, events []json.RawMessage, snapshot string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating trace dir: %w", err)
	}

	out, err := os.Create(path) // #nosec G304 -- slugged trace path
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	zw := zip.NewWriter(out)

	if err := writeZipJSON(zw, "trace.json", map[string]any{"traceEvents": events}); err != nil {
		zw.Close()
		out.Close()
		return err
	}

	if snapshot != "" {
		w, err := zw.Create("snapshot.html")
		if err == nil {
			_, err = w.Write([]byte(snapshot))
		}
		if err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalising %s: %w", path, err)
	}

	return out.Close()
}

func writeZipJSON(zw *zip.Writer, name string, v any) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.Run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromePage) Video() Video {
	video := p.video.Load()
	if video == nil {
		return nil
	}
	return video
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		if video := p.video.Load(); video != nil {
			stopCtx, cancel := context.WithTimeout(p.ctx, teardownTimeout)
			_ = chromedp.Run(stopCtx, chromedp.ActionFunc(func(ctx context.Context) error {
				return page.StopScreencast().Do(ctx)
			}))
			cancel()
			video.finish()
		}

		if !p.primary && p.cancel != nil {
			p.cancel()
		}
	})

	return nil
}

// screencastVideo writes screencast JPEG frames back to back into a
// motion-JPEG file.
type screencastVideo struct {
	log  logrus.FieldLogger
	page *chromePage
	path string

	mu     sync.Mutex
	file   *os.File
	frames int
	done   chan struct{}
	once   sync.Once
}

func startScreencast(p *chromePage, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating video dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+".mjpeg")
	file, err := os.Create(path) // #nosec G304 -- generated name inside the video dir
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	v := &screencastVideo{
		log:  p.log,
		page: p,
		path: path,
		file: file,
		done: make(chan struct{}),
	}
	p.video.Store(v)

	err = chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.StartScreencast().
			WithFormat(page.ScreencastFormatJpeg).
			WithQuality(70).
			WithEveryNthFrame(1).
			Do(ctx)
	}))
	if err != nil {
		p.video.Store(nil)
		v.finish()
		_ = os.Remove(path)
		return fmt.Errorf("starting screencast: %w", err)
	}

	return nil
}

func (v *screencastVideo) frame(ev *page.EventScreencastFrame) {
	data, err := base64.StdEncoding.DecodeString(ev.Data)
	if err == nil {
		v.mu.Lock()
		if v.file != nil {
			if _, werr := v.file.Write(data); werr == nil {
				v.frames++
			}
		}
		v.mu.Unlock()
	}

	// Acks must not run inside the event listener.
	sessionID := ev.SessionID
	go func() {
		_ = chromedp.Run(v.page.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return page.ScreencastFrameAck(sessionID).Do(ctx)
		}))
	}()
}

func (v *screencastVideo) finish() {
	v.once.Do(func() {
		v.mu.Lock()
		if v.file != nil {
			if err := v.file.Close(); err != nil {
				v.log.WithError(err).Debug("closing video file failed")
			}
			v.file = nil
		}
		v.mu.Unlock()
		close(v.done)
	})
}

// Path waits for the recording to be finalized.
func (v *screencastVideo) Path(ctx context.Context) (string, error) {
	select {
	case <-v.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	v.mu.Lock()
	frames := v.frames
	v.mu.Unlock()

	if frames == 0 {
		return "", ErrNoVideo
	}
	return v.path, nil
}

var (
	_ Page  = (*chromePage)(nil)
	_ Video = (*screencastVideo)(nil)
)
