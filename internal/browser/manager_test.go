package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/crmqa/crm-e2e/internal/attach"
	"github.com/crmqa/crm-e2e/internal/state"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeTB struct {
	name     string
	cleanups []func()
}

func (f *fakeTB) Helper()           {}
func (f *fakeTB) Name() string      { return f.name }
func (f *fakeTB) Cleanup(fn func()) { f.cleanups = append(f.cleanups, fn) }

// runCleanups mirrors testing.T: last registered runs first.
func (f *fakeTB) runCleanups() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}

type fakeVideo struct {
	path string
	err  error
}

func (v *fakeVideo) Path(_ context.Context) (string, error) { return v.path, v.err }

type fakePage struct {
	mu         sync.Mutex
	video      Video
	startErr   error
	stopErr    error
	shot       []byte
	shotErr    error
	stopCalls  int
	traceOpts  TraceOptions
	listeners  []func(ev any)
	writeTrace bool
}

func (p *fakePage) Run(_ context.Context, _ ...chromedp.Action) error { return nil }

func (p *fakePage) Listen(fn func(ev any)) { p.listeners = append(p.listeners, fn) }

func (p *fakePage) emit(ev any) {
	for _, fn := range p.listeners {
		fn(ev)
	}
}

func (p *fakePage) StartTracing(_ context.Context, opts TraceOptions) error {
	p.traceOpts = opts
	return p.startErr
}

func (p *fakePage) StopTracing(_ context.Context, path string) error {
	p.mu.Lock()
	p.stopCalls++
	p.mu.Unlock()

	if p.stopErr != nil {
		return p.stopErr
	}
	if p.writeTrace {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, []byte("PK"), 0o600)
	}
	return nil
}

func (p *fakePage) Screenshot(_ context.Context) ([]byte, error) { return p.shot, p.shotErr }
func (p *fakePage) Video() Video                                 { return p.video }

func (p *fakePage) Close() error { return nil }

type fakeContext struct {
	pages                 []Page
	closeCalls            int
	videosReadBeforeClose bool
}

func (c *fakeContext) NewPage(_ context.Context) (Page, error) {
	if len(c.pages) == 0 {
		return nil, errBoom
	}
	return c.pages[0], nil
}

func (c *fakeContext) Pages() []Page {
	if c.closeCalls == 0 {
		c.videosReadBeforeClose = true
	}
	return c.pages
}

func (c *fakeContext) StorageState(_ context.Context) (*state.StorageState, error) {
	return &state.StorageState{}, nil
}

func (c *fakeContext) Close() error {
	c.closeCalls++
	return nil
}

type fakeBrowser struct {
	ctx  *fakeContext
	opts ContextOptions
	err  error
}

func (b *fakeBrowser) NewContext(_ context.Context, opts ContextOptions) (Context, error) {
	b.opts = opts
	if b.err != nil {
		return nil, b.err
	}
	return b.ctx, nil
}

func (b *fakeBrowser) Close() error { return nil }

func newTestManager(t *testing.T) (*Manager, *attach.MemorySink, Dirs) {
	t.Helper()

	root := t.TempDir()
	dirs := Dirs{
		Screenshots: filepath.Join(root, "screenshots"),
		Traces:      filepath.Join(root, "traces"),
		Videos:      filepath.Join(root, "videos"),
	}
	log, _ := test.NewNullLogger()
	sink := attach.NewMemorySink()

	return NewManager(log, sink, dirs), sink, dirs
}

func TestManager_PrepareDirsIdempotent(t *testing.T) {
	m, _, dirs := newTestManager(t)

	require.NoError(t, m.PrepareDirs())
	require.NoError(t, m.PrepareDirs())

	for _, dir := range dirs.All() {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestDirs_AllSkipsEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, Dirs{Screenshots: "a", Videos: "c"}.All())
	assert.Empty(t, Dirs{}.All())
}

func TestManager_OpenContextAttachesVideos(t *testing.T) {
	m, sink, dirs := newTestManager(t)
	require.NoError(t, m.PrepareDirs())

	recorded := filepath.Join(dirs.Videos, "one.mjpeg")
	require.NoError(t, os.WriteFile(recorded, []byte("frames"), 0o600))

	bctx := &fakeContext{pages: []Page{
		&fakePage{video: &fakeVideo{path: recorded}},
		&fakePage{video: &fakeVideo{err: ErrNoVideo}},
		&fakePage{video: &fakeVideo{path: filepath.Join(dirs.Videos, "missing.mjpeg")}},
		&fakePage{},
	}}
	b := &fakeBrowser{ctx: bctx}
	tb := &fakeTB{name: "TestUI/login"}

	got, err := m.OpenContext(context.Background(), tb, b, ContextOptions{})
	require.NoError(t, err)
	assert.Same(t, bctx, got)
	assert.Equal(t, dirs.Videos, b.opts.RecordVideoDir)

	tb.runCleanups()
	tb.runCleanups()

	assert.Equal(t, 1, bctx.closeCalls)
	assert.True(t, bctx.videosReadBeforeClose)

	videos := sink.Items()
	require.Len(t, videos, 1)
	assert.Equal(t, "video-1", videos[0].Name)
	assert.Equal(t, "TestUI/login", videos[0].TestID)
	assert.Equal(t, attach.MotionJPEG, videos[0].ContentType)
	assert.Equal(t, []byte("frames"), videos[0].Data)
}

func TestManager_OpenContextKeepsExplicitVideoDir(t *testing.T) {
	m, _, _ := newTestManager(t)
	b := &fakeBrowser{ctx: &fakeContext{}}

	_, err := m.OpenContext(context.Background(), &fakeTB{name: "T"}, b, ContextOptions{RecordVideoDir: "elsewhere"})
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", b.opts.RecordVideoDir)
}

func TestManager_OpenContextError(t *testing.T) {
	m, _, _ := newTestManager(t)
	tb := &fakeTB{name: "T"}

	_, err := m.OpenContext(context.Background(), tb, &fakeBrowser{err: errBoom}, ContextOptions{})
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, tb.cleanups)
}

func TestManager_OpenPageAttachesTrace(t *testing.T) {
	m, sink, _ := newTestManager(t)
	page := &fakePage{writeTrace: true}
	tb := &fakeTB{name: "TestUI/create contact"}

	got, err := m.OpenPage(context.Background(), tb, &fakeContext{pages: []Page{page}})
	require.NoError(t, err)
	assert.Same(t, page, got)
	assert.Equal(t, TraceOptions{Screenshots: true, Snapshots: true, Sources: false}, page.traceOpts)

	tb.runCleanups()
	tb.runCleanups()

	assert.Equal(t, 1, page.stopCalls)
	assert.FileExists(t, m.TracePath(tb.name))
	assert.Equal(t, "TestUI_create_contact.zip", filepath.Base(m.TracePath(tb.name)))

	traces := sink.Named("trace")
	require.Len(t, traces, 1)
	assert.Equal(t, attach.ZIP, traces[0].ContentType)
}

func TestManager_OpenPageTraceFailuresSwallowed(t *testing.T) {
	tests := []struct {
		name string
		page *fakePage
		stop int
	}{
		{name: "start fails", page: &fakePage{startErr: errBoom}, stop: 0},
		{name: "stop fails", page: &fakePage{stopErr: errBoom}, stop: 1},
		{name: "nothing written", page: &fakePage{}, stop: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sink, _ := newTestManager(t)
			tb := &fakeTB{name: "T"}

			_, err := m.OpenPage(context.Background(), tb, &fakeContext{pages: []Page{tt.page}})
			require.NoError(t, err)

			assert.NotPanics(t, tb.runCleanups)
			assert.Equal(t, tt.stop, tt.page.stopCalls)
			assert.Empty(t, sink.Items())
		})
	}
}

func TestManager_OpenPageError(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.OpenPage(context.Background(), &fakeTB{name: "T"}, &fakeContext{})
	require.ErrorIs(t, err, errBoom)
}

func TestManager_Screenshot(t *testing.T) {
	m, sink, dirs := newTestManager(t)
	tb := &fakeTB{name: "TestUI/profile"}

	path := m.Screenshot(context.Background(), tb, &fakePage{shot: []byte("png")}, "after login")
	assert.Equal(t, filepath.Join(dirs.Screenshots, "TestUI_profile-after_login.png"), path)
	assert.FileExists(t, path)

	shots := sink.Named("after login")
	require.Len(t, shots, 1)
	assert.Equal(t, attach.PNG, shots[0].ContentType)
	assert.Equal(t, []byte("png"), shots[0].Data)
}

func TestManager_ScreenshotBestEffort(t *testing.T) {
	m, sink, _ := newTestManager(t)

	path := m.Screenshot(context.Background(), &fakeTB{name: "T"}, &fakePage{shotErr: errBoom}, "broken")
	assert.Empty(t, path)
	assert.Empty(t, sink.Items())
}

func TestVideoContentType(t *testing.T) {
	assert.Equal(t, attach.WebM, videoContentType("a/b.WEBM"))
	assert.Equal(t, attach.MotionJPEG, videoContentType("a/b.mjpeg"))
}
