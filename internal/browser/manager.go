package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crmqa/crm-e2e/internal/attach"
	"github.com/crmqa/crm-e2e/internal/testing/format"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const teardownTimeout = 30 * time.Second

// TB is the part of testing.TB the manager needs.
type TB interface {
	Helper()
	Name() string
	Cleanup(func())
}

// Dirs are the artifact roots.
type Dirs struct {
	Screenshots string
	Traces      string
	Videos      string
}

// All returns every directory, empty entries skipped.
func (d Dirs) All() []string {
	out := make([]string, 0, 3)
	for _, dir := range []string{d.Screenshots, d.Traces, d.Videos} {
		if dir != "" {
			out = append(out, dir)
		}
	}
	return out
}

// Manager ties browser resources to the lifecycle of a test and attaches
// their artifacts on teardown.
type Manager struct {
	log  logrus.FieldLogger
	sink attach.Sink
	dirs Dirs
}

// NewManager creates an artifact manager.
func NewManager(log logrus.FieldLogger, sink attach.Sink, dirs Dirs) *Manager {
	return &Manager{
		log:  log.WithField("component", "artifact_manager"),
		sink: sink,
		dirs: dirs,
	}
}

// Dirs returns the configured artifact roots.
func (m *Manager) Dirs() Dirs {
	return m.dirs
}

// PrepareDirs creates every artifact root if missing. Safe to call repeatedly.
func (m *Manager) PrepareDirs() error {
	for _, dir := range m.dirs.All() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// OpenContext opens a recording context and registers its teardown: videos
// are collected before the context closes and attached afterwards.
func (m *Manager) OpenContext(ctx context.Context, t TB, b Browser, opts ContextOptions) (Context, error) {
	t.Helper()

	if opts.RecordVideoDir == "" {
		opts.RecordVideoDir = m.dirs.Videos
	}

	bctx, err := b.NewContext(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("opening browser context: %w", err)
	}

	var once sync.Once
	t.Cleanup(func() {
		once.Do(func() {
			m.closeContext(ctx, t.Name(), bctx)
		})
	})

	return bctx, nil
}

func (m *Manager) closeContext(ctx context.Context, testID string, bctx Context) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	videos := make([]Video, 0)
	for _, page := range bctx.Pages() {
		if v := page.Video(); v != nil {
			videos = append(videos, v)
		}
	}

	if err := bctx.Close(); err != nil {
		m.log.WithError(err).Debug("closing browser context failed")
	}

	g, gctx := errgroup.WithContext(tctx)
	for i, video := range videos {
		g.Go(func() error {
			attach.Safe(m.log, "attach video", func() error {
				path, err := video.Path(gctx)
				if err != nil {
					return err
				}
				if !fileExists(path) {
					return nil
				}
				return m.sink.AttachFile(testID, fmt.Sprintf("video-%d", i+1), path, videoContentType(path))
			})
			return nil
		})
	}
	_ = g.Wait()
}

// OpenPage opens a page with tracing started and registers its teardown:
// the trace is stopped into traces/<slug>.zip and attached.
func (m *Manager) OpenPage(ctx context.Context, t TB, bctx Context) (Page, error) {
	t.Helper()

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}

	tracing := true
	if err := page.StartTracing(ctx, TraceOptions{Screenshots: true, Snapshots: true, Sources: false}); err != nil {
		m.log.WithError(err).Debug("starting trace failed")
		tracing = false
	}

	testID := t.Name()

	var once sync.Once
	t.Cleanup(func() {
		once.Do(func() {
			if tracing {
				m.stopTrace(ctx, testID, page)
			}
		})
	})

	return page, nil
}

func (m *Manager) stopTrace(ctx context.Context, testID string, page Page) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	path := m.TracePath(testID)
	if err := page.StopTracing(tctx, path); err != nil {
		m.log.WithError(err).Debug("stopping trace failed")
		path = ""
	}

	if path == "" || !fileExists(path) {
		return
	}

	attach.Safe(m.log, "attach trace", func() error {
		return m.sink.AttachFile(testID, "trace", path, attach.ZIP)
	})
}

// TracePath returns where the trace of testID is written.
func (m *Manager) TracePath(testID string) string {
	return filepath.Join(m.dirs.Traces, format.Slug(testID)+".zip")
}

// Screenshot captures a PNG of page into the screenshots directory and
// attaches it. It is best-effort and returns "" on failure.
func (m *Manager) Screenshot(ctx context.Context, t TB, page Page, name string) string {
	t.Helper()

	var path string
	attach.Safe(m.log, "screenshot "+name, func() error {
		data, err := page.Screenshot(ctx)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(m.dirs.Screenshots, 0o755); err != nil {
			return err
		}

		target := filepath.Join(m.dirs.Screenshots, format.Slug(t.Name())+"-"+format.Slug(name)+".png")
		if err := os.WriteFile(target, data, 0o600); err != nil {
			return err
		}
		path = target

		return m.sink.Attach(t.Name(), name, attach.PNG, data)
	})

	return path
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func videoContentType(path string) attach.ContentType {
	if strings.EqualFold(filepath.Ext(path), ".webm") {
		return attach.WebM
	}
	return attach.MotionJPEG
}
