package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/crmqa/crm-e2e/internal/attach"
	"github.com/crmqa/crm-e2e/internal/browser"
	"github.com/crmqa/crm-e2e/internal/config"
	"github.com/crmqa/crm-e2e/internal/crm"
	"github.com/crmqa/crm-e2e/internal/httplog"
	"github.com/crmqa/crm-e2e/internal/logger"
	"github.com/crmqa/crm-e2e/internal/state"
	"github.com/crmqa/crm-e2e/internal/testing/metrics"
)

const (
	apiSummaryAttachment = "api-summary"
	apiLogAttachment     = "api-log"
	failureScreenshot    = "failure"

	failureShotTimeout = 10 * time.Second
)

// T is the part of testing.TB the fixtures use.
type T interface {
	Helper()
	Name() string
	Skipf(format string, args ...any)
	Cleanup(func())
	Logf(format string, args ...any)
	Failed() bool
}

// Fixture carries the per-test resources. Everything it opens is released
// through t.Cleanup.
type Fixture struct {
	t     T
	suite *Suite

	// Log is the step-scoped logger of the test.
	Log *logger.TestLogger

	mu       sync.Mutex
	ctx      context.Context
	bctx     browser.Context
	page     browser.Page
	recorder *httplog.Recorder
	api      *crm.Client
}

// Fixture creates the per-test fixture for t.
func (s *Suite) Fixture(t T) *Fixture {
	t.Helper()

	log := logger.New(t.Name(),
		logger.WithLevel(logger.ParseLevel(s.cfg.LogLevel)),
		logger.WithOutput(s.logOutput),
		logger.WithSink(s.sink),
		logger.WithEngine(s.engine),
		logger.WithDiagnostics(s.log),
	)

	t.Cleanup(func() {
		if t.Failed() {
			log.Error("test failed", nil)
		}
		log.AttachGlobalOnce()
	})

	return &Fixture{
		t:     t,
		suite: s,
		Log:   log,
		ctx:   context.Background(),
	}
}

// Step runs fn inside the named logger step.
func (f *Fixture) Step(name string, fn func()) {
	f.t.Helper()

	if err := f.Log.InStep(name, fn); err != nil {
		f.t.Logf("closing step %q: %v", name, err)
	}
}

// APIClient returns the instrumented CRM API client. The test is skipped when
// the API base URL or token is missing. Calls are recorded into a per-test
// collector merged into the run collector at cleanup, where the event log is
// also flushed and attached.
func (f *Fixture) APIClient() *crm.Client {
	f.t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.api != nil {
		return f.api
	}

	cfg := f.suite.cfg
	if err := cfg.RequireAPI(); err != nil {
		f.t.Skipf("%v", err)
		return nil
	}

	calls := metrics.NewCollector(f.suite.log)
	recorder := httplog.NewRecorder(f.t.Name(), calls,
		httplog.WithEngine(f.suite.engine),
		httplog.WithLogger(f.suite.log),
		httplog.WithRequestID(cfg.InjectRequest),
	)

	client := recorder.Client(&http.Client{Timeout: cfg.APITimeout})
	f.recorder = recorder
	f.api = crm.NewClient(f.suite.log, client, cfg.APIBaseURL, cfg.APIVersion, cfg.Token)

	f.t.Cleanup(func() {
		f.suite.collector.Merge(calls)
		f.flushAPILog(recorder)
	})

	return f.api
}

func (f *Fixture) flushAPILog(recorder *httplog.Recorder) {
	testID := f.t.Name()
	sink := f.suite.sink

	if summary := recorder.Summary(); summary != "" {
		attach.Safe(f.suite.log, "attach api summary", func() error {
			return sink.Attach(testID, apiSummaryAttachment, attach.Text, []byte(summary))
		})
	}

	attach.Safe(f.suite.log, "flush api log", func() error {
		path, err := recorder.Flush(f.suite.cfg.Path(config.APILogsDir))
		if err != nil || path == "" {
			return err
		}
		return sink.AttachFile(testID, apiLogAttachment, path, attach.JSON)
	})
}

// Recorder returns the HTTP recorder of the API client, or nil before
// APIClient was called.
func (f *Fixture) Recorder() *httplog.Recorder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recorder
}

// Page opens a recorded, traced browser page wired to the test logger. A
// saved auth state is restored when present and a screenshot is attached if
// the test fails. The test is skipped when the browser cannot start.
func (f *Fixture) Page(ctx context.Context) browser.Page {
	f.t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.page != nil {
		return f.page
	}

	var opts browser.ContextOptions
	if f.suite.auth.Exists() {
		st, err := f.suite.auth.Load()
		if err != nil {
			f.Log.Warn("ignoring unreadable auth state", map[string]any{"error": err.Error()})
		} else {
			opts.StorageState = st
		}
	}

	artifacts := f.suite.artifacts
	bctx, err := artifacts.OpenContext(ctx, f.t, f.suite.Browser(), opts)
	if err != nil {
		f.t.Skipf("browser unavailable: %v", err)
		return nil
	}

	page, err := artifacts.OpenPage(ctx, f.t, bctx)
	if err != nil {
		f.t.Skipf("browser page unavailable: %v", err)
		return nil
	}

	browser.ListenPage(page, f.Log)

	// Registered after OpenPage, so it runs before tracing stops and the
	// context closes.
	t := f.t
	t.Cleanup(func() {
		if !t.Failed() {
			return
		}
		shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureShotTimeout)
		defer cancel()
		artifacts.Screenshot(shotCtx, t, page, failureScreenshot)
	})

	f.ctx = ctx
	f.bctx = bctx
	f.page = page

	return page
}

// Screenshot attaches a full-page screenshot of the fixture page. It is a
// no-op before Page was called.
func (f *Fixture) Screenshot(name string) string {
	f.t.Helper()

	f.mu.Lock()
	page, ctx := f.page, f.ctx
	f.mu.Unlock()

	if page == nil {
		return ""
	}

	return f.suite.artifacts.Screenshot(ctx, f.t, page, name)
}

// AttachJSON sanitizes v and attaches it to the test as a JSON document.
func (f *Fixture) AttachJSON(name string, v any) error {
	data, err := json.MarshalIndent(f.suite.engine.Sanitize(v), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	return f.suite.sink.Attach(f.t.Name(), name, attach.JSON, data)
}

// RequireCredentials skips the test unless UI credentials are configured.
func (f *Fixture) RequireCredentials() {
	f.t.Helper()

	if err := f.suite.cfg.RequireLogin(); err != nil {
		f.t.Skipf("%v", err)
	}
}

// RequireAuthState skips the test unless a saved login session exists.
func (f *Fixture) RequireAuthState() {
	f.t.Helper()

	if !f.suite.auth.Exists() {
		f.t.Skipf("%s not found: run the login test first to create the session", config.AuthStateFile)
	}
}

// RequireContact returns the last created contact, skipping the test when
// none was saved.
func (f *Fixture) RequireContact() state.Contact {
	f.t.Helper()

	contact, err := f.suite.contacts.Load()
	if errors.Is(err, state.ErrNotFound) {
		f.t.Skipf("%s not found: run the contact creation test first", config.LastContactFile)
		return state.Contact{}
	}
	if err != nil {
		f.t.Skipf("reading last contact: %v", err)
		return state.Contact{}
	}

	return contact
}

// SaveContact persists c for the tests that chain from it.
func (f *Fixture) SaveContact(c state.Contact) error {
	return f.suite.contacts.Save(c)
}

// SaveAuthState persists the storage state of the fixture's browser context.
func (f *Fixture) SaveAuthState(ctx context.Context) error {
	f.mu.Lock()
	bctx := f.bctx
	f.mu.Unlock()

	if bctx == nil {
		return errNoPage
	}

	st, err := bctx.StorageState(ctx)
	if err != nil {
		return err
	}

	return f.suite.auth.Save(st)
}

var errNoPage = errors.New("no browser page opened")
