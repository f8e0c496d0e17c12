// Package harness wires the observability components into run-scoped and
// test-scoped fixtures for the end-to-end suites.
package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/crmqa/crm-e2e/internal/attach"
	"github.com/crmqa/crm-e2e/internal/browser"
	"github.com/crmqa/crm-e2e/internal/config"
	"github.com/crmqa/crm-e2e/internal/logger"
	"github.com/crmqa/crm-e2e/internal/redaction"
	"github.com/crmqa/crm-e2e/internal/state"
	"github.com/crmqa/crm-e2e/internal/testing/metrics"
	"github.com/crmqa/crm-e2e/internal/testing/output"
	"github.com/crmqa/crm-e2e/internal/testing/table"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Runner is satisfied by *testing.M.
type Runner interface {
	Run() int
}

// Suite holds everything shared by the tests of one run.
type Suite struct {
	cfg       *config.Config
	log       logrus.FieldLogger
	runID     string
	engine    *redaction.Engine
	collector metrics.Collector
	sink      *attach.DirSink
	artifacts *browser.Manager
	auth      *state.AuthStore
	contacts  *state.ContactStore
	logOutput io.Writer

	browserMu sync.Mutex
	browser   browser.Browser
}

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithBrowser replaces the Chrome backend.
func WithBrowser(b browser.Browser) SuiteOption {
	return func(s *Suite) {
		s.browser = b
	}
}

// WithLogOutput sets where per-test log lines are mirrored. Defaults to stdout.
func WithLogOutput(w io.Writer) SuiteOption {
	return func(s *Suite) {
		s.logOutput = w
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) SuiteOption {
	return func(s *Suite) {
		s.runID = id
	}
}

// NewSuite builds the run-scoped fixtures from cfg. The redaction engine it
// creates also becomes the package default.
func NewSuite(cfg *config.Config, log logrus.FieldLogger, opts ...SuiteOption) (*Suite, error) {
	engineOpts := []redaction.Option{redaction.WithMaxPreview(cfg.MaxPreview)}
	if cfg.RedactionFile != "" {
		rules, err := redaction.LoadRules(cfg.RedactionFile)
		if err != nil {
			return nil, fmt.Errorf("loading redaction rules: %w", err)
		}
		engineOpts = append(engineOpts, redaction.WithRules(rules))
	}

	engine := redaction.NewEngine(engineOpts...)
	for _, name := range engine.Skipped() {
		log.WithField("rule", name).Warn("Skipping invalid redaction pattern")
	}
	redaction.SetDefault(engine)

	s := &Suite{
		cfg:       cfg,
		log:       log.WithField("component", "harness"),
		runID:     uuid.NewString(),
		engine:    engine,
		collector: metrics.NewCollector(log),
		sink:      attach.NewDirSink(cfg.Path(config.AttachmentsDir)),
		auth:      state.NewAuthStore(cfg.Path(config.AuthStateFile)),
		contacts:  state.NewContactStore(cfg.Path(config.LastContactFile)),
		logOutput: os.Stdout,
	}

	s.artifacts = browser.NewManager(log, s.sink, browser.Dirs{
		Screenshots: cfg.Path(config.ScreenshotsDir),
		Traces:      cfg.Path(config.TracesDir),
		Videos:      cfg.Path(config.VideosDir),
	})

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Setup loads the configuration and builds a Suite with a process logger at
// LOG_LEVEL.
func Setup(opts ...SuiteOption) (*Suite, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))

	return NewSuite(cfg, log, opts...)
}

// Main is the TestMain body: it prepares the artifact directories, runs the
// tests and publishes the run reports.
func Main(m Runner, s *Suite) int {
	if err := s.Prepare(context.Background()); err != nil {
		s.log.WithError(err).Error("Failed to prepare artifact directories")
		return 1
	}

	code := m.Run()

	if err := s.Finish(os.Stdout); err != nil {
		s.log.WithError(err).Error("Failed to publish run reports")
	}

	return code
}

// Config returns the loaded configuration.
func (s *Suite) Config() *config.Config {
	return s.cfg
}

// RunID identifies this run in reports.
func (s *Suite) RunID() string {
	return s.runID
}

// Collector returns the run-level metrics collector.
func (s *Suite) Collector() metrics.Collector {
	return s.collector
}

// Artifacts returns the browser artifact manager.
func (s *Suite) Artifacts() *browser.Manager {
	return s.artifacts
}

// AuthStore returns the persisted browser session store.
func (s *Suite) AuthStore() *state.AuthStore {
	return s.auth
}

// ContactStore returns the store of the last created contact.
func (s *Suite) ContactStore() *state.ContactStore {
	return s.contacts
}

// Prepare creates every artifact directory and starts the collector. Safe to
// call repeatedly.
func (s *Suite) Prepare(ctx context.Context) error {
	for _, dir := range config.ArtifactDirs {
		if err := os.MkdirAll(s.cfg.Path(dir), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if err := s.artifacts.PrepareDirs(); err != nil {
		return err
	}

	if s.collector.Started().IsZero() {
		return s.collector.Start(ctx)
	}

	return nil
}

// Finish writes the run metrics reports, prints the summary tables to w and
// closes the browser backend.
func (s *Suite) Finish(w io.Writer) error {
	defer s.closeBrowser()

	var elapsed time.Duration
	if started := s.collector.Started(); !started.IsZero() {
		elapsed = time.Since(started)
	}
	if err := s.collector.Stop(); err != nil {
		s.log.WithError(err).Debug("stopping collector failed")
	}

	summary, ok := metrics.Summarize(s.runID, s.collector.Metrics())

	renderer := table.NewRenderer(s.log)
	if err := renderer.Start(context.Background()); err != nil {
		return fmt.Errorf("starting renderer: %w", err)
	}
	defer func() {
		_ = renderer.Stop()
	}()

	out := output.NewFormatter(w,
		table.NewSummaryFormatter(s.log, renderer),
		table.NewEndpointsFormatter(s.log, renderer),
	)
	out.PrintPhase("Run Report")
	out.PrintSummary(summary, elapsed)
	out.PrintEndpoints(summary)

	if !ok {
		return nil
	}

	jsonPath, textPath, err := metrics.WriteReports(s.cfg.Path(config.ReportsDir), summary)
	if err != nil {
		out.PrintError("Failed to write run metrics", err)
		return fmt.Errorf("writing run reports: %w", err)
	}
	out.PrintSuccess(fmt.Sprintf("Run metrics written to %s", jsonPath))

	s.log.WithFields(logrus.Fields{
		"json": jsonPath,
		"text": textPath,
	}).Info("Run metrics written")

	return nil
}

// Browser returns the browser backend, starting the Chrome backend on first use.
func (s *Suite) Browser() browser.Browser {
	s.browserMu.Lock()
	defer s.browserMu.Unlock()

	if s.browser == nil {
		s.browser = browser.NewChrome(browser.ChromeOptions{
			Headless: s.cfg.Headless,
			ExecPath: s.cfg.ChromePath,
			Log:      s.log,
		})
	}

	return s.browser
}

func (s *Suite) closeBrowser() {
	s.browserMu.Lock()
	b := s.browser
	s.browserMu.Unlock()

	if b == nil {
		return
	}

	if err := b.Close(); err != nil {
		s.log.WithError(err).Debug("closing browser failed")
	}
}
