// Package logger provides the per-test structured logger.
//
// Every line is written to standard output and buffered. While a step is
// active its lines go to that step's buffer, which is attached to the report
// when the step exits. Lines logged outside any step go to the global buffer,
// attached once when the test finishes.
package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crmqa/crm-e2e/internal/attach"
	"github.com/crmqa/crm-e2e/internal/redaction"
	"github.com/sirupsen/logrus"
)

// ErrStepNotActive is returned when exiting a step that is not the innermost
// active one.
var ErrStepNotActive = errors.New("step is not the active step")

const (
	// GlobalAttachmentName names the attachment holding lines logged outside steps.
	GlobalAttachmentName = "execution.log"
	// StepAttachmentPrefix prefixes the attachment flushed on step exit.
	StepAttachmentPrefix = "Logs - "

	fieldTestID = "test_id"
	fieldStep   = "step"
	fieldMeta   = "meta"
)

// Entry is one recorded log line.
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"`
	TestID    string         `json:"test"`
	Step      string         `json:"step,omitempty"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta,omitempty"`
}

type stepScope struct {
	name   string
	lines  []string
	closed bool
}

// TestLogger is a step-scoped logger bound to one test.
type TestLogger struct {
	testID string
	out    *logrus.Logger
	diag   logrus.FieldLogger
	sink   attach.Sink
	engine *redaction.Engine

	mu       sync.Mutex
	stack    []*stepScope
	global   []string
	entries  []Entry
	attached bool
}

// Option configures a TestLogger.
type Option func(*options)

type options struct {
	level  logrus.Level
	output io.Writer
	sink   attach.Sink
	engine *redaction.Engine
	diag   logrus.FieldLogger
}

// WithLevel sets the minimum level.
func WithLevel(level logrus.Level) Option {
	return func(o *options) { o.level = level }
}

// WithOutput mirrors lines to w instead of standard output.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithSink sets where step and global buffers are attached.
func WithSink(sink attach.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithEngine masks metadata with e instead of the default engine.
func WithEngine(e *redaction.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithDiagnostics receives the logger's own failures (attachment errors).
func WithDiagnostics(log logrus.FieldLogger) Option {
	return func(o *options) { o.diag = log }
}

// New creates a logger for testID.
func New(testID string, opts ...Option) *TestLogger {
	o := &options{
		level:  logrus.InfoLevel,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.engine == nil {
		o.engine = redaction.Default()
	}
	if o.diag == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		o.diag = discard
	}

	l := &TestLogger{
		testID: testID,
		diag:   o.diag.WithField("component", "test_logger"),
		sink:   o.sink,
		engine: o.engine,
	}

	l.out = &logrus.Logger{
		Out:       o.output,
		Formatter: &lineFormatter{},
		Hooks:     make(logrus.LevelHooks),
		Level:     o.level,
		ExitFunc:  os.Exit,
	}
	l.out.AddHook(&bufferHook{logger: l})

	return l
}

// TestID returns the identifier the logger is bound to.
func (l *TestLogger) TestID() string {
	return l.testID
}

// Level returns the minimum level.
func (l *TestLogger) Level() logrus.Level {
	return l.out.GetLevel()
}

// Log emits msg at level with optional masked metadata.
func (l *TestLogger) Log(level logrus.Level, msg string, meta map[string]any) {
	if !l.out.IsLevelEnabled(level) {
		return
	}

	fields := logrus.Fields{
		fieldTestID: l.testID,
		fieldStep:   l.current(),
	}
	if len(meta) > 0 {
		if masked, ok := l.engine.Sanitize(meta).(map[string]any); ok {
			fields[fieldMeta] = masked
		}
	}

	l.out.WithFields(fields).Log(level, msg)
}

// Debug logs at debug level.
func (l *TestLogger) Debug(msg string, meta map[string]any) {
	l.Log(logrus.DebugLevel, msg, meta)
}

// Info logs at info level.
func (l *TestLogger) Info(msg string, meta map[string]any) {
	l.Log(logrus.InfoLevel, msg, meta)
}

// Warn logs at warn level.
func (l *TestLogger) Warn(msg string, meta map[string]any) {
	l.Log(logrus.WarnLevel, msg, meta)
}

// Error logs at error level.
func (l *TestLogger) Error(msg string, meta map[string]any) {
	l.Log(logrus.ErrorLevel, msg, meta)
}

// Step logs a "[STEP]" marker line at info level.
func (l *TestLogger) Step(msg string, meta map[string]any) {
	l.Info("[STEP] "+msg, meta)
}

// EnterStep pushes a named step; subsequent lines go to its buffer.
func (l *TestLogger) EnterStep(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stack = append(l.stack, &stepScope{name: name})
}

// ExitStep pops the innermost step and attaches its buffer. Exiting any other
// name returns ErrStepNotActive and leaves the stack untouched.
func (l *TestLogger) ExitStep(name string) error {
	l.mu.Lock()

	if len(l.stack) == 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: exiting %q with no active step", ErrStepNotActive, name)
	}

	top := l.stack[len(l.stack)-1]
	if top.name != name {
		l.mu.Unlock()
		return fmt.Errorf("%w: exiting %q while %q is active", ErrStepNotActive, name, top.name)
	}

	l.stack = l.stack[:len(l.stack)-1]
	lines := l.closeStep(top)
	l.mu.Unlock()

	l.attachLines(StepAttachmentPrefix+name, lines)

	return nil
}

// InStep runs fn inside a step. The step is exited on every path, including
// a panic or runtime.Goexit from t.FailNow inside fn.
func (l *TestLogger) InStep(name string, fn func()) (err error) {
	l.EnterStep(name)
	defer func() {
		if exitErr := l.ExitStep(name); exitErr != nil && err == nil {
			err = exitErr
		}
	}()

	fn()

	return nil
}

// ActiveSteps returns the names on the step stack, outermost first.
func (l *TestLogger) ActiveSteps() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, len(l.stack))
	for i, s := range l.stack {
		names[i] = s.name
	}
	return names
}

// AttachGlobalOnce attaches the global buffer. Only the first call has any
// effect. Steps still open are flushed first so their lines are kept.
func (l *TestLogger) AttachGlobalOnce() {
	l.mu.Lock()
	if l.attached {
		l.mu.Unlock()
		return
	}
	l.attached = true

	type pending struct {
		name  string
		lines []string
	}

	open := make([]pending, 0, len(l.stack))
	for i := len(l.stack) - 1; i >= 0; i-- {
		s := l.stack[i]
		open = append(open, pending{name: s.name, lines: l.closeStep(s)})
	}
	l.stack = nil

	global := l.global
	l.global = nil
	l.mu.Unlock()

	for _, p := range open {
		l.attachLines(StepAttachmentPrefix+p.name, p.lines)
	}
	l.attachLines(GlobalAttachmentName, global)
}

// Entries returns a copy of every entry recorded so far.
func (l *TestLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// current returns the innermost step or nil. Callers must not hold mu.
func (l *TestLogger) current() *stepScope {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.stack) == 0 {
		return nil
	}
	return l.stack[len(l.stack)-1]
}

// closeStep must be called with mu held.
func (l *TestLogger) closeStep(s *stepScope) []string {
	s.closed = true
	lines := s.lines
	s.lines = nil
	return lines
}

func (l *TestLogger) attachLines(name string, lines []string) {
	if len(lines) == 0 || l.sink == nil {
		return
	}

	text := strings.Join(lines, "\n")
	attach.Safe(l.diag, "attach "+name, func() error {
		return l.sink.Attach(l.testID, name, attach.Text, []byte(text))
	})
}

// record routes a formatted line to the step that was active when it was
// logged, or to the global buffer.
func (l *TestLogger) record(scope *stepScope, line string, entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if scope != nil && !scope.closed {
		scope.lines = append(scope.lines, line)
	} else {
		l.global = append(l.global, line)
	}
	l.entries = append(l.entries, entry)
}

// ParseLevel converts a level name, falling back to info for unknown names.
func ParseLevel(name string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
