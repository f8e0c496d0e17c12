package logger

import (
	"bytes"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/crmqa/crm-e2e/internal/attach"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, opts ...Option) (*TestLogger, *attach.MemorySink, *bytes.Buffer) {
	t.Helper()

	sink := attach.NewMemorySink()
	out := &bytes.Buffer{}
	opts = append([]Option{WithSink(sink), WithOutput(out)}, opts...)

	return New("TestContact/create", opts...), sink, out
}

func TestLineFormat(t *testing.T) {
	log, _, out := newTestLogger(t)

	log.Info("opening page", map[string]any{"url": "https://crm.example.com", "password": "hunter2"})
	log.EnterStep("login")
	log.Warn("slow", nil)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	pattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}\+00:00 \| INFO \| run_id=TestContact/create \| step=- \| opening page \{.*\}$`)
	assert.Regexp(t, pattern, lines[0])
	assert.Contains(t, lines[0], `"password":"***"`)
	assert.NotContains(t, lines[0], "hunter2")

	assert.Contains(t, lines[1], "| WARN | run_id=TestContact/create | step=login | slow")
	assert.True(t, strings.HasSuffix(lines[1], "| slow"))
}

func TestLevelFilter(t *testing.T) {
	log, _, out := newTestLogger(t, WithLevel(logrus.WarnLevel))

	log.Debug("d", nil)
	log.Info("i", nil)
	log.Warn("w", nil)
	log.Error("e", nil)

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "ERROR", entries[1].Level)
	assert.Equal(t, 2, strings.Count(out.String(), "\n"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected logrus.Level
	}{
		{in: "debug", expected: logrus.DebugLevel},
		{in: "INFO", expected: logrus.InfoLevel},
		{in: "warn", expected: logrus.WarnLevel},
		{in: "error", expected: logrus.ErrorLevel},
		{in: "verbose", expected: logrus.InfoLevel},
		{in: "", expected: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.in))
		})
	}
}

func TestStepIsolation(t *testing.T) {
	log, sink, _ := newTestLogger(t)

	log.EnterStep("A")
	log.Info("inside A", nil)
	require.NoError(t, log.ExitStep("A"))

	log.EnterStep("B")
	log.Info("inside B", nil)
	require.NoError(t, log.ExitStep("B"))

	a := sink.Named(StepAttachmentPrefix + "A")
	b := sink.Named(StepAttachmentPrefix + "B")
	require.Len(t, a, 1)
	require.Len(t, b, 1)

	assert.Contains(t, string(a[0].Data), "inside A")
	assert.NotContains(t, string(a[0].Data), "inside B")
	assert.Contains(t, string(b[0].Data), "inside B")
	assert.NotContains(t, string(b[0].Data), "inside A")
}

func TestNestedSteps(t *testing.T) {
	log, sink, _ := newTestLogger(t)

	log.EnterStep("outer")
	log.Info("outer line", nil)
	log.EnterStep("inner")
	log.Info("inner line", nil)
	assert.Equal(t, []string{"outer", "inner"}, log.ActiveSteps())
	require.NoError(t, log.ExitStep("inner"))
	log.Info("outer again", nil)
	require.NoError(t, log.ExitStep("outer"))

	outer := string(sink.Named(StepAttachmentPrefix + "outer")[0].Data)
	assert.Contains(t, outer, "outer line")
	assert.Contains(t, outer, "outer again")
	assert.NotContains(t, outer, "inner line")
}

func TestExitStepMismatch(t *testing.T) {
	log, sink, _ := newTestLogger(t)

	require.ErrorIs(t, log.ExitStep("ghost"), ErrStepNotActive)

	log.EnterStep("outer")
	log.EnterStep("inner")
	log.Info("kept", nil)

	err := log.ExitStep("outer")
	require.ErrorIs(t, err, ErrStepNotActive)
	assert.Equal(t, []string{"outer", "inner"}, log.ActiveSteps())
	assert.Empty(t, sink.Items())

	require.NoError(t, log.ExitStep("inner"))
	assert.Contains(t, string(sink.Named(StepAttachmentPrefix + "inner")[0].Data), "kept")
}

func TestEmptyStepNotAttached(t *testing.T) {
	log, sink, _ := newTestLogger(t)

	log.EnterStep("quiet")
	require.NoError(t, log.ExitStep("quiet"))
	assert.Empty(t, sink.Items())
}

func TestInStep_ExitsOnPanic(t *testing.T) {
	log, sink, _ := newTestLogger(t)

	assert.Panics(t, func() {
		_ = log.InStep("explodes", func() {
			log.Info("before panic", nil)
			panic("boom")
		})
	})

	assert.Empty(t, log.ActiveSteps())
	require.Len(t, sink.Named(StepAttachmentPrefix+"explodes"), 1)

	log.Info("after", nil)
	log.AttachGlobalOnce()
	assert.Contains(t, string(sink.Named(GlobalAttachmentName)[0].Data), "after")
}

func TestInStep_ExitsOnGoexit(t *testing.T) {
	log, sink, _ := newTestLogger(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = log.InStep("fatal", func() {
			log.Info("about to stop", nil)
			runtime.Goexit()
		})
	}()
	<-done

	assert.Empty(t, log.ActiveSteps())
	assert.Len(t, sink.Named(StepAttachmentPrefix+"fatal"), 1)
}

func TestAttachGlobalOnce_Idempotent(t *testing.T) {
	log, sink, _ := newTestLogger(t)

	log.Info("global line", nil)
	log.AttachGlobalOnce()
	log.AttachGlobalOnce()

	assert.Len(t, sink.Named(GlobalAttachmentName), 1)
}

func TestAttachGlobalOnce_FlushesOpenSteps(t *testing.T) {
	log, sink, _ := newTestLogger(t)

	log.Info("global line", nil)
	log.EnterStep("never closed")
	log.Info("step line", nil)

	log.AttachGlobalOnce()

	require.Len(t, sink.Named(StepAttachmentPrefix+"never closed"), 1)
	assert.Contains(t, string(sink.Named(StepAttachmentPrefix + "never closed")[0].Data), "step line")
	assert.NotContains(t, string(sink.Named(GlobalAttachmentName)[0].Data), "step line")
	assert.Empty(t, log.ActiveSteps())
}

func TestAttachGlobalOnce_EmptyBuffer(t *testing.T) {
	log, sink, _ := newTestLogger(t)

	log.AttachGlobalOnce()
	assert.Empty(t, sink.Items())
}

func TestStepMarker(t *testing.T) {
	log, _, _ := newTestLogger(t)

	log.Step("fill form", map[string]any{"email": "ana@example.com"})

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "[STEP] fill form", entries[0].Message)
	assert.Equal(t, "***", entries[0].Meta["email"])
}

func TestConcurrentLogging(t *testing.T) {
	log, _, _ := newTestLogger(t)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				log.Debug("listener", nil)
				log.Info("listener", nil)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.Len(t, log.Entries(), 400)
}
