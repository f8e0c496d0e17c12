package logger

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
)

// TimestampFormat renders ISO-8601 UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000-07:00"

// lineFormatter renders
//
//	<ts> | <LEVEL> | run_id=<test> | step=<step|-> | <msg>[ <meta-json>]
type lineFormatter struct{}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	line, err := formatLine(entry)
	if err != nil {
		return nil, err
	}
	return []byte(line + "\n"), nil
}

func formatLine(entry *logrus.Entry) (string, error) {
	var b strings.Builder

	b.WriteString(entry.Time.UTC().Format(TimestampFormat))
	b.WriteString(" | ")
	b.WriteString(levelName(entry.Level))
	b.WriteString(" | run_id=")
	b.WriteString(testIDOf(entry))
	b.WriteString(" | step=")
	b.WriteString(stepName(scopeOf(entry)))
	b.WriteString(" | ")
	b.WriteString(entry.Message)

	if meta, ok := entry.Data[fieldMeta].(map[string]any); ok && len(meta) > 0 {
		encoded, err := encodeMeta(meta)
		if err != nil {
			return "", err
		}
		b.WriteByte(' ')
		b.WriteString(encoded)
	}

	return b.String(), nil
}

func encodeMeta(meta map[string]any) (string, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	return strings.TrimRight(buf.String(), "\n"), nil
}

func levelName(level logrus.Level) string {
	if level == logrus.WarnLevel {
		return "WARN"
	}
	return strings.ToUpper(level.String())
}

func testIDOf(entry *logrus.Entry) string {
	id, _ := entry.Data[fieldTestID].(string)
	return id
}

func scopeOf(entry *logrus.Entry) *stepScope {
	scope, _ := entry.Data[fieldStep].(*stepScope)
	return scope
}

func stepName(scope *stepScope) string {
	if scope == nil {
		return "-"
	}
	return scope.name
}

// bufferHook copies every emitted line into the owning logger's buffers.
type bufferHook struct {
	logger *TestLogger
}

func (h *bufferHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *bufferHook) Fire(entry *logrus.Entry) error {
	line, err := formatLine(entry)
	if err != nil {
		return err
	}

	scope := scopeOf(entry)
	meta, _ := entry.Data[fieldMeta].(map[string]any)

	step := ""
	if scope != nil {
		step = scope.name
	}

	h.logger.record(scope, line, Entry{
		Timestamp: entry.Time.UTC(),
		Level:     levelName(entry.Level),
		TestID:    testIDOf(entry),
		Step:      step,
		Message:   entry.Message,
		Meta:      meta,
	})

	return nil
}
