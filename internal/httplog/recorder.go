// Package httplog instruments HTTP clients: every call is timed, sanitized,
// recorded as request/response events for the test and reported to the run's
// metrics collector.
package httplog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crmqa/crm-e2e/internal/redaction"
	"github.com/crmqa/crm-e2e/internal/testing/format"
	"github.com/crmqa/crm-e2e/internal/testing/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types.
const (
	EventRequest  = "request"
	EventResponse = "response"
	EventError    = "error"
)

// RequestIDHeader is injected into outgoing calls that carry none.
const RequestIDHeader = "X-Request-Id"

// CorrelationHeaders are checked in order; the first present wins.
var CorrelationHeaders = []string{
	"x-request-id",
	"x-correlation-id",
	"sforce-call-id",
	"x-sfdc-request-id",
	"x-amzn-trace-id",
	"traceparent",
}

// Event is one recorded request, response or transport failure.
type Event struct {
	Type          string            `json:"type"`
	TestID        string            `json:"test_id"`
	Method        string            `json:"method"`
	URL           string            `json:"url"`
	Headers       map[string]string `json:"headers"`
	Body          any               `json:"body,omitempty"`
	StatusCode    int               `json:"status_code,omitempty"`
	ElapsedMS     *float64          `json:"elapsed_ms,omitempty"`
	SizeBytes     int64             `json:"size_bytes,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Error         string            `json:"error,omitempty"`
	Timestamp     time.Time         `json:"ts"`
}

type startKey struct{}

// Recorder captures the HTTP traffic of one test.
type Recorder struct {
	testID    string
	collector metrics.Collector
	engine    *redaction.Engine
	log       logrus.FieldLogger
	injectID  bool
	now       func() time.Time

	mu     sync.Mutex
	events []Event
	last   *Event
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithEngine sanitizes events with e instead of the default engine.
func WithEngine(e *redaction.Engine) Option {
	return func(r *Recorder) {
		if e != nil {
			r.engine = e
		}
	}
}

// WithLogger receives swallowed instrumentation failures at debug level.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Recorder) {
		if log != nil {
			r.log = log
		}
	}
}

// WithRequestID controls X-Request-Id injection.
func WithRequestID(enabled bool) Option {
	return func(r *Recorder) { r.injectID = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates a recorder for testID. collector may be nil.
func NewRecorder(testID string, collector metrics.Collector, opts ...Option) *Recorder {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	r := &Recorder{
		testID:    testID,
		collector: collector,
		engine:    redaction.Default(),
		log:       discard,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.log = r.log.WithFields(logrus.Fields{"component": "httplog", "test": testID})

	return r
}

// OnRequest stamps the start time into the request context and records a
// request event. The returned request must be the one sent.
func (r *Recorder) OnRequest(req *http.Request) (out *http.Request) {
	out = req
	defer r.recoverHook("request hook")

	start := r.now()
	out = req.Clone(context.WithValue(req.Context(), startKey{}, start))

	if r.injectID && out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}

	body := r.requestBody(out)

	r.append(Event{
		Type:      EventRequest,
		TestID:    r.testID,
		Method:    out.Method,
		URL:       r.engine.SanitizeURL(out.URL.String()),
		Headers:   r.engine.SanitizeHeaders(out.Header),
		Body:      r.engine.Sanitize(decodeBody(body, out.Header.Get("Content-Type"))),
		Timestamp: start.UTC(),
	})

	return out
}

// OnResponse records a response event and a call metric. The body is read and
// restored so callers can still consume it.
func (r *Recorder) OnResponse(resp *http.Response) {
	if resp == nil {
		return
	}
	defer r.recoverHook("response hook")

	now := r.now()

	var (
		method, rawURL, endpoint string
		elapsed                  *float64
	)

	if req := resp.Request; req != nil {
		method = req.Method
		rawURL = req.URL.String()
		endpoint = r.engine.MaskText(req.URL.Path)
		if start, ok := req.Context().Value(startKey{}).(time.Time); ok {
			ms := float64(now.Sub(start).Microseconds()) / 1000
			elapsed = &ms
		}
	}

	data := r.responseBody(resp)
	correlation := correlationID(resp.Header)

	event := Event{
		Type:          EventResponse,
		TestID:        r.testID,
		Method:        method,
		URL:           r.engine.SanitizeURL(rawURL),
		Headers:       r.engine.SanitizeHeaders(resp.Header),
		Body:          r.engine.Sanitize(decodeBody(data, resp.Header.Get("Content-Type"))),
		StatusCode:    resp.StatusCode,
		ElapsedMS:     elapsed,
		SizeBytes:     int64(len(data)),
		CorrelationID: correlation,
		Timestamp:     now.UTC(),
	}
	r.append(event)

	if r.collector != nil {
		r.collector.Record(metrics.CallMetric{
			TestID:        r.testID,
			Endpoint:      endpoint,
			Method:        method,
			Status:        resp.StatusCode,
			ElapsedMS:     elapsed,
			Success:       metrics.IsSuccess(resp.StatusCode),
			SizeBytes:     int64(len(data)),
			CorrelationID: correlation,
		})
	}
}

// OnError records a call that produced no response.
func (r *Recorder) OnError(req *http.Request, callErr error) {
	defer r.recoverHook("error hook")

	now := r.now()
	event := Event{
		Type:      EventError,
		TestID:    r.testID,
		Method:    req.Method,
		URL:       r.engine.SanitizeURL(req.URL.String()),
		Headers:   r.engine.SanitizeHeaders(req.Header),
		Error:     r.errorText(callErr),
		Timestamp: now.UTC(),
	}
	if start, ok := req.Context().Value(startKey{}).(time.Time); ok {
		ms := float64(now.Sub(start).Microseconds()) / 1000
		event.ElapsedMS = &ms
	}

	r.append(event)
}

// errorText masks an error message. A *url.Error carries the full request URL,
// so its URL is sanitized as one.
func (r *Recorder) errorText(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Sprintf("%s %q: %s", urlErr.Op, r.engine.SanitizeURL(urlErr.URL), r.engine.MaskText(urlErr.Err.Error()))
	}
	return r.engine.MaskText(err.Error())
}

func (r *Recorder) recoverHook(what string) {
	if rec := recover(); rec != nil {
		r.log.WithField("panic", rec).Debugf("%s recovered", what)
	}
}

func (r *Recorder) append(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	if e.Type == EventResponse {
		last := e
		r.last = &last
	}
}

func (r *Recorder) requestBody(req *http.Request) []byte {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}

	if req.GetBody != nil {
		data, err := readCopy(req)
		if err == nil {
			return data
		}
		r.log.WithError(err).Debug("reading request body copy failed")
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		r.log.WithError(err).Debug("reading request body failed")
	}
	req.Body = io.NopCloser(bytes.NewReader(data))

	return data
}

func readCopy(req *http.Request) ([]byte, error) {
	rc, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

func (r *Recorder) responseBody(resp *http.Response) []byte {
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		r.log.WithError(err).Debug("reading response body failed")
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))

	return data
}

// decodeBody parses form-encoded and JSON bodies and falls back to text.
func decodeBody(data []byte, contentType string) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/x-www-form-urlencoded" {
		return decodeForm(data)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err == nil {
		return decoded
	}

	return data
}

// decodeForm keeps every pair url.ParseQuery could decode; malformed pairs
// are dropped.
func decodeForm(data []byte) map[string]any {
	values, _ := url.ParseQuery(string(data))

	form := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 1 {
			form[key] = vals[0]
			continue
		}
		list := make([]any, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		form[key] = list
	}

	return form
}

func correlationID(h http.Header) string {
	for _, name := range CorrelationHeaders {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Flush writes the events to <dir>/<slug(testID)>.json. It does nothing and
// returns an empty path when no events were recorded.
func (r *Recorder) Flush(dir string) (string, error) {
	events := r.Events()
	if len(events) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating api log dir: %w", err)
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding api events: %w", err)
	}

	path := filepath.Join(dir, Slug(r.testID)+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	return path, nil
}

// Summary describes the last response, or returns "" when there is none.
func (r *Recorder) Summary() string {
	r.mu.Lock()
	last := r.last
	r.mu.Unlock()

	if last == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s -> %d in %s ms (%d bytes)",
		last.Method, last.URL, last.StatusCode, format.Millis(last.ElapsedMS), last.SizeBytes)
	if last.CorrelationID != "" {
		fmt.Fprintf(&b, " correlation_id=%s", last.CorrelationID)
	}

	return b.String()
}

// Slug derives the per-test file name stem from a test identifier.
func Slug(testID string) string {
	return format.Slug(testID)
}
