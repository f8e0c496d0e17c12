package browser

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/crmqa/crm-e2e/internal/redaction"
)

// PageLogger receives page diagnostics.
type PageLogger interface {
	Info(msg string, meta map[string]any)
	Warn(msg string, meta map[string]any)
	Error(msg string, meta map[string]any)
}

// ListenPage forwards console output, failed requests, error responses,
// uncaught exceptions and main-frame navigations of p to log. Console lines
// carrying the harness's own "[STEP]" or "[LOG]" markers are ignored.
func ListenPage(p Page, log PageLogger) {
	p.Listen(newPageListener(log).handle)
}

type pageListener struct {
	log PageLogger

	mu       sync.Mutex
	requests map[network.RequestID]*network.Request
}

func newPageListener(log PageLogger) *pageListener {
	return &pageListener{
		log:      log,
		requests: make(map[network.RequestID]*network.Request),
	}
}

func (l *pageListener) handle(ev any) {
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		text := consoleText(e.Args)
		if strings.Contains(text, "[STEP]") || strings.Contains(text, "[LOG]") {
			return
		}
		l.log.Info("console", map[string]any{"type": string(e.Type), "text": text})

	case *network.EventRequestWillBeSent:
		if e.Request != nil {
			l.mu.Lock()
			l.requests[e.RequestID] = e.Request
			l.mu.Unlock()
		}

	case *network.EventLoadingFinished:
		l.forget(e.RequestID)

	case *network.EventLoadingFailed:
		req := l.forget(e.RequestID)
		meta := map[string]any{"failure": e.ErrorText}
		if req != nil {
			meta["url"] = redaction.SanitizeURL(req.URL)
			meta["method"] = req.Method
		}
		l.log.Warn("requestfailed", meta)

	case *network.EventResponseReceived:
		if e.Response != nil && e.Response.Status >= 400 {
			l.log.Warn("response", map[string]any{
				"url":        redaction.SanitizeURL(e.Response.URL),
				"status":     e.Response.Status,
				"statusText": e.Response.StatusText,
			})
		}

	case *runtime.EventExceptionThrown:
		l.log.Error("pageerror", map[string]any{"error": exceptionText(e.ExceptionDetails)})

	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			l.log.Info("navigated", map[string]any{"url": redaction.SanitizeURL(e.Frame.URL)})
		}
	}
}

func (l *pageListener) forget(id network.RequestID) *network.Request {
	l.mu.Lock()
	defer l.mu.Unlock()

	req := l.requests[id]
	delete(l.requests, id)
	return req
}

func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, remoteText(arg))
	}
	return strings.Join(parts, " ")
}

func remoteText(obj *runtime.RemoteObject) string {
	if obj == nil {
		return ""
	}

	if len(obj.Value) > 0 {
		var s string
		if err := json.Unmarshal(obj.Value, &s); err == nil {
			return s
		}
		return string(obj.Value)
	}

	return obj.Description
}

func exceptionText(details *runtime.ExceptionDetails) string {
	if details == nil {
		return ""
	}
	if details.Exception != nil && details.Exception.Description != "" {
		return details.Exception.Description
	}
	return details.Text
}
