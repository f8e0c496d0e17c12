// Package redaction masks credentials and personal data before anything is
// logged, attached to a report or written to disk.
//
// Sanitize is total: it never panics and never returns a value that still
// carries a sensitive key's original value or a matched PII substring.
package redaction

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// Marker replaces every redacted value.
const Marker = "***"

const (
	defaultMaxPreview = 4000
	maxDepth          = 64
	maxPasses         = 16
)

var defaultSensitiveKeys = []string{
	"password",
	"passwd",
	"pwd",
	"token",
	"access_token",
	"refresh_token",
	"id_token",
	"sf_token",
	"authorization",
	"cookie",
	"set_cookie",
	"session",
	"session_id",
	"sessionid",
	"sid",
	"secret",
	"client_secret",
	"api_key",
	"apikey",
	"x_api_key",
	"refresh",
	"private_key",
	"credentials",
}

var defaultSensitiveHeaders = []string{
	"authorization",
	"proxy-authorization",
	"cookie",
	"set-cookie",
	"x-api-key",
	"x-auth-token",
	"x-sfdc-session",
}

// builtinPatterns are applied in order; e-mail runs first so its digits are
// never half-consumed by the phone rule.
var builtinPatterns = []Rule{
	{Name: "email", Pattern: `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`},
	{Name: "jwt", Pattern: `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+`},
	{Name: "bearer-token", Pattern: `(?i)bearer\s+[A-Za-z0-9\-._~+/!]+=*`},
	{Name: "cpf", Pattern: `\b[0-9]{3}\.?[0-9]{3}\.?[0-9]{3}-?[0-9]{2}\b`},
	{Name: "phone", Pattern: `(?:\+?[0-9]{1,3}[\s.\-]?)?\(?[0-9]{2,3}\)?[\s.\-]?[0-9]{4,5}[\s.\-]?[0-9]{4}`},
}

type compiledPattern struct {
	name  string
	regex *regexp.Regexp
}

// Engine holds the sensitive key/header sets and the compiled PII patterns.
// It is safe for concurrent use after construction.
type Engine struct {
	maxPreview       int
	sensitiveKeys    map[string]struct{}
	sensitiveHeaders map[string]struct{}
	patterns         []compiledPattern
	skipped          []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxPreview caps the byte length of every sanitized string.
func WithMaxPreview(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPreview = n
		}
	}
}

// WithRules extends the built-in sets with user supplied rules.
func WithRules(rules *Rules) Option {
	return func(e *Engine) {
		if rules == nil {
			return
		}

		for _, key := range rules.SensitiveKeys {
			e.sensitiveKeys[normalizeKey(key)] = struct{}{}
		}

		for _, header := range rules.SensitiveHeaders {
			e.sensitiveHeaders[strings.ToLower(strings.TrimSpace(header))] = struct{}{}
		}

		e.compile(rules.Patterns)
	}
}

// NewEngine creates an engine with the built-in rules plus any options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxPreview:       defaultMaxPreview,
		sensitiveKeys:    make(map[string]struct{}, len(defaultSensitiveKeys)),
		sensitiveHeaders: make(map[string]struct{}, len(defaultSensitiveHeaders)),
	}

	for _, key := range defaultSensitiveKeys {
		e.sensitiveKeys[normalizeKey(key)] = struct{}{}
	}

	for _, header := range defaultSensitiveHeaders {
		e.sensitiveHeaders[header] = struct{}{}
	}

	e.compile(builtinPatterns)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) compile(rules []Rule) {
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			e.skipped = append(e.skipped, rule.Name)
			continue
		}

		e.patterns = append(e.patterns, compiledPattern{name: rule.Name, regex: re})
	}
}

// MaxPreview returns the configured preview cap.
func (e *Engine) MaxPreview() int {
	return e.maxPreview
}

// Skipped lists the names of rules whose patterns failed to compile.
func (e *Engine) Skipped() []string {
	return append([]string(nil), e.skipped...)
}

// IsSensitiveKey reports whether a mapping key must have its value replaced.
func (e *Engine) IsSensitiveKey(key string) bool {
	_, ok := e.sensitiveKeys[normalizeKey(key)]
	return ok
}

// IsSensitiveHeader reports whether a header must be replaced wholesale.
func (e *Engine) IsSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := e.sensitiveHeaders[lower]; ok {
		return true
	}
	return e.IsSensitiveKey(lower)
}

// MaskText substitutes every PII match with Marker. Patterns are reapplied
// until the text stops changing so no match survives a neighbouring
// replacement.
func (e *Engine) MaskText(s string) string {
	if s == "" {
		return ""
	}

	result := s
	for pass := 0; pass < maxPasses; pass++ {
		before := result
		for _, p := range e.patterns {
			result = p.regex.ReplaceAllLiteralString(result, Marker)
		}
		if result == before {
			break
		}
	}

	return result
}

// Truncate cuts s to at most the preview cap in bytes without splitting a rune.
func (e *Engine) Truncate(s string) string {
	return truncate(s, e.maxPreview)
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}

// text masks, truncates and masks again: the cut can leave a new match at the
// end of the preview.
func (e *Engine) text(s string) string {
	out := e.MaskText(e.Truncate(e.MaskText(s)))
	if len(out) <= e.maxPreview {
		return out
	}

	out = e.Truncate(out)
	if e.matches(out) {
		return truncate(Marker, e.maxPreview)
	}

	return out
}

func (e *Engine) matches(s string) bool {
	for _, p := range e.patterns {
		if p.regex.MatchString(s) {
			return true
		}
	}
	return false
}

// SanitizeURL masks the values of sensitive query and fragment parameters and
// any userinfo password, then masks PII in the result.
func (e *Engine) SanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return e.text(raw)
	}

	var userinfo string
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			userinfo = url.User(u.User.Username()).String() + ":" + Marker + "@"
			u.User = nil
		}
	}

	u.RawQuery = e.maskParams(u.RawQuery)

	fragment := u.EscapedFragment()
	u.Fragment, u.RawFragment = "", ""

	out := u.String()
	if userinfo != "" {
		out = strings.Replace(out, "//", "//"+userinfo, 1)
	}
	if fragment != "" {
		out += "#" + e.maskParams(fragment)
	}

	return e.text(out)
}

// maskParams rewrites an encoded key=value list in place, keeping the order.
func (e *Engine) maskParams(raw string) string {
	if raw == "" {
		return raw
	}

	parts := strings.Split(raw, "&")
	for i, part := range parts {
		name, _, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key, err := url.QueryUnescape(name)
		if err != nil {
			key = name
		}
		if e.IsSensitiveKey(key) {
			parts[i] = name + "=" + Marker
		}
	}

	return strings.Join(parts, "&")
}

// Sanitize returns a masked deep copy of v. The input is never modified.
func (e *Engine) Sanitize(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = Marker
		}
	}()

	return e.sanitize(v, 0)
}

//nolint:gocyclo // Type switch over the supported value shapes
func (e *Engine) sanitize(v any, depth int) any {
	if depth > maxDepth {
		return Marker
	}

	switch t := v.(type) {
	case nil:
		return nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return t
	case string:
		return e.text(t)
	case []byte:
		return e.text(strings.ToValidUTF8(string(t), "\uFFFD"))
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(t, &decoded); err != nil {
			return e.text(strings.ToValidUTF8(string(t), "\uFFFD"))
		}
		return e.sanitize(decoded, depth+1)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if e.IsSensitiveKey(k) {
				out[k] = Marker
				continue
			}
			out[k] = e.sanitize(val, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = e.sanitize(val, depth+1)
		}
		return out
	case error:
		return e.text(t.Error())
	}

	return e.sanitizeReflect(reflect.ValueOf(v), depth)
}

func (e *Engine) sanitizeReflect(rv reflect.Value, depth int) any {
	switch rv.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.Interface()
	case reflect.String:
		return e.text(rv.String())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return e.sanitize(rv.Elem().Interface(), depth+1)
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			if e.IsSensitiveKey(key) {
				out[key] = Marker
				continue
			}
			out[key] = e.sanitize(iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return e.sanitize(b, depth+1)
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = e.sanitize(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Struct:
		// Structs go through their JSON form so tagged field names are
		// matched against the sensitive key set.
		raw, err := json.Marshal(rv.Interface())
		if err == nil {
			var decoded any
			if err := json.Unmarshal(raw, &decoded); err == nil {
				return e.sanitize(decoded, depth+1)
			}
		}
		return e.sanitizeStruct(rv, depth)
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return nil
	}

	if !rv.IsValid() {
		return nil
	}

	return e.text(fmt.Sprintf("%v", rv.Interface()))
}

// sanitizeStruct walks the exported fields of a struct JSON cannot encode.
// Fields are keyed by their json tag name, or the field name without one.
func (e *Engine) sanitizeStruct(rv reflect.Value, depth int) map[string]any {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		key := field.Name
		if tag, _, _ := strings.Cut(field.Tag.Get("json"), ","); tag == "-" {
			continue
		} else if tag != "" {
			key = tag
		}

		if e.IsSensitiveKey(key) {
			out[key] = Marker
			continue
		}
		out[key] = e.sanitize(rv.Field(i).Interface(), depth+1)
	}

	return out
}

// SanitizeHeaders flattens and masks HTTP headers. Sensitive headers are
// replaced wholesale; every other value goes through text masking.
func (e *Engine) SanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))

	for name, values := range h {
		key := strings.ToLower(name)
		if e.IsSensitiveHeader(key) {
			out[key] = Marker
			continue
		}
		out[key] = e.text(strings.Join(values, ", "))
	}

	return out
}

// SensitiveKeys returns the effective sensitive key set, sorted.
func (e *Engine) SensitiveKeys() []string {
	keys := make([]string, 0, len(e.sensitiveKeys))
	for k := range e.sensitiveKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}

var defaultEngine atomic.Pointer[Engine]

func init() {
	defaultEngine.Store(NewEngine())
}

// Default returns the process-wide engine used by the package functions.
func Default() *Engine {
	return defaultEngine.Load()
}

// SetDefault replaces the process-wide engine.
func SetDefault(e *Engine) {
	if e != nil {
		defaultEngine.Store(e)
	}
}

// Sanitize masks v with the default engine.
func Sanitize(v any) any {
	return Default().Sanitize(v)
}

// SanitizeURL masks raw with the default engine.
func SanitizeURL(raw string) string {
	return Default().SanitizeURL(raw)
}

// SanitizeHeaders masks h with the default engine.
func SanitizeHeaders(h http.Header) map[string]string {
	return Default().SanitizeHeaders(h)
}

// MaskText masks PII in s with the default engine.
func MaskText(s string) string {
	return Default().MaskText(s)
}
